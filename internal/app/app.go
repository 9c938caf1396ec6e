package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sprintline/internal/auth"
	"sprintline/internal/config"
	"sprintline/internal/db"
	"sprintline/internal/engine"
	"sprintline/internal/history"
	"sprintline/internal/logging"
	"sprintline/internal/migrate"
	"sprintline/internal/notify"
	"sprintline/internal/repo"
	"sprintline/internal/taskclient"
)

// localToken stands in for a credential when the workspace has no JWT secret.
const localToken = "local"

type Options struct {
	Workspace string
	// ActorID is who local commands act as when no JWT secret is configured.
	ActorID string
	// Console receives log output; nil discards it.
	Console *os.File
}

// App holds everything a command needs: the open workspace database, the
// loaded config and an engine wired to its collaborators.
type App struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
	Log       zerolog.Logger
	Notifier  *notify.Dispatcher

	logCloser io.Closer
}

// Open prepares the workspace, migrates its database and wires the engine.
// A missing sprintline.yml means defaults.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return nil, err
	}
	log, closer, err := logging.New(cfg.Log, opts.Console)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		closer.Close()
		return nil, err
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		closer.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	e := engine.New(conn, cfg)
	e.Log = log.With().Str("component", "engine").Logger()
	e.Auth = decoderFor(cfg, opts.ActorID)
	if base := strings.TrimSpace(cfg.Tasks.BaseURL); base != "" {
		e.Tasks = taskclient.New(base, time.Duration(cfg.Tasks.TimeoutSeconds)*time.Second)
	}
	dispatcher := notify.New(cfg.Webhooks, log.With().Str("component", "webhooks").Logger())
	e.History = history.Recorder{
		Repo:     e.Repo,
		Notifier: dispatcher,
		Log:      log.With().Str("component", "history").Logger(),
	}
	return &App{
		Workspace: opts.Workspace,
		Config:    cfg,
		DB:        conn,
		Engine:    e,
		Log:       log,
		Notifier:  dispatcher,
		logCloser: closer,
	}, nil
}

func decoderFor(cfg *config.Config, actorID string) auth.Decoder {
	if strings.TrimSpace(cfg.Auth.JWTSecret) != "" {
		return auth.JWT{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.Issuer}
	}
	if strings.TrimSpace(actorID) == "" {
		actorID = "local-user"
	}
	return auth.Static{ActorID: actorID}
}

// Token picks the credential a local command sends to the engine. An
// explicit token wins; without a JWT secret any token maps to the local actor.
func (a *App) Token(explicit string) string {
	if tok := strings.TrimSpace(explicit); tok != "" {
		return tok
	}
	if strings.TrimSpace(a.Config.Auth.JWTSecret) == "" {
		return localToken
	}
	return ""
}

// ResolveProject picks the project a command targets: the override when set,
// otherwise the only project in the workspace.
func (a *App) ResolveProject(ctx context.Context, override string) (string, error) {
	if id := strings.TrimSpace(override); id != "" {
		return id, nil
	}
	p, err := a.Engine.Repo.SingleProject(ctx)
	if errors.Is(err, repo.ErrNotFound) {
		return "", errors.New("project not specified; use --project or create one with sl project init")
	}
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// Close delivers pending webhooks and releases the database and log file.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.Notifier.Flush(ctx)
	return errors.Join(a.DB.Close(), a.logCloser.Close())
}
