package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sprintline/internal/auth"
	"sprintline/internal/config"
	"sprintline/internal/domain"
	"sprintline/internal/history"
	"sprintline/internal/repo"
)

// ChildLister reports the tasks and bugs owned by a user story.
type ChildLister interface {
	ListChildWorkItems(ctx context.Context, projectID, userStoryID, token string) ([]domain.ChildItem, error)
}

// Recorder stores audit entries once their change is committed.
type Recorder interface {
	Record(ctx context.Context, entries ...domain.HistoryEntry)
}

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Auth    auth.Decoder
	Tasks   ChildLister
	History Recorder
	Config  *config.Config
	Log     zerolog.Logger
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:      db,
		Repo:    r,
		History: history.Recorder{Repo: r, Log: zerolog.Nop()},
		Config:  cfg,
		Log:     zerolog.Nop(),
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) authenticate(ctx context.Context, token string) (string, error) {
	if e.Auth == nil {
		return "", newError(ErrInvalidAuthentication, msgInvalidAuthentication)
	}
	actor, err := e.Auth.Decode(ctx, token)
	if err != nil || strings.TrimSpace(actor) == "" {
		e.Log.Debug().Err(err).Msg("engine: credential rejected")
		return "", newError(ErrInvalidAuthentication, msgInvalidAuthentication)
	}
	return actor, nil
}

func (e Engine) legacyActionCodes() bool {
	return e.Config != nil && e.Config.History.LegacyActionCodes
}

// ProjectCreateOptions are parameters for creating a project.
type ProjectCreateOptions struct {
	ID          string
	Name        string
	Description string
}

// InitProject creates the project that sprints and stories hang off.
func (e Engine) InitProject(ctx context.Context, token string, opts ProjectCreateOptions) (domain.Project, error) {
	actor, err := e.authenticate(ctx, token)
	if err != nil {
		return domain.Project{}, err
	}
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Project{}, invalidInput("Le nom du projet est obligatoire")
	}
	p := domain.Project{
		ID:          opts.ID,
		Name:        strings.TrimSpace(opts.Name),
		Description: opts.Description,
		CreatedBy:   actor,
		CreatedAt:   e.now().UTC().Format(time.RFC3339),
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, err := e.Repo.GetProject(ctx, nil, p.ID); err == nil {
		return domain.Project{}, invalidInput("Le projet existe déjà : %s", p.ID)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Project{}, err
	}
	if err := e.Repo.InsertProject(ctx, nil, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	e.Log.Info().Str("project_id", p.ID).Str("actor", actor).Msg("project created")
	return p, nil
}

func (e Engine) loadProject(ctx context.Context, q repo.Querier, id string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, q, id)
	if errors.Is(err, repo.ErrNotFound) {
		return p, newError(ErrNotFound, msgProjectNotFound, id)
	}
	return p, err
}

// loadSprint fetches a sprint and checks it belongs to projectID.
func (e Engine) loadSprint(ctx context.Context, q repo.Querier, projectID, id string) (domain.Sprint, error) {
	s, err := e.Repo.GetSprint(ctx, q, id)
	if errors.Is(err, repo.ErrNotFound) {
		return s, newError(ErrNotFound, msgSprintNotFound, id)
	}
	if err != nil {
		return s, err
	}
	if s.ProjectID != projectID {
		return s, newError(ErrInvalidOwnership, msgSprintOwnership)
	}
	return s, nil
}

// loadStory fetches a user story and checks it belongs to projectID.
func (e Engine) loadStory(ctx context.Context, q repo.Querier, projectID, id string) (domain.UserStory, error) {
	u, err := e.Repo.GetUserStory(ctx, q, id)
	if errors.Is(err, repo.ErrNotFound) {
		return u, newError(ErrNotFound, msgUserStoryNotFound, id)
	}
	if err != nil {
		return u, err
	}
	if u.ProjectID != projectID {
		return u, newError(ErrInvalidOwnership, msgUserStoryOwnership)
	}
	return u, nil
}
