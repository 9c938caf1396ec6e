package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"sprintline/internal/app"
	"sprintline/internal/auth"
	"sprintline/internal/config"
	"sprintline/internal/db"
	"sprintline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "sl",
	Short: "Sprintline CLI",
	Long: `Sprintline runs the sprint and user story lifecycle of a project.
- Sprints move PLANNED -> ACTIVE -> COMPLETED, may be CANCELED, and end ARCHIVED.
- User stories live in the backlog until assigned to a sprint within its capacity.
- A story in an ACTIVE sprint is BLOCKED while any story it depends on is not DONE.
- Every change is written to the history of the sprint or story it touched.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SPRINTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("actor-id", "local-user", "actor for local calls when no JWT secret is configured")
	flags.String("token", "", "bearer token (required when auth.jwt_secret is set)")
	flags.String("project", "", "project id (defaults to the only project)")
	flags.BoolP("verbose", "v", false, "log to stderr")
	for _, name := range []string{"workspace", "json", "actor-id", "token", "project", "verbose"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(sprintCmd())
	rootCmd.AddCommand(storyCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Manage sprintline.yml"}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default sprintline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.WriteDefault(viper.GetString("workspace"), force)
			if err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printYAMLOrJSON(cfg)
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate sprintline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(viper.GetString("workspace")); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	}

	cfgCmd.AddCommand(initCmd, showCmd, validateCmd)
	return cfgCmd
}

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with auth.jwt_secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			tok, err := auth.Issue(cfg.Auth.JWTSecret, cfg.Auth.Issuer, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "actor id carried by the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime; 0 for no expiry")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd.Context(), app.Options{
				Workspace: viper.GetString("workspace"),
				ActorID:   viper.GetString("actor-id"),
				Console:   os.Stderr,
			})
			if err != nil {
				return err
			}
			defer a.Close()
			if strings.TrimSpace(a.Config.Auth.JWTSecret) == "" {
				return errors.New("auth.jwt_secret is required to serve the API")
			}
			if !cmd.Flags().Changed("addr") {
				addr = a.Config.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") {
				basePath = a.Config.Server.BasePath
			}
			handler, err := server.New(server.Config{
				Engine:   a.Engine,
				BasePath: basePath,
				Log:      a.Log.With().Str("component", "http").Logger(),
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				err := a.Notifier.Run(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			g.Go(func() error {
				a.Log.Info().Str("addr", addr).Str("base_path", basePath).Msg("serving sprintline API")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withApp(cmd *cobra.Command, fn func(context.Context, *app.App) error) error {
	opts := app.Options{
		Workspace: viper.GetString("workspace"),
		ActorID:   viper.GetString("actor-id"),
	}
	if viper.GetBool("verbose") {
		opts.Console = os.Stderr
	}
	a, err := app.Open(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

// withProject resolves the target project and the caller's token.
func withProject(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, projectID, token string) error) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		pid, err := a.ResolveProject(ctx, viper.GetString("project"))
		if err != nil {
			return err
		}
		return fn(ctx, a, pid, a.Token(viper.GetString("token")))
	})
}
