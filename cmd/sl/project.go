package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sprintline/internal/app"
	"sprintline/internal/domain"
	"sprintline/internal/engine"
)

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectInitCmd(), projectListCmd(), projectShowCmd(), projectActiveCmd())
	return prj
}

func projectInitCmd() *cobra.Command {
	var opts engine.ProjectCreateOptions
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Engine.InitProject(ctx, a.Token(viper.GetString("token")), opts)
				if err != nil {
					return err
				}
				return printProjects([]domain.Project{p})
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "project id (generated when empty)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "project name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListProjects(ctx)
				if err != nil {
					return err
				}
				return printProjects(items)
			})
		},
	}
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, _ string) error {
				p, err := a.Engine.GetProject(ctx, pid)
				if err != nil {
					return err
				}
				return printProjects([]domain.Project{p})
			})
		},
	}
}

func projectActiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "List ids of user stories in ACTIVE sprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, _ string) error {
				ids, err := a.Engine.ActiveSprintUserStoryIDs(ctx, pid)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					if ids == nil {
						ids = []string{}
					}
					return printJSON(ids)
				}
				for _, id := range ids {
					fmt.Println(id)
				}
				return nil
			})
		},
	}
}
