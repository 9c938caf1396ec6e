package main

import (
	"context"

	"github.com/spf13/cobra"

	"sprintline/internal/app"
	"sprintline/internal/domain"
	"sprintline/internal/engine"
)

func sprintCmd() *cobra.Command {
	sp := &cobra.Command{Use: "sprint", Short: "Plan and run sprints"}
	sp.AddCommand(
		sprintCreateCmd(),
		sprintListCmd(),
		sprintShowCmd(),
		sprintUpdateCmd(),
		sprintDeleteCmd(),
		sprintStoriesCmd(),
		sprintCapacityCmd(),
	)
	for _, tr := range []struct {
		use, short string
		call       func(engine.Engine, context.Context, string, string, string) (domain.Sprint, error)
	}{
		{"activate", "Activate a PLANNED sprint", engine.Engine.ActivateSprint},
		{"cancel", "Cancel a sprint and return its stories to the backlog", engine.Engine.CancelSprint},
		{"archive", "Archive a COMPLETED or CANCELED sprint", engine.Engine.ArchiveSprint},
		{"close-if-over", "Complete an ACTIVE sprint whose end date has passed", engine.Engine.UpdateSprintStatus},
		{"close-if-done", "Complete an ACTIVE sprint whose stories are all DONE", engine.Engine.CheckAndUpdateSprintStatus},
	} {
		call := tr.call
		sp.AddCommand(&cobra.Command{
			Use:   tr.use + " SPRINT_ID",
			Short: tr.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withProject(cmd, func(ctx context.Context, a *app.App, pid, tok string) error {
					s, err := call(a.Engine, ctx, tok, pid, args[0])
					if err != nil {
						return err
					}
					return printSprint(s)
				})
			},
		})
	}
	return sp
}

func sprintCreateCmd() *cobra.Command {
	var opts engine.SprintCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Plan a sprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, tok string) error {
				opts.ProjectID = pid
				s, err := a.Engine.CreateSprint(ctx, tok, opts)
				if err != nil {
					return err
				}
				return printSprint(s)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "sprint id (generated when empty)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "sprint name")
	cmd.Flags().StringVar(&opts.StartDate, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.EndDate, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Goal, "goal", "", "sprint goal")
	cmd.Flags().IntVar(&opts.Capacity, "capacity", 0, "capacity in effort points")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func sprintListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, _ string) error {
				items, err := a.Engine.ListSprints(ctx, pid)
				if err != nil {
					return err
				}
				return printSprints(items)
			})
		},
	}
}

func sprintShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show SPRINT_ID",
		Short: "Show a sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, _ string) error {
				s, err := a.Engine.GetSprint(ctx, pid, args[0])
				if err != nil {
					return err
				}
				return printSprint(s)
			})
		},
	}
}

func sprintUpdateCmd() *cobra.Command {
	var name, start, end, goal string
	var capacity int
	var version int64
	cmd := &cobra.Command{
		Use:   "update SPRINT_ID",
		Short: "Edit sprint planning fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.SprintUpdateOptions{ID: args[0], Version: version}
			flags := cmd.Flags()
			if flags.Changed("name") {
				opts.Name = &name
			}
			if flags.Changed("start") {
				opts.StartDate = &start
			}
			if flags.Changed("end") {
				opts.EndDate = &end
			}
			if flags.Changed("goal") {
				opts.Goal = &goal
			}
			if flags.Changed("capacity") {
				opts.Capacity = &capacity
			}
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, tok string) error {
				opts.ProjectID = pid
				s, err := a.Engine.UpdateSprint(ctx, tok, opts)
				if err != nil {
					return err
				}
				return printSprint(s)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "sprint name")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&goal, "goal", "", "sprint goal")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "capacity in effort points")
	cmd.Flags().Int64Var(&version, "version", 0, "expected version (0 skips the check)")
	return cmd
}

func sprintDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete SPRINT_ID",
		Short: "Delete a sprint and return its stories to the backlog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, tok string) error {
				return a.Engine.DeleteSprint(ctx, tok, pid, args[0])
			})
		},
	}
}

func sprintStoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stories SPRINT_ID",
		Short: "List the stories assigned to a sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, _ string) error {
				items, err := a.Engine.ListSprintUserStories(ctx, pid, args[0])
				if err != nil {
					return err
				}
				return printStories(items)
			})
		},
	}
}

func sprintCapacityCmd() *cobra.Command {
	var candidate string
	var effort int
	cmd := &cobra.Command{
		Use:   "capacity SPRINT_ID",
		Short: "Check whether extra effort fits the sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, _ string) error {
				s, err := a.Engine.GetSprint(ctx, pid, args[0])
				if err != nil {
					return err
				}
				res, err := a.Engine.CheckCapacity(ctx, s, candidate, effort)
				if err != nil {
					return err
				}
				return printValue("result", res)
			})
		},
	}
	cmd.Flags().StringVar(&candidate, "story", "", "story already counted in the sprint, if any")
	cmd.Flags().IntVar(&effort, "effort", 0, "effort points to add")
	return cmd
}
