package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sprintline/internal/app"
	"sprintline/internal/engine"
)

func storyCmd() *cobra.Command {
	st := &cobra.Command{Use: "story", Short: "Manage user stories"}
	st.AddCommand(
		storyCreateCmd(),
		storyListCmd(),
		storyShowCmd(),
		storyUpdateCmd(),
		storyDeleteCmd(),
		storyDepsCmd(),
		storyStatusCmd(),
		storyRollupCmd(),
		storyRecomputeCmd(),
		storyAssignCmd(),
		storyUnassignCmd(),
	)
	return st
}

func storyCreateCmd() *cobra.Command {
	var opts engine.UserStoryCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a user story to the backlog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, tok string) error {
				opts.ProjectID = pid
				u, err := a.Engine.CreateUserStory(ctx, tok, opts)
				if err != nil {
					return err
				}
				return printStory(u)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "story id (generated when empty)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().IntVar(&opts.EffortPoints, "effort", 0, "effort points")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "LOW, MEDIUM, HIGH or CRITICAL")
	cmd.Flags().StringSliceVar(&opts.DependsOn, "depends-on", nil, "ids of stories this one depends on")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func storyListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List user stories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, _ string) error {
				items, err := a.Engine.ListUserStories(ctx, pid, status)
				if err != nil {
					return err
				}
				return printStories(items)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func storyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show STORY_ID",
		Short: "Show a user story and its dependency state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, _ string) error {
				u, err := a.Engine.GetUserStory(ctx, pid, args[0])
				if err != nil {
					return err
				}
				state, err := a.Engine.EvaluateDependencies(ctx, u)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"user_story": u, "dependencies": state})
				}
				if err := printStory(u); err != nil {
					return err
				}
				return printValue("dependencies", state)
			})
		},
	}
}

func storyUpdateCmd() *cobra.Command {
	var title, description, priority string
	var effort int
	var version int64
	cmd := &cobra.Command{
		Use:   "update STORY_ID",
		Short: "Edit a user story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.UserStoryUpdateOptions{ID: args[0], Version: version}
			flags := cmd.Flags()
			if flags.Changed("title") {
				opts.Title = &title
			}
			if flags.Changed("description") {
				opts.Description = &description
			}
			if flags.Changed("priority") {
				opts.Priority = &priority
			}
			if flags.Changed("effort") {
				opts.EffortPoints = &effort
			}
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, tok string) error {
				opts.ProjectID = pid
				u, err := a.Engine.UpdateUserStory(ctx, tok, opts)
				if err != nil {
					return err
				}
				return printStory(u)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", "", "LOW, MEDIUM, HIGH or CRITICAL")
	cmd.Flags().IntVar(&effort, "effort", 0, "effort points")
	cmd.Flags().Int64Var(&version, "version", 0, "expected version (0 skips the check)")
	return cmd
}

func storyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete STORY_ID",
		Short: "Delete a user story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, tok string) error {
				return a.Engine.DeleteUserStory(ctx, tok, pid, args[0])
			})
		},
	}
}

func storyDepsCmd() *cobra.Command {
	var deps []string
	cmd := &cobra.Command{
		Use:   "deps STORY_ID",
		Short: "Replace the dependency list of a user story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, tok string) error {
				u, err := a.Engine.UpdateDependencies(ctx, tok, pid, args[0], deps)
				if err != nil {
					return err
				}
				return printStory(u)
			})
		},
	}
	cmd.Flags().StringSliceVar(&deps, "depends-on", nil, "ids of stories this one depends on (empty clears)")
	return cmd
}

func storyStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status STORY_ID STATUS",
		Short: "Set a user story status explicitly",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, tok string) error {
				u, err := a.Engine.UpdateUserStoryStatus(ctx, tok, pid, args[0], args[1])
				if err != nil {
					return err
				}
				return printStory(u)
			})
		},
	}
}

func storyRollupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollup STORY_ID",
		Short: "Mark the story DONE when the task service reports all its children done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, tok string) error {
				u, err := a.Engine.CheckAndUpdateUserStoryStatus(ctx, tok, pid, args[0])
				if err != nil {
					return err
				}
				return printStory(u)
			})
		},
	}
}

func storyRecomputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute STORY_ID",
		Short: "Re-derive the status from dependencies inside an ACTIVE sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, _ string) error {
				u, err := a.Engine.UpdateStatusBasedOnDependencies(ctx, pid, args[0])
				if err != nil {
					return err
				}
				return printStory(u)
			})
		},
	}
}

func storyAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign STORY_ID SPRINT_ID",
		Short: "Assign a user story to a sprint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, tok string) error {
				u, err := a.Engine.AssignUserStoryToSprint(ctx, tok, pid, args[0], args[1])
				if err != nil {
					return err
				}
				return printStory(u)
			})
		},
	}
}

func storyUnassignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unassign STORY_ID",
		Short: "Return a user story to the backlog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, tok string) error {
				u, err := a.Engine.RemoveUserStoryFromSprint(ctx, tok, pid, args[0])
				if err != nil {
					return err
				}
				return printStory(u)
			})
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int
	h := &cobra.Command{Use: "history", Short: "Show audit trails, newest first"}
	sprint := &cobra.Command{
		Use:   "sprint SPRINT_ID",
		Short: "History of a sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, _ string) error {
				items, err := a.Engine.SprintHistory(ctx, pid, args[0], limit)
				if err != nil {
					return err
				}
				return printHistory(items)
			})
		},
	}
	story := &cobra.Command{
		Use:   "story STORY_ID",
		Short: "History of a user story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, a *app.App, pid, _ string) error {
				items, err := a.Engine.UserStoryHistory(ctx, pid, args[0], limit)
				if err != nil {
					return err
				}
				return printHistory(items)
			})
		},
	}
	h.PersistentFlags().IntVarP(&limit, "limit", "n", 20, "number of entries (0 for all)")
	h.AddCommand(sprint, story)
	return h
}
