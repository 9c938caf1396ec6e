package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"sprintline/internal/domain"
)

// UserStoryCreateOptions are parameters for creating a user story.
type UserStoryCreateOptions struct {
	ID           string
	ProjectID    string
	Title        string
	Description  string
	EffortPoints int
	Priority     string
	DependsOn    []string
}

// CreateUserStory adds a story to the project backlog.
func (e Engine) CreateUserStory(ctx context.Context, token string, opts UserStoryCreateOptions) (domain.UserStory, error) {
	actor, err := e.authenticate(ctx, token)
	if err != nil {
		return domain.UserStory{}, err
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.UserStory{}, invalidInput("Le titre de la User Story est obligatoire")
	}
	if opts.EffortPoints < 0 {
		return domain.UserStory{}, invalidInput("L'effort doit être positif ou nul")
	}
	priority, err := domain.ParsePriority(opts.Priority)
	if err != nil {
		return domain.UserStory{}, invalidInput("Priorité invalide : %s", opts.Priority)
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	deps, err := cleanDependencies(id, opts.DependsOn)
	if err != nil {
		return domain.UserStory{}, err
	}
	var out domain.UserStory
	err = e.run(ctx, actor, func(o *op) error {
		if _, err := e.loadProject(ctx, o.tx, opts.ProjectID); err != nil {
			return err
		}
		if err := e.ensureDependenciesExist(ctx, o.tx, opts.ProjectID, deps); err != nil {
			return err
		}
		u := domain.UserStory{
			ID:           id,
			ProjectID:    opts.ProjectID,
			Title:        title,
			Description:  opts.Description,
			EffortPoints: opts.EffortPoints,
			Status:       domain.StoryBacklog,
			Priority:     priority,
			DependsOn:    deps,
			CreatedBy:    actor,
			CreatedAt:    o.ts(),
			UpdatedAt:    o.ts(),
		}
		out, err = e.Repo.InsertUserStory(ctx, o.tx, u)
		if err != nil {
			return fmt.Errorf("insert user story: %w", err)
		}
		o.record(domain.SubjectUserStory, u.ID, domain.ActionCreate, "User Story créée : "+u.Title)
		return nil
	})
	return out, err
}

// UserStoryUpdateOptions carries the fields to change; nil leaves a field as is.
type UserStoryUpdateOptions struct {
	ID           string
	ProjectID    string
	Title        *string
	Description  *string
	EffortPoints *int
	Priority     *string
	Version      int64
}

// UpdateUserStory edits a story's descriptive fields. An effort change on an
// assigned story is checked against the sprint capacity.
func (e Engine) UpdateUserStory(ctx context.Context, token string, opts UserStoryUpdateOptions) (domain.UserStory, error) {
	actor, err := e.authenticate(ctx, token)
	if err != nil {
		return domain.UserStory{}, err
	}
	var out domain.UserStory
	err = e.run(ctx, actor, func(o *op) error {
		u, err := e.loadStory(ctx, o.tx, opts.ProjectID, opts.ID)
		if err != nil {
			return err
		}
		if err := expectVersion(opts.Version, u.Version); err != nil {
			return err
		}
		if opts.Title != nil {
			title := strings.TrimSpace(*opts.Title)
			if title == "" {
				return invalidInput("Le titre de la User Story est obligatoire")
			}
			u.Title = title
		}
		if opts.Description != nil {
			u.Description = *opts.Description
		}
		if opts.Priority != nil {
			p, err := domain.ParsePriority(*opts.Priority)
			if err != nil {
				return invalidInput("Priorité invalide : %s", *opts.Priority)
			}
			u.Priority = p
		}
		if opts.EffortPoints != nil {
			if *opts.EffortPoints < 0 {
				return invalidInput("L'effort doit être positif ou nul")
			}
			if *opts.EffortPoints != u.EffortPoints && u.SprintID != nil {
				sprint, err := e.loadSprint(ctx, o.tx, opts.ProjectID, *u.SprintID)
				if err != nil {
					return err
				}
				res, err := e.checkCapacity(ctx, o.tx, sprint, u.ID, *opts.EffortPoints)
				if err != nil {
					return err
				}
				if res == CapacityExceeded {
					return newError(ErrCapacityExceeded, msgCapacityExceeded)
				}
			}
			u.EffortPoints = *opts.EffortPoints
		}
		out, err = e.saveStory(ctx, o, u)
		if err != nil {
			return err
		}
		o.record(domain.SubjectUserStory, u.ID, domain.ActionUpdate, "User Story mise à jour : "+u.Title)
		return nil
	})
	return out, err
}

// DeleteUserStory removes a story, unlinks it from its sprint and strips it
// from every other story's dependency list.
func (e Engine) DeleteUserStory(ctx context.Context, token, projectID, storyID string) error {
	actor, err := e.authenticate(ctx, token)
	if err != nil {
		return err
	}
	return e.run(ctx, actor, func(o *op) error {
		u, err := e.loadStory(ctx, o.tx, projectID, storyID)
		if err != nil {
			return err
		}
		dependents, err := e.Repo.ListDependents(ctx, o.tx, u.ID)
		if err != nil {
			return err
		}
		if err := e.Repo.RemoveDependencyEverywhere(ctx, o.tx, u.ID, o.ts()); err != nil {
			return err
		}
		if err := guard(e.Repo.DeleteUserStory(ctx, o.tx, u)); err != nil {
			return err
		}
		for _, d := range dependents {
			fresh, err := e.Repo.GetUserStory(ctx, o.tx, d.ID)
			if err != nil {
				return err
			}
			if _, err := e.recomputeStatus(ctx, o, fresh); err != nil {
				return err
			}
		}
		o.record(domain.SubjectUserStory, u.ID, domain.ActionDelete, "User Story supprimée : "+u.Title)
		return nil
	})
}

// UpdateDependencies replaces a story's predecessor list and recomputes its
// derived status.
func (e Engine) UpdateDependencies(ctx context.Context, token, projectID, storyID string, dependsOn []string) (domain.UserStory, error) {
	actor, err := e.authenticate(ctx, token)
	if err != nil {
		return domain.UserStory{}, err
	}
	deps, err := cleanDependencies(storyID, dependsOn)
	if err != nil {
		return domain.UserStory{}, err
	}
	var out domain.UserStory
	err = e.run(ctx, actor, func(o *op) error {
		u, err := e.loadStory(ctx, o.tx, projectID, storyID)
		if err != nil {
			return err
		}
		if err := e.ensureDependenciesExist(ctx, o.tx, projectID, deps); err != nil {
			return err
		}
		u.DependsOn = deps
		if u.SprintID != nil {
			sprint, err := e.loadSprint(ctx, o.tx, projectID, *u.SprintID)
			if err != nil {
				return err
			}
			status, ok, err := e.derivedStatus(ctx, o.tx, u, sprint)
			if err != nil {
				return err
			}
			if ok {
				u.Status = status
			}
		}
		out, err = e.saveStory(ctx, o, u)
		if err != nil {
			return err
		}
		o.record(domain.SubjectUserStory, u.ID, domain.ActionUpdateDependencies,
			fmt.Sprintf("Dépendances mises à jour : [%s]", strings.Join(deps, ", ")))
		return nil
	})
	return out, err
}

// UpdateUserStoryStatus sets a status requested by a user. BLOCKED is only
// accepted while at least one predecessor is unfinished.
func (e Engine) UpdateUserStoryStatus(ctx context.Context, token, projectID, storyID, requested string) (domain.UserStory, error) {
	actor, err := e.authenticate(ctx, token)
	if err != nil {
		return domain.UserStory{}, err
	}
	status, err := domain.ParseUserStoryStatus(requested)
	if err != nil {
		return domain.UserStory{}, invalidInput("Statut invalide : %s", requested)
	}
	var out domain.UserStory
	err = e.run(ctx, actor, func(o *op) error {
		u, err := e.loadStory(ctx, o.tx, projectID, storyID)
		if err != nil {
			return err
		}
		if status == domain.StoryBlocked {
			state, err := e.evaluateDependencies(ctx, o.tx, u)
			if err != nil {
				return err
			}
			if state != Blocked {
				return newError(ErrInvalidTransition, msgBlockedWithoutDeps)
			}
		}
		old := u.Status
		u.Status = status
		out, err = e.saveStory(ctx, o, u)
		if err != nil {
			return err
		}
		if status == domain.StoryDone {
			if err := e.recomputeDependents(ctx, o, u.ID); err != nil {
				return err
			}
		}
		o.record(domain.SubjectUserStory, u.ID, domain.ActionUpdateUserStoryStatus,
			fmt.Sprintf("Statut mis à jour : %s → %s", old, status))
		return nil
	})
	return out, err
}

// CheckAndUpdateUserStoryStatus marks a story DONE once the task service
// reports all of its children DONE, then lets the owning sprint complete. An
// empty token is an internal callback and is attributed to the system actor.
func (e Engine) CheckAndUpdateUserStoryStatus(ctx context.Context, token, projectID, storyID string) (domain.UserStory, error) {
	actor := e.Config.SystemActor()
	if token != "" {
		var err error
		if actor, err = e.authenticate(ctx, token); err != nil {
			return domain.UserStory{}, err
		}
	}
	if _, err := e.loadProject(ctx, e.DB, projectID); err != nil {
		return domain.UserStory{}, err
	}
	current, err := e.loadStory(ctx, e.DB, projectID, storyID)
	if err != nil {
		return domain.UserStory{}, err
	}
	if e.Tasks == nil {
		return current, fmt.Errorf("task service not configured")
	}
	children, err := e.Tasks.ListChildWorkItems(ctx, projectID, storyID, token)
	if err != nil {
		return current, fmt.Errorf("list child work items: %w", err)
	}
	if !allChildrenDone(children) {
		e.Log.Debug().Str("user_story_id", storyID).Int("children", len(children)).Msg("rollup: children not finished")
		return current, nil
	}
	out := current
	err = e.run(ctx, actor, func(o *op) error {
		u, err := e.loadStory(ctx, o.tx, projectID, storyID)
		if err != nil {
			return err
		}
		out = u
		// A story already DONE (redelivery, or set by hand) is not saved
		// again, but its sprint may still be waiting to close.
		if u.Status != domain.StoryDone {
			old := u.Status
			u.Status = domain.StoryDone
			out, err = e.saveStory(ctx, o, u)
			if err != nil {
				return err
			}
			o.record(domain.SubjectUserStory, u.ID, domain.ActionUpdateStatus,
				fmt.Sprintf("Statut mis à jour automatiquement : %s → %s", old, domain.StoryDone))
			if err := e.recomputeDependents(ctx, o, u.ID); err != nil {
				return err
			}
		}
		if u.SprintID == nil {
			return nil
		}
		sprint, err := e.Repo.GetSprint(ctx, o.tx, *u.SprintID)
		if err != nil {
			return guard(err)
		}
		_, err = e.completeIfAllDone(ctx, o, sprint)
		return err
	})
	return out, err
}

func allChildrenDone(children []domain.ChildItem) bool {
	if len(children) == 0 {
		return false
	}
	for _, c := range children {
		if !c.Done() {
			return false
		}
	}
	return true
}

// AssignUserStoryToSprint moves a story into a sprint when capacity allows.
// A BACKLOG story becomes TODO; inside an ACTIVE sprint its status follows
// its dependencies.
func (e Engine) AssignUserStoryToSprint(ctx context.Context, token, projectID, storyID, sprintID string) (domain.UserStory, error) {
	actor, err := e.authenticate(ctx, token)
	if err != nil {
		return domain.UserStory{}, err
	}
	var out domain.UserStory
	err = e.run(ctx, actor, func(o *op) error {
		u, err := e.loadStory(ctx, o.tx, projectID, storyID)
		if err != nil {
			return err
		}
		sprint, err := e.loadSprint(ctx, o.tx, projectID, sprintID)
		if err != nil {
			return err
		}
		switch sprint.Status {
		case domain.SprintCompleted, domain.SprintCanceled, domain.SprintArchived:
			return newError(ErrInvalidTransition, msgAssignClosedSprint)
		}
		res, err := e.checkCapacity(ctx, o.tx, sprint, u.ID, u.EffortPoints)
		if err != nil {
			return err
		}
		if res == CapacityExceeded {
			return newError(ErrCapacityExceeded, msgCapacityExceeded)
		}
		u.SprintID = &sprint.ID
		if u.Status == domain.StoryBacklog {
			u.Status = domain.StoryTodo
		}
		status, ok, err := e.derivedStatus(ctx, o.tx, u, sprint)
		if err != nil {
			return err
		}
		if ok {
			u.Status = status
		}
		out, err = e.saveStory(ctx, o, u)
		if err != nil {
			return err
		}
		o.record(domain.SubjectUserStory, u.ID, domain.ActionAssignToSprint, "User Story assignée au sprint : "+sprint.Name)
		return nil
	})
	return out, err
}

// RemoveUserStoryFromSprint sends a story back to the backlog.
func (e Engine) RemoveUserStoryFromSprint(ctx context.Context, token, projectID, storyID string) (domain.UserStory, error) {
	actor, err := e.authenticate(ctx, token)
	if err != nil {
		return domain.UserStory{}, err
	}
	action := domain.ActionUnassignFromSprint
	if e.legacyActionCodes() {
		action = domain.ActionDelete
	}
	var out domain.UserStory
	err = e.run(ctx, actor, func(o *op) error {
		u, err := e.loadStory(ctx, o.tx, projectID, storyID)
		if err != nil {
			return err
		}
		if u.SprintID == nil {
			return newError(ErrInvalidTransition, msgNotInSprint)
		}
		sprintID := *u.SprintID
		u.SprintID = nil
		u.Status = domain.StoryBacklog
		out, err = e.saveStory(ctx, o, u)
		if err != nil {
			return err
		}
		o.record(domain.SubjectUserStory, u.ID, action, "User Story retirée du sprint : "+sprintID)
		return nil
	})
	return out, err
}
