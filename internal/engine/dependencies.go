package engine

import (
	"context"
	"errors"

	"sprintline/internal/domain"
	"sprintline/internal/repo"
)

// DependencyState is the verdict of the dependency resolver.
type DependencyState string

const (
	Unconstrained DependencyState = "UNCONSTRAINED"
	Blocked       DependencyState = "BLOCKED"
)

// missingPredecessorSatisfied decides how a predecessor id that resolves to no
// story counts. It counts as satisfied.
func missingPredecessorSatisfied(string) bool {
	return true
}

// EvaluateDependencies reports BLOCKED when any predecessor of u is not DONE.
func (e Engine) EvaluateDependencies(ctx context.Context, u domain.UserStory) (DependencyState, error) {
	return e.evaluateDependencies(ctx, e.DB, u)
}

func (e Engine) evaluateDependencies(ctx context.Context, q repo.Querier, u domain.UserStory) (DependencyState, error) {
	if len(u.DependsOn) == 0 {
		return Unconstrained, nil
	}
	preds, err := e.Repo.ListUserStoriesByIDs(ctx, q, u.DependsOn)
	if err != nil {
		return "", err
	}
	for _, id := range u.DependsOn {
		p, ok := preds[id]
		if !ok {
			if missingPredecessorSatisfied(id) {
				continue
			}
			return Blocked, nil
		}
		if p.Status != domain.StoryDone {
			return Blocked, nil
		}
	}
	return Unconstrained, nil
}

// derivedStatus is the status dependency evaluation gives u inside sprint.
// ok is false when the rule does not apply: the sprint is not ACTIVE or u is
// already DONE.
func (e Engine) derivedStatus(ctx context.Context, q repo.Querier, u domain.UserStory, sprint domain.Sprint) (domain.UserStoryStatus, bool, error) {
	if sprint.Status != domain.SprintActive || u.Status == domain.StoryDone {
		return u.Status, false, nil
	}
	state, err := e.evaluateDependencies(ctx, q, u)
	if err != nil {
		return u.Status, false, err
	}
	if state == Unconstrained {
		return domain.StoryInProgress, true, nil
	}
	return domain.StoryBlocked, true, nil
}

// recomputeStatus applies derivedStatus to u and saves it when the status
// moves. It writes no history.
func (e Engine) recomputeStatus(ctx context.Context, o *op, u domain.UserStory) (domain.UserStory, error) {
	if u.SprintID == nil {
		return u, nil
	}
	sprint, err := e.Repo.GetSprint(ctx, o.tx, *u.SprintID)
	if errors.Is(err, repo.ErrNotFound) {
		return u, nil
	}
	if err != nil {
		return u, err
	}
	status, ok, err := e.derivedStatus(ctx, o.tx, u, sprint)
	if err != nil || !ok || status == u.Status {
		return u, err
	}
	u.Status = status
	return e.saveStory(ctx, o, u)
}

// recomputeDependents refreshes every story that lists id as a predecessor.
func (e Engine) recomputeDependents(ctx context.Context, o *op, id string) error {
	dependents, err := e.Repo.ListDependents(ctx, o.tx, id)
	if err != nil {
		return err
	}
	for _, d := range dependents {
		if _, err := e.recomputeStatus(ctx, o, d); err != nil {
			return err
		}
	}
	return nil
}

// UpdateStatusBasedOnDependencies recomputes a story's derived status. It is
// a no-op outside an ACTIVE sprint and never regresses a DONE story.
func (e Engine) UpdateStatusBasedOnDependencies(ctx context.Context, projectID, storyID string) (domain.UserStory, error) {
	var out domain.UserStory
	err := e.run(ctx, "", func(o *op) error {
		u, err := e.loadStory(ctx, o.tx, projectID, storyID)
		if err != nil {
			return err
		}
		out, err = e.recomputeStatus(ctx, o, u)
		return err
	})
	return out, err
}

// cleanDependencies trims, drops duplicates and rejects a self reference.
func cleanDependencies(selfID string, deps []string) ([]string, error) {
	out := make([]string, 0, len(deps))
	seen := map[string]bool{}
	for _, d := range deps {
		if d == "" || seen[d] {
			continue
		}
		if d == selfID {
			return nil, invalidInput("Une User Story ne peut pas dépendre d'elle-même")
		}
		seen[d] = true
		out = append(out, d)
	}
	return out, nil
}

// ensureDependenciesExist checks every id names a story of the same project.
func (e Engine) ensureDependenciesExist(ctx context.Context, q repo.Querier, projectID string, deps []string) error {
	found, err := e.Repo.ListUserStoriesByIDs(ctx, q, deps)
	if err != nil {
		return err
	}
	for _, id := range deps {
		p, ok := found[id]
		if !ok {
			return newError(ErrNotFound, msgDependencyNotFound, id)
		}
		if p.ProjectID != projectID {
			return newError(ErrInvalidOwnership, msgUserStoryOwnership)
		}
	}
	return nil
}
