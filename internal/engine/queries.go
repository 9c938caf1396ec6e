package engine

import (
	"context"

	"sprintline/internal/domain"
)

func (e Engine) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	return e.loadProject(ctx, e.DB, projectID)
}

func (e Engine) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return e.Repo.ListProjects(ctx)
}

func (e Engine) GetSprint(ctx context.Context, projectID, sprintID string) (domain.Sprint, error) {
	return e.loadSprint(ctx, e.DB, projectID, sprintID)
}

func (e Engine) ListSprints(ctx context.Context, projectID string) ([]domain.Sprint, error) {
	if _, err := e.loadProject(ctx, e.DB, projectID); err != nil {
		return nil, err
	}
	sprints, err := e.Repo.ListSprints(ctx, e.DB, projectID)
	if sprints == nil && err == nil {
		sprints = []domain.Sprint{}
	}
	return sprints, err
}

func (e Engine) GetUserStory(ctx context.Context, projectID, storyID string) (domain.UserStory, error) {
	return e.loadStory(ctx, e.DB, projectID, storyID)
}

// ListUserStories lists a project's stories; status, when set, narrows the list.
func (e Engine) ListUserStories(ctx context.Context, projectID, status string) ([]domain.UserStory, error) {
	if _, err := e.loadProject(ctx, e.DB, projectID); err != nil {
		return nil, err
	}
	if status != "" {
		parsed, err := domain.ParseUserStoryStatus(status)
		if err != nil {
			return nil, invalidInput("Statut invalide : %s", status)
		}
		status = string(parsed)
	}
	stories, err := e.Repo.ListUserStories(ctx, e.DB, projectID, status)
	if stories == nil && err == nil {
		stories = []domain.UserStory{}
	}
	return stories, err
}

func (e Engine) ListSprintUserStories(ctx context.Context, projectID, sprintID string) ([]domain.UserStory, error) {
	if _, err := e.loadSprint(ctx, e.DB, projectID, sprintID); err != nil {
		return nil, err
	}
	stories, err := e.Repo.ListUserStoriesBySprint(ctx, e.DB, sprintID)
	if stories == nil && err == nil {
		stories = []domain.UserStory{}
	}
	return stories, err
}

// ActiveSprintUserStoryIDs lists the stories currently in play across the
// project's ACTIVE sprints.
func (e Engine) ActiveSprintUserStoryIDs(ctx context.Context, projectID string) ([]string, error) {
	if _, err := e.loadProject(ctx, e.DB, projectID); err != nil {
		return nil, err
	}
	return e.Repo.ActiveSprintUserStoryIDs(ctx, e.DB, projectID)
}

// SprintHistory returns a sprint's audit trail, newest first. It still
// answers after the sprint is deleted.
func (e Engine) SprintHistory(ctx context.Context, projectID, sprintID string, limit int) ([]domain.HistoryEntry, error) {
	if _, err := e.loadProject(ctx, e.DB, projectID); err != nil {
		return nil, err
	}
	if s, err := e.Repo.GetSprint(ctx, e.DB, sprintID); err == nil && s.ProjectID != projectID {
		return nil, newError(ErrInvalidOwnership, msgSprintOwnership)
	}
	return e.Repo.ListHistory(ctx, e.DB, domain.SubjectSprint, sprintID, limit)
}

func (e Engine) UserStoryHistory(ctx context.Context, projectID, storyID string, limit int) ([]domain.HistoryEntry, error) {
	if _, err := e.loadProject(ctx, e.DB, projectID); err != nil {
		return nil, err
	}
	if u, err := e.Repo.GetUserStory(ctx, e.DB, storyID); err == nil && u.ProjectID != projectID {
		return nil, newError(ErrInvalidOwnership, msgUserStoryOwnership)
	}
	return e.Repo.ListHistory(ctx, e.DB, domain.SubjectUserStory, storyID, limit)
}
