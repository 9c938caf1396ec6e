package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"sprintline/internal/domain"
	"sprintline/internal/engine"
)

type SprintPath struct {
	ProjectID string `path:"project_id"`
	SprintID  string `path:"sprint_id"`
}

type SprintAction struct {
	AuthHeader
	ProjectID string `path:"project_id"`
	SprintID  string `path:"sprint_id"`
}

type sprintBody struct {
	Body domain.Sprint `json:"body"`
}

var sprintErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusNotFound,
	http.StatusConflict,
}

// sprintTransitions are the lifecycle endpoints sharing one input shape.
var sprintTransitions = []struct {
	id, path, summary string
	call              func(engine.Engine, context.Context, string, string, string) (domain.Sprint, error)
}{
	{"activate-sprint", "activate", "Activate a PLANNED sprint", engine.Engine.ActivateSprint},
	{"cancel-sprint", "cancel", "Cancel a sprint and return its stories to the backlog", engine.Engine.CancelSprint},
	{"archive-sprint", "archive", "Archive a COMPLETED or CANCELED sprint", engine.Engine.ArchiveSprint},
	{"update-sprint-status", "update-status", "Complete an ACTIVE sprint whose end date has passed", engine.Engine.UpdateSprintStatus},
	{"check-sprint-status", "check-status", "Complete an ACTIVE sprint whose stories are all DONE", engine.Engine.CheckAndUpdateSprintStatus},
}

func registerSprints(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-sprint",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/sprints",
		Summary:       "Plan a sprint",
		DefaultStatus: http.StatusCreated,
		Errors:        sprintErrors,
	}, func(ctx context.Context, input *struct {
		AuthHeader
		ProjectID string              `path:"project_id"`
		Body      CreateSprintRequest `json:"body"`
	}) (*sprintBody, error) {
		tok, herr := input.token()
		if herr != nil {
			return nil, herr
		}
		s, err := e.CreateSprint(ctx, tok, engine.SprintCreateOptions{
			ID:        input.Body.ID,
			ProjectID: input.ProjectID,
			Name:      input.Body.Name,
			StartDate: input.Body.StartDate,
			EndDate:   input.Body.EndDate,
			Goal:      input.Body.Goal,
			Capacity:  input.Body.Capacity,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &sprintBody{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sprints",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/sprints",
		Summary:     "List sprints",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ProjectPath) (*struct {
		Body []domain.Sprint `json:"body"`
	}, error) {
		items, err := e.ListSprints(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Sprint `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-sprint",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/sprints/{sprint_id}",
		Summary:     "Get sprint",
		Errors:      sprintErrors,
	}, func(ctx context.Context, input *SprintPath) (*sprintBody, error) {
		s, err := e.GetSprint(ctx, input.ProjectID, input.SprintID)
		if err != nil {
			return nil, handleError(err)
		}
		return &sprintBody{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-sprint",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/sprints/{sprint_id}",
		Summary:     "Edit sprint planning fields",
		Errors:      sprintErrors,
	}, func(ctx context.Context, input *struct {
		SprintAction
		Body UpdateSprintRequest `json:"body"`
	}) (*sprintBody, error) {
		tok, herr := input.token()
		if herr != nil {
			return nil, herr
		}
		s, err := e.UpdateSprint(ctx, tok, engine.SprintUpdateOptions{
			ID:        input.SprintID,
			ProjectID: input.ProjectID,
			Name:      input.Body.Name,
			StartDate: input.Body.StartDate,
			EndDate:   input.Body.EndDate,
			Goal:      input.Body.Goal,
			Capacity:  input.Body.Capacity,
			Version:   input.Body.Version,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &sprintBody{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-sprint",
		Method:        http.MethodDelete,
		Path:          "/projects/{project_id}/sprints/{sprint_id}",
		Summary:       "Delete sprint",
		DefaultStatus: http.StatusNoContent,
		Errors:        sprintErrors,
	}, func(ctx context.Context, input *SprintAction) (*struct{}, error) {
		tok, herr := input.token()
		if herr != nil {
			return nil, herr
		}
		if err := e.DeleteSprint(ctx, tok, input.ProjectID, input.SprintID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	for _, tr := range sprintTransitions {
		call := tr.call
		huma.Register(api, huma.Operation{
			OperationID: tr.id,
			Method:      http.MethodPost,
			Path:        "/projects/{project_id}/sprints/{sprint_id}/" + tr.path,
			Summary:     tr.summary,
			Errors:      sprintErrors,
		}, func(ctx context.Context, input *SprintAction) (*sprintBody, error) {
			tok, herr := input.token()
			if herr != nil {
				return nil, herr
			}
			s, err := call(e, ctx, tok, input.ProjectID, input.SprintID)
			if err != nil {
				return nil, handleError(err)
			}
			return &sprintBody{Body: s}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "check-sprint-capacity",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/sprints/{sprint_id}/capacity",
		Summary:     "Check whether extra effort fits the sprint",
		Errors:      sprintErrors,
	}, func(ctx context.Context, input *struct {
		SprintPath
		UserStoryID string `query:"user_story_id" doc:"Candidate already counted in the sprint, if any"`
		Effort      int    `query:"effort" minimum:"0"`
	}) (*struct {
		Body CapacityResponse `json:"body"`
	}, error) {
		s, err := e.GetSprint(ctx, input.ProjectID, input.SprintID)
		if err != nil {
			return nil, handleError(err)
		}
		res, err := e.CheckCapacity(ctx, s, input.UserStoryID, input.Effort)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CapacityResponse `json:"body"`
		}{Body: CapacityResponse{SprintID: s.ID, UserStoryID: input.UserStoryID, Effort: input.Effort, Result: res}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sprint-user-stories",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/sprints/{sprint_id}/user-stories",
		Summary:     "List the stories assigned to a sprint",
		Errors:      sprintErrors,
	}, func(ctx context.Context, input *SprintPath) (*struct {
		Body []domain.UserStory `json:"body"`
	}, error) {
		items, err := e.ListSprintUserStories(ctx, input.ProjectID, input.SprintID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.UserStory `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sprint-history",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/sprints/{sprint_id}/history",
		Summary:     "Sprint audit trail, newest first",
		Errors:      sprintErrors,
	}, func(ctx context.Context, input *struct {
		SprintPath
		Limit int `query:"limit" minimum:"0"`
	}) (*struct {
		Body HistoryResponse `json:"body"`
	}, error) {
		items, err := e.SprintHistory(ctx, input.ProjectID, input.SprintID, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body HistoryResponse `json:"body"`
		}{Body: historyResponse(items)}, nil
	})
}
