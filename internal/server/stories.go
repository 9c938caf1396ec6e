package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"sprintline/internal/domain"
	"sprintline/internal/engine"
)

type UserStoryPath struct {
	ProjectID   string `path:"project_id"`
	UserStoryID string `path:"user_story_id"`
}

type UserStoryAction struct {
	AuthHeader
	ProjectID   string `path:"project_id"`
	UserStoryID string `path:"user_story_id"`
}

type userStoryBody struct {
	Body domain.UserStory `json:"body"`
}

var userStoryErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusNotFound,
	http.StatusConflict,
}

func registerUserStories(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-user-story",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/user-stories",
		Summary:       "Add a user story to the backlog",
		DefaultStatus: http.StatusCreated,
		Errors:        userStoryErrors,
	}, func(ctx context.Context, input *struct {
		AuthHeader
		ProjectID string                 `path:"project_id"`
		Body      CreateUserStoryRequest `json:"body"`
	}) (*userStoryBody, error) {
		tok, herr := input.token()
		if herr != nil {
			return nil, herr
		}
		u, err := e.CreateUserStory(ctx, tok, engine.UserStoryCreateOptions{
			ID:           input.Body.ID,
			ProjectID:    input.ProjectID,
			Title:        input.Body.Title,
			Description:  input.Body.Description,
			EffortPoints: input.Body.EffortPoints,
			Priority:     input.Body.Priority,
			DependsOn:    input.Body.DependsOn,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &userStoryBody{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-user-stories",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/user-stories",
		Summary:     "List user stories",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Status    string `query:"status" doc:"Only stories in this status"`
	}) (*struct {
		Body []domain.UserStory `json:"body"`
	}, error) {
		items, err := e.ListUserStories(ctx, input.ProjectID, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.UserStory `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user-story",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/user-stories/{user_story_id}",
		Summary:     "Get user story",
		Errors:      userStoryErrors,
	}, func(ctx context.Context, input *UserStoryPath) (*userStoryBody, error) {
		u, err := e.GetUserStory(ctx, input.ProjectID, input.UserStoryID)
		if err != nil {
			return nil, handleError(err)
		}
		return &userStoryBody{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user-story",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/user-stories/{user_story_id}",
		Summary:     "Edit a user story",
		Errors:      userStoryErrors,
	}, func(ctx context.Context, input *struct {
		UserStoryAction
		Body UpdateUserStoryRequest `json:"body"`
	}) (*userStoryBody, error) {
		tok, herr := input.token()
		if herr != nil {
			return nil, herr
		}
		u, err := e.UpdateUserStory(ctx, tok, engine.UserStoryUpdateOptions{
			ID:           input.UserStoryID,
			ProjectID:    input.ProjectID,
			Title:        input.Body.Title,
			Description:  input.Body.Description,
			EffortPoints: input.Body.EffortPoints,
			Priority:     input.Body.Priority,
			Version:      input.Body.Version,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &userStoryBody{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-user-story",
		Method:        http.MethodDelete,
		Path:          "/projects/{project_id}/user-stories/{user_story_id}",
		Summary:       "Delete a user story",
		DefaultStatus: http.StatusNoContent,
		Errors:        userStoryErrors,
	}, func(ctx context.Context, input *UserStoryAction) (*struct{}, error) {
		tok, herr := input.token()
		if herr != nil {
			return nil, herr
		}
		if err := e.DeleteUserStory(ctx, tok, input.ProjectID, input.UserStoryID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-user-story-dependencies",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/user-stories/{user_story_id}/dependencies",
		Summary:     "Replace the dependency list",
		Errors:      userStoryErrors,
	}, func(ctx context.Context, input *struct {
		UserStoryAction
		Body SetDependenciesRequest `json:"body"`
	}) (*userStoryBody, error) {
		tok, herr := input.token()
		if herr != nil {
			return nil, herr
		}
		u, err := e.UpdateDependencies(ctx, tok, input.ProjectID, input.UserStoryID, input.Body.DependsOn)
		if err != nil {
			return nil, handleError(err)
		}
		return &userStoryBody{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "user-story-dependency-state",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/user-stories/{user_story_id}/dependencies/state",
		Summary:     "Evaluate whether the story's predecessors are all DONE",
		Errors:      userStoryErrors,
	}, func(ctx context.Context, input *UserStoryPath) (*struct {
		Body DependencyStateResponse `json:"body"`
	}, error) {
		u, err := e.GetUserStory(ctx, input.ProjectID, input.UserStoryID)
		if err != nil {
			return nil, handleError(err)
		}
		state, err := e.EvaluateDependencies(ctx, u)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DependencyStateResponse `json:"body"`
		}{Body: DependencyStateResponse{UserStoryID: u.ID, State: state}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-user-story-status",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/user-stories/{user_story_id}/status",
		Summary:     "Set a user story status explicitly",
		Errors:      userStoryErrors,
	}, func(ctx context.Context, input *struct {
		UserStoryAction
		Body SetStatusRequest `json:"body"`
	}) (*userStoryBody, error) {
		tok, herr := input.token()
		if herr != nil {
			return nil, herr
		}
		u, err := e.UpdateUserStoryStatus(ctx, tok, input.ProjectID, input.UserStoryID, input.Body.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &userStoryBody{Body: u}, nil
	})

	// Called by the task service whenever a child task or bug changes. Without
	// a credential the update is attributed to the configured system actor.
	huma.Register(api, huma.Operation{
		OperationID: "check-user-story-status",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/user-stories/{user_story_id}/check-status",
		Summary:     "Mark the story DONE when all its children are done",
		Errors:      userStoryErrors,
	}, func(ctx context.Context, input *UserStoryAction) (*userStoryBody, error) {
		tok, herr := input.token()
		if herr != nil {
			return nil, herr
		}
		u, err := e.CheckAndUpdateUserStoryStatus(ctx, tok, input.ProjectID, input.UserStoryID)
		if err != nil {
			return nil, handleError(err)
		}
		return &userStoryBody{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recompute-user-story-status",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/user-stories/{user_story_id}/recompute-status",
		Summary:     "Re-derive the status from dependencies inside an ACTIVE sprint",
		Errors:      userStoryErrors,
	}, func(ctx context.Context, input *UserStoryAction) (*userStoryBody, error) {
		if herr := requireCaller(ctx, e, input.AuthHeader); herr != nil {
			return nil, herr
		}
		u, err := e.UpdateStatusBasedOnDependencies(ctx, input.ProjectID, input.UserStoryID)
		if err != nil {
			return nil, handleError(err)
		}
		return &userStoryBody{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-user-story",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/user-stories/{user_story_id}/sprint",
		Summary:     "Assign a user story to a sprint",
		Errors:      userStoryErrors,
	}, func(ctx context.Context, input *struct {
		UserStoryAction
		Body AssignSprintRequest `json:"body"`
	}) (*userStoryBody, error) {
		tok, herr := input.token()
		if herr != nil {
			return nil, herr
		}
		u, err := e.AssignUserStoryToSprint(ctx, tok, input.ProjectID, input.UserStoryID, input.Body.SprintID)
		if err != nil {
			return nil, handleError(err)
		}
		return &userStoryBody{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unassign-user-story",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/user-stories/{user_story_id}/sprint",
		Summary:     "Return a user story to the backlog",
		Errors:      userStoryErrors,
	}, func(ctx context.Context, input *UserStoryAction) (*userStoryBody, error) {
		tok, herr := input.token()
		if herr != nil {
			return nil, herr
		}
		u, err := e.RemoveUserStoryFromSprint(ctx, tok, input.ProjectID, input.UserStoryID)
		if err != nil {
			return nil, handleError(err)
		}
		return &userStoryBody{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "user-story-history",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/user-stories/{user_story_id}/history",
		Summary:     "User story audit trail, newest first",
		Errors:      userStoryErrors,
	}, func(ctx context.Context, input *struct {
		UserStoryPath
		Limit int `query:"limit" minimum:"0"`
	}) (*struct {
		Body HistoryResponse `json:"body"`
	}, error) {
		items, err := e.UserStoryHistory(ctx, input.ProjectID, input.UserStoryID, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body HistoryResponse `json:"body"`
		}{Body: historyResponse(items)}, nil
	})
}
