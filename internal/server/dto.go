package server

import (
	"sprintline/internal/domain"
	"sprintline/internal/engine"
)

// Request payloads

type CreateProjectRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type CreateSprintRequest struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	StartDate string `json:"start_date" format:"date"`
	EndDate   string `json:"end_date" format:"date"`
	Goal      string `json:"goal,omitempty"`
	Capacity  int    `json:"capacity" minimum:"0"`
}

type UpdateSprintRequest struct {
	Name      *string `json:"name,omitempty"`
	StartDate *string `json:"start_date,omitempty" format:"date"`
	EndDate   *string `json:"end_date,omitempty" format:"date"`
	Goal      *string `json:"goal,omitempty"`
	Capacity  *int    `json:"capacity,omitempty"`
	Version   int64   `json:"version,omitempty" doc:"Expected version; 0 skips the check"`
}

type CreateUserStoryRequest struct {
	ID           string   `json:"id,omitempty"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	EffortPoints int      `json:"effort_points" minimum:"0"`
	Priority     string   `json:"priority,omitempty" doc:"LOW, MEDIUM, HIGH or CRITICAL; defaults to MEDIUM"`
	DependsOn    []string `json:"depends_on,omitempty"`
}

type UpdateUserStoryRequest struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	EffortPoints *int    `json:"effort_points,omitempty"`
	Priority     *string `json:"priority,omitempty"`
	Version      int64   `json:"version,omitempty" doc:"Expected version; 0 skips the check"`
}

type SetDependenciesRequest struct {
	DependsOn []string `json:"depends_on"`
}

type SetStatusRequest struct {
	Status string `json:"status" doc:"BACKLOG, TODO (or TO_DO), IN_PROGRESS, BLOCKED or DONE"`
}

type AssignSprintRequest struct {
	SprintID string `json:"sprint_id"`
}

// Response payloads

type CapacityResponse struct {
	SprintID    string                `json:"sprint_id"`
	UserStoryID string                `json:"user_story_id,omitempty"`
	Effort      int                   `json:"effort"`
	Result      engine.CapacityResult `json:"result" enum:"OK,EXCEEDED"`
}

type DependencyStateResponse struct {
	UserStoryID string                 `json:"user_story_id"`
	State       engine.DependencyState `json:"state" enum:"UNCONSTRAINED,BLOCKED"`
}

type HistoryResponse struct {
	Items []domain.HistoryEntry `json:"items"`
}

type IDListResponse struct {
	Items []string `json:"items"`
}

func historyResponse(items []domain.HistoryEntry) HistoryResponse {
	if items == nil {
		items = []domain.HistoryEntry{}
	}
	return HistoryResponse{Items: items}
}
