package domain

import (
	"fmt"
	"strings"
)

// SprintStatus is the lifecycle state of a sprint.
type SprintStatus string

const (
	SprintPlanned   SprintStatus = "PLANNED"
	SprintActive    SprintStatus = "ACTIVE"
	SprintCompleted SprintStatus = "COMPLETED"
	SprintCanceled  SprintStatus = "CANCELED"
	SprintArchived  SprintStatus = "ARCHIVED"
)

// UserStoryStatus is the lifecycle state of a user story.
type UserStoryStatus string

const (
	StoryBacklog    UserStoryStatus = "BACKLOG"
	StoryTodo       UserStoryStatus = "TODO"
	StoryInProgress UserStoryStatus = "IN_PROGRESS"
	StoryBlocked    UserStoryStatus = "BLOCKED"
	StoryDone       UserStoryStatus = "DONE"
)

type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// SubjectKind names what a history entry is about.
type SubjectKind string

const (
	SubjectSprint    SubjectKind = "sprint"
	SubjectUserStory SubjectKind = "user_story"
)

// Action is the audit vocabulary shared with the task service and audit consumers.
type Action string

const (
	ActionCreate                Action = "CREATE"
	ActionUpdate                Action = "UPDATE"
	ActionDelete                Action = "DELETE"
	ActionActivate              Action = "ACTIVATE"
	ActionCancel                Action = "CANCEL"
	ActionArchive               Action = "ARCHIVE"
	ActionUpdateStatus          Action = "UPDATE_STATUS"
	ActionUpdateUserStoryStatus Action = "UPDATE_USER_STORY_STATUS"
	ActionUpdateDependencies    Action = "UPDATE_DEPENDENCIES"
	ActionAssignToSprint        Action = "ASSIGN_TO_SPRINT"
	ActionUnassignFromSprint    Action = "UNASSIGN_FROM_SPRINT"
)

// ParseUserStoryStatus accepts the canonical names, case-insensitively, and
// TO_DO as an alias of TODO.
func ParseUserStoryStatus(s string) (UserStoryStatus, error) {
	switch v := UserStoryStatus(strings.ToUpper(strings.TrimSpace(s))); v {
	case StoryBacklog, StoryTodo, StoryInProgress, StoryBlocked, StoryDone:
		return v, nil
	case "TO_DO":
		return StoryTodo, nil
	}
	return "", fmt.Errorf("invalid user story status %q", s)
}

func ParseSprintStatus(s string) (SprintStatus, error) {
	switch v := SprintStatus(strings.ToUpper(strings.TrimSpace(s))); v {
	case SprintPlanned, SprintActive, SprintCompleted, SprintCanceled, SprintArchived:
		return v, nil
	}
	return "", fmt.Errorf("invalid sprint status %q", s)
}

// ParsePriority defaults an empty value to MEDIUM.
func ParsePriority(s string) (Priority, error) {
	if strings.TrimSpace(s) == "" {
		return PriorityMedium, nil
	}
	switch v := Priority(strings.ToUpper(strings.TrimSpace(s))); v {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return v, nil
	}
	return "", fmt.Errorf("invalid priority %q", s)
}
