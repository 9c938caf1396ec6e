package domain

type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Sprint struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"project_id"`
	Name      string       `json:"name"`
	StartDate string       `json:"start_date" format:"date"`
	EndDate   string       `json:"end_date" format:"date"`
	Goal      string       `json:"goal,omitempty"`
	Capacity  int          `json:"capacity"`
	Status    SprintStatus `json:"status" enum:"PLANNED,ACTIVE,COMPLETED,CANCELED,ARCHIVED"`
	CreatedBy string       `json:"created_by"`
	CreatedAt string       `json:"created_at" format:"date-time"`
	UpdatedAt string       `json:"updated_at" format:"date-time"`
	Version   int64        `json:"version"`
}

// UserStory is the work item the lifecycle engine governs. A nil SprintID
// means the story sits in the project backlog.
type UserStory struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"project_id"`
	SprintID     *string         `json:"sprint_id,omitempty"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	EffortPoints int             `json:"effort_points"`
	Status       UserStoryStatus `json:"status" enum:"BACKLOG,TODO,IN_PROGRESS,BLOCKED,DONE"`
	Priority     Priority        `json:"priority" enum:"LOW,MEDIUM,HIGH,CRITICAL"`
	DependsOn    []string        `json:"depends_on"`
	CreatedBy    string          `json:"created_by"`
	CreatedAt    string          `json:"created_at" format:"date-time"`
	UpdatedAt    string          `json:"updated_at" format:"date-time"`
	Version      int64           `json:"version"`
}

// InSprint reports whether the story is assigned to sprintID.
func (u UserStory) InSprint(sprintID string) bool {
	return u.SprintID != nil && *u.SprintID == sprintID
}

type HistoryEntry struct {
	ID          string      `json:"id"`
	SubjectKind SubjectKind `json:"subject_kind" enum:"sprint,user_story"`
	SubjectID   string      `json:"subject_id"`
	Action      Action      `json:"action"`
	ActorID     string      `json:"actor_id"`
	Description string      `json:"description"`
	TS          string      `json:"ts" format:"date-time"`
}

// ChildItem is a task or bug owned by a user story, as reported by the task service.
type ChildItem struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Done reports whether the task service considers the child finished.
func (c ChildItem) Done() bool {
	return c.Status == string(StoryDone)
}
