package sprintlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Sprintline HTTP API client. The task service uses it to
// report child changes through CheckStatus.
type Client struct {
	BaseURL     string
	ProjectID   string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID string) *Client {
	return &Client{
		BaseURL:    baseURL,
		ProjectID:  projectID,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Timeout:    10 * time.Second,
	}
}

// Sprint mirrors the API sprint model.
type Sprint struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Goal      string `json:"goal,omitempty"`
	Capacity  int    `json:"capacity"`
	Status    string `json:"status"`
	Version   int64  `json:"version"`
}

// UserStory mirrors the API user story model.
type UserStory struct {
	ID           string   `json:"id"`
	ProjectID    string   `json:"project_id"`
	SprintID     *string  `json:"sprint_id,omitempty"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	EffortPoints int      `json:"effort_points"`
	Status       string   `json:"status"`
	Priority     string   `json:"priority"`
	DependsOn    []string `json:"depends_on"`
	Version      int64    `json:"version"`
}

// HistoryEntry is one audit record.
type HistoryEntry struct {
	ID          string `json:"id"`
	SubjectKind string `json:"subject_kind"`
	SubjectID   string `json:"subject_id"`
	Action      string `json:"action"`
	ActorID     string `json:"actor_id"`
	Description string `json:"description"`
	TS          string `json:"ts"`
}

// APIError wraps non-2xx responses. Code and Message come from the error
// envelope when the server sent one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateSprint plans a sprint.
func (c *Client) CreateSprint(ctx context.Context, name, startDate, endDate string, capacity int) (Sprint, error) {
	body := map[string]any{
		"name":       name,
		"start_date": startDate,
		"end_date":   endDate,
		"capacity":   capacity,
	}
	var resp Sprint
	err := c.do(ctx, http.MethodPost, c.projectPath("sprints"), body, &resp)
	return resp, err
}

// GetSprint fetches a sprint.
func (c *Client) GetSprint(ctx context.Context, sprintID string) (Sprint, error) {
	var resp Sprint
	err := c.do(ctx, http.MethodGet, c.projectPath("sprints/"+url.PathEscape(sprintID)), nil, &resp)
	return resp, err
}

// SprintAction runs a lifecycle transition: activate, cancel, archive,
// update-status or check-status.
func (c *Client) SprintAction(ctx context.Context, sprintID, action string) (Sprint, error) {
	var resp Sprint
	endpoint := c.projectPath(fmt.Sprintf("sprints/%s/%s", url.PathEscape(sprintID), action))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// CreateUserStory adds a story to the backlog.
func (c *Client) CreateUserStory(ctx context.Context, title string, effort int, dependsOn []string) (UserStory, error) {
	body := map[string]any{
		"title":         title,
		"effort_points": effort,
	}
	if len(dependsOn) > 0 {
		body["depends_on"] = dependsOn
	}
	var resp UserStory
	err := c.do(ctx, http.MethodPost, c.projectPath("user-stories"), body, &resp)
	return resp, err
}

// GetUserStory fetches a user story.
func (c *Client) GetUserStory(ctx context.Context, storyID string) (UserStory, error) {
	var resp UserStory
	err := c.do(ctx, http.MethodGet, c.projectPath("user-stories/"+url.PathEscape(storyID)), nil, &resp)
	return resp, err
}

// AssignToSprint assigns a story to a sprint.
func (c *Client) AssignToSprint(ctx context.Context, storyID, sprintID string) (UserStory, error) {
	var resp UserStory
	endpoint := c.projectPath(fmt.Sprintf("user-stories/%s/sprint", url.PathEscape(storyID)))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"sprint_id": sprintID}, &resp)
	return resp, err
}

// SetStatus sets a story status explicitly.
func (c *Client) SetStatus(ctx context.Context, storyID, status string) (UserStory, error) {
	var resp UserStory
	endpoint := c.projectPath(fmt.Sprintf("user-stories/%s/status", url.PathEscape(storyID)))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// CheckStatus tells the engine a child task or bug of storyID changed. The
// story becomes DONE once all its children are.
func (c *Client) CheckStatus(ctx context.Context, storyID string) (UserStory, error) {
	var resp UserStory
	endpoint := c.projectPath(fmt.Sprintf("user-stories/%s/check-status", url.PathEscape(storyID)))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// SprintHistory returns a sprint's audit trail, newest first.
func (c *Client) SprintHistory(ctx context.Context, sprintID string, limit int) ([]HistoryEntry, error) {
	return c.history(ctx, "sprints/"+url.PathEscape(sprintID)+"/history", limit)
}

// UserStoryHistory returns a story's audit trail, newest first.
func (c *Client) UserStoryHistory(ctx context.Context, storyID string, limit int) ([]HistoryEntry, error) {
	return c.history(ctx, "user-stories/"+url.PathEscape(storyID)+"/history", limit)
}

func (c *Client) history(ctx context.Context, p string, limit int) ([]HistoryEntry, error) {
	endpoint := c.projectPath(p)
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Items []HistoryEntry `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) projectPath(p string) string {
	project := url.PathEscape(c.ProjectID)
	return fmt.Sprintf("v0/projects/%s/%s", project, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
