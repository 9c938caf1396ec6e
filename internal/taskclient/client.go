package taskclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sprintline/internal/domain"
)

// Client lists the tasks and bugs a user story owns from the task service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
		Timeout:    timeout,
	}
}

// StatusError wraps non-2xx responses from the task service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("task service: status=%d body=%s", e.StatusCode, e.Body)
}

// ListChildWorkItems fetches the children of a user story. An empty token
// sends the request without credentials, as internal callbacks do.
func (c *Client) ListChildWorkItems(ctx context.Context, projectID, userStoryID, token string) ([]domain.ChildItem, error) {
	if strings.TrimSpace(c.BaseURL) == "" {
		return nil, fmt.Errorf("task service base url not configured")
	}
	hc := c.HTTPClient
	if hc == nil {
		// Client is shared by concurrent requests; never mutate it here.
		hc = &http.Client{Timeout: c.Timeout}
	}
	endpoint := fmt.Sprintf("%s/api/project/tasks/%s/%s", strings.TrimRight(c.BaseURL, "/"), url.PathEscape(projectID), url.PathEscape(userStoryID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("task service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	var items []domain.ChildItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("task service: decode children: %w", err)
	}
	return items, nil
}
