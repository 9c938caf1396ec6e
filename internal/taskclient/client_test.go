package taskclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"sprintline/internal/domain"
)

func TestListChildWorkItems(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"t1","status":"DONE","title":"ignored"},{"id":"t2","status":"IN_PROGRESS"}]`))
	}))
	defer srv.Close()

	items, err := New(srv.URL+"/", time.Second).ListChildWorkItems(context.Background(), "p1", "us 1", "tok")
	require.NoError(t, err)
	assert.Equal(t, "/api/project/tasks/p1/us 1", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	want := []domain.ChildItem{{ID: "t1", Status: "DONE"}, {ID: "t2", Status: "IN_PROGRESS"}}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestListChildWorkItemsWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	items, err := New(srv.URL, 0).ListChildWorkItems(context.Background(), "p1", "us-1", "")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListChildWorkItemsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).ListChildWorkItems(context.Background(), "p1", "us-1", "")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, "boom", se.Body)
}

func TestListChildWorkItemsRequiresBaseURL(t *testing.T) {
	_, err := New("", time.Second).ListChildWorkItems(context.Background(), "p1", "us-1", "")
	assert.Error(t, err)
}

func TestListChildWorkItemsSharedAcrossGoroutines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"t1","status":"DONE"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	require.NotNil(t, c.HTTPClient)
	assert.Equal(t, 10*time.Second, c.HTTPClient.Timeout)

	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			items, err := c.ListChildWorkItems(context.Background(), "p1", "us1", "")
			if err == nil && len(items) != 1 {
				return errors.New("unexpected children")
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
}
