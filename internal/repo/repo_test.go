package repo

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintline/internal/db"
	"sprintline/internal/domain"
	"sprintline/internal/migrate"
)

const ts = "2026-03-02T10:00:00Z"

func newTestRepo(t *testing.T) (Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	r := Repo{DB: conn}
	ctx := context.Background()
	require.NoError(t, r.InsertProject(ctx, nil, domain.Project{ID: "p1", Name: "Demo", CreatedBy: "alice", CreatedAt: ts}))
	return r, ctx
}

func story(id string, deps ...string) domain.UserStory {
	return domain.UserStory{
		ID: id, ProjectID: "p1", Title: id, EffortPoints: 3,
		Status: domain.StoryBacklog, Priority: domain.PriorityMedium,
		DependsOn: deps, CreatedBy: "alice", CreatedAt: ts, UpdatedAt: ts,
	}
}

func TestUserStoryRoundTripKeepsDependencyOrder(t *testing.T) {
	r, ctx := newTestRepo(t)
	_, err := r.InsertUserStory(ctx, nil, story("us-1", "us-9", "us-3", "us-5"))
	require.NoError(t, err)

	got, err := r.GetUserStory(ctx, nil, "us-1")
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"us-9", "us-3", "us-5"}, got.DependsOn); diff != "" {
		t.Fatalf("deps mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(1), got.Version)
	assert.Nil(t, got.SprintID)
}

func TestSaveUserStoryDetectsStaleVersion(t *testing.T) {
	r, ctx := newTestRepo(t)
	u, err := r.InsertUserStory(ctx, nil, story("us-1"))
	require.NoError(t, err)

	first := u
	first.Title = "first writer"
	saved, err := r.SaveUserStory(ctx, nil, first)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	second := u
	second.Title = "second writer"
	_, err = r.SaveUserStory(ctx, nil, second)
	require.ErrorIs(t, err, ErrVersionConflict)

	got, err := r.GetUserStory(ctx, nil, "us-1")
	require.NoError(t, err)
	assert.Equal(t, "first writer", got.Title)

	missing := story("nope")
	missing.Version = 1
	_, err = r.SaveUserStory(ctx, nil, missing)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveSprintDetectsStaleVersion(t *testing.T) {
	r, ctx := newTestRepo(t)
	s, err := r.InsertSprint(ctx, nil, domain.Sprint{
		ID: "s1", ProjectID: "p1", Name: "S1", StartDate: "2026-03-01", EndDate: "2026-03-14",
		Capacity: 10, Status: domain.SprintPlanned, CreatedBy: "alice", CreatedAt: ts, UpdatedAt: ts,
	})
	require.NoError(t, err)

	s.Status = domain.SprintActive
	_, err = r.SaveSprint(ctx, nil, s)
	require.NoError(t, err)

	s.Status = domain.SprintCanceled
	_, err = r.SaveSprint(ctx, nil, s)
	require.ErrorIs(t, err, ErrVersionConflict)

	got, err := r.GetSprint(ctx, nil, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SprintActive, got.Status)
	assert.Equal(t, int64(2), got.Version)
}

func TestSprintEffortExcludesCandidate(t *testing.T) {
	r, ctx := newTestRepo(t)
	_, err := r.InsertSprint(ctx, nil, domain.Sprint{
		ID: "s1", ProjectID: "p1", Name: "S1", StartDate: "2026-03-01", EndDate: "2026-03-14",
		Capacity: 10, Status: domain.SprintPlanned, CreatedBy: "alice", CreatedAt: ts, UpdatedAt: ts,
	})
	require.NoError(t, err)
	sid := "s1"
	for _, id := range []string{"a", "b"} {
		u := story(id)
		u.SprintID = &sid
		_, err := r.InsertUserStory(ctx, nil, u)
		require.NoError(t, err)
	}

	total, err := r.SprintEffort(ctx, nil, "s1", "a")
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	total, err = r.SprintEffort(ctx, nil, "s1", "")
	require.NoError(t, err)
	assert.Equal(t, 6, total)
}

func TestRemoveDependencyEverywhere(t *testing.T) {
	r, ctx := newTestRepo(t)
	for _, u := range []domain.UserStory{story("a"), story("b", "a"), story("c", "b", "a")} {
		_, err := r.InsertUserStory(ctx, nil, u)
		require.NoError(t, err)
	}

	dependents, err := r.ListDependents(ctx, nil, "a")
	require.NoError(t, err)
	assert.Len(t, dependents, 2)

	require.NoError(t, r.RemoveDependencyEverywhere(ctx, nil, "a", ts))

	c, err := r.GetUserStory(ctx, nil, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, c.DependsOn)
	assert.Equal(t, int64(2), c.Version)

	b, err := r.GetUserStory(ctx, nil, "b")
	require.NoError(t, err)
	assert.Empty(t, b.DependsOn)
}

func TestDeletingSprintDetachesStories(t *testing.T) {
	r, ctx := newTestRepo(t)
	s, err := r.InsertSprint(ctx, nil, domain.Sprint{
		ID: "s1", ProjectID: "p1", Name: "S1", StartDate: "2026-03-01", EndDate: "2026-03-14",
		Capacity: 10, Status: domain.SprintPlanned, CreatedBy: "alice", CreatedAt: ts, UpdatedAt: ts,
	})
	require.NoError(t, err)
	sid := s.ID
	u := story("a")
	u.SprintID = &sid
	_, err = r.InsertUserStory(ctx, nil, u)
	require.NoError(t, err)

	require.NoError(t, r.DeleteSprint(ctx, nil, s))
	got, err := r.GetUserStory(ctx, nil, "a")
	require.NoError(t, err)
	assert.Nil(t, got.SprintID)

	_, err = r.GetSprint(ctx, nil, "s1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHistoryNewestFirst(t *testing.T) {
	r, ctx := newTestRepo(t)
	for i, action := range []domain.Action{domain.ActionCreate, domain.ActionActivate, domain.ActionUpdateStatus} {
		require.NoError(t, r.InsertHistory(ctx, nil, domain.HistoryEntry{
			ID: string(rune('a' + i)), SubjectKind: domain.SubjectSprint, SubjectID: "s1",
			Action: action, ActorID: "alice", Description: string(action), TS: ts,
		}))
	}
	require.NoError(t, r.InsertHistory(ctx, nil, domain.HistoryEntry{
		ID: "other", SubjectKind: domain.SubjectUserStory, SubjectID: "s1",
		Action: domain.ActionCreate, ActorID: "alice", TS: ts,
	}))

	entries, err := r.ListHistory(ctx, nil, domain.SubjectSprint, "s1", 0)
	require.NoError(t, err)
	var actions []domain.Action
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []domain.Action{domain.ActionUpdateStatus, domain.ActionActivate, domain.ActionCreate}, actions)

	limited, err := r.ListHistory(ctx, nil, domain.SubjectSprint, "s1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestQuerierWorksInsideTransaction(t *testing.T) {
	r, ctx := newTestRepo(t)
	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = r.InsertUserStory(ctx, tx, story("a"))
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	_, err = r.GetUserStory(ctx, nil, "a")
	require.ErrorIs(t, err, ErrNotFound)
	var _ Querier = (*sql.Tx)(nil)
}
