package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintline/internal/auth"
	"sprintline/internal/config"
	"sprintline/internal/db"
	"sprintline/internal/domain"
	"sprintline/internal/engine"
	"sprintline/internal/migrate"
)

const (
	tokAlice = "tok-alice"
	tokBob   = "tok-bob"
	project  = "p1"
)

// tokenTable resolves a fixed set of tokens.
type tokenTable map[string]string

func (t tokenTable) Decode(_ context.Context, token string) (string, error) {
	if actor, ok := t[token]; ok {
		return actor, nil
	}
	return "", auth.ErrInvalidToken
}

type fakeTasks struct {
	mu       sync.Mutex
	children map[string][]domain.ChildItem
	tokens   []string
	err      error
}

func (f *fakeTasks) ListChildWorkItems(_ context.Context, _, storyID, token string) ([]domain.ChildItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return nil, f.err
	}
	return f.children[storyID], nil
}

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Tasks  *fakeTasks
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	eng := engine.New(conn, config.Default())
	eng.Auth = tokenTable{tokAlice: "alice", tokBob: "bob"}
	tasks := &fakeTasks{children: map[string][]domain.ChildItem{}}
	eng.Tasks = tasks
	eng.Now = func() time.Time { return testNow }
	ctx := context.Background()
	_, err = eng.InitProject(ctx, tokAlice, engine.ProjectCreateOptions{ID: project, Name: "Demo"})
	require.NoError(t, err)
	return testEnv{Engine: eng, Ctx: ctx, Tasks: tasks}
}

func (env testEnv) sprint(t *testing.T, id string, capacity int) domain.Sprint {
	t.Helper()
	s, err := env.Engine.CreateSprint(env.Ctx, tokAlice, engine.SprintCreateOptions{
		ID: id, ProjectID: project, Name: id, StartDate: "2026-03-01", EndDate: "2026-03-14", Capacity: capacity,
	})
	require.NoError(t, err)
	return s
}

func (env testEnv) story(t *testing.T, id string, effort int, deps ...string) domain.UserStory {
	t.Helper()
	u, err := env.Engine.CreateUserStory(env.Ctx, tokAlice, engine.UserStoryCreateOptions{
		ID: id, ProjectID: project, Title: id, EffortPoints: effort, DependsOn: deps,
	})
	require.NoError(t, err)
	return u
}

func (env testEnv) assign(t *testing.T, storyID, sprintID string) domain.UserStory {
	t.Helper()
	u, err := env.Engine.AssignUserStoryToSprint(env.Ctx, tokAlice, project, storyID, sprintID)
	require.NoError(t, err)
	return u
}

func (env testEnv) get(t *testing.T, storyID string) domain.UserStory {
	t.Helper()
	u, err := env.Engine.GetUserStory(env.Ctx, project, storyID)
	require.NoError(t, err)
	return u
}

func (env testEnv) getSprint(t *testing.T, sprintID string) domain.Sprint {
	t.Helper()
	s, err := env.Engine.GetSprint(env.Ctx, project, sprintID)
	require.NoError(t, err)
	return s
}

func (env testEnv) sprintActions(t *testing.T, sprintID string) []domain.Action {
	t.Helper()
	entries, err := env.Engine.SprintHistory(env.Ctx, project, sprintID, 0)
	require.NoError(t, err)
	return actions(entries)
}

func (env testEnv) storyActions(t *testing.T, storyID string) []domain.Action {
	t.Helper()
	entries, err := env.Engine.UserStoryHistory(env.Ctx, project, storyID, 0)
	require.NoError(t, err)
	return actions(entries)
}

func actions(entries []domain.HistoryEntry) []domain.Action {
	out := []domain.Action{}
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func TestInvalidTokenFailsBeforeAnyMutation(t *testing.T) {
	env := newTestEnv(t)
	env.sprint(t, "S1", 10)
	env.story(t, "U1", 3)

	_, err := env.Engine.CreateSprint(env.Ctx, "bogus", engine.SprintCreateOptions{
		ProjectID: project, Name: "x", StartDate: "2026-03-01", EndDate: "2026-03-02",
	})
	require.ErrorIs(t, err, engine.ErrInvalidAuthentication)
	assert.EqualError(t, err, "Token invalide ou utilisateur non identifié")

	_, err = env.Engine.AssignUserStoryToSprint(env.Ctx, "", project, "U1", "S1")
	require.ErrorIs(t, err, engine.ErrInvalidAuthentication)
	_, err = env.Engine.ActivateSprint(env.Ctx, "bogus", project, "S1")
	require.ErrorIs(t, err, engine.ErrInvalidAuthentication)

	assert.Nil(t, env.get(t, "U1").SprintID)
	assert.Equal(t, domain.SprintPlanned, env.getSprint(t, "S1").Status)
	assert.Equal(t, []domain.Action{domain.ActionCreate}, env.sprintActions(t, "S1"))
}

func TestNotFoundAndOwnershipMessages(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.InitProject(env.Ctx, tokAlice, engine.ProjectCreateOptions{ID: "p2", Name: "Other"})
	require.NoError(t, err)
	env.sprint(t, "S1", 10)
	env.story(t, "U1", 3)

	_, err = env.Engine.ActivateSprint(env.Ctx, tokAlice, project, "nope")
	require.ErrorIs(t, err, engine.ErrNotFound)
	assert.EqualError(t, err, "Sprint non trouvé avec l'ID: nope")

	_, err = env.Engine.UpdateUserStoryStatus(env.Ctx, tokAlice, project, "nope", "DONE")
	assert.EqualError(t, err, "User Story non trouvée avec l'ID: nope")

	_, err = env.Engine.CreateSprint(env.Ctx, tokAlice, engine.SprintCreateOptions{
		ProjectID: "ghost", Name: "x", StartDate: "2026-03-01", EndDate: "2026-03-02",
	})
	require.ErrorIs(t, err, engine.ErrNotFound)
	assert.EqualError(t, err, "Projet non trouvé avec l'ID: ghost")

	err = env.Engine.DeleteSprint(env.Ctx, tokAlice, "p2", "S1")
	require.ErrorIs(t, err, engine.ErrInvalidOwnership)
	assert.EqualError(t, err, "Le Sprint n'appartient pas à ce projet")

	_, err = env.Engine.UpdateUserStoryStatus(env.Ctx, tokAlice, "p2", "U1", "DONE")
	require.ErrorIs(t, err, engine.ErrInvalidOwnership)
	assert.EqualError(t, err, "La User Story n'appartient pas à ce projet")
}

func TestHistoryFailureDoesNotUndoChange(t *testing.T) {
	env := newTestEnv(t)
	env.sprint(t, "S1", 10)
	env.Engine.History = failingRecorder{}

	s, err := env.Engine.ActivateSprint(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)
	assert.Equal(t, domain.SprintActive, s.Status)
	assert.Equal(t, domain.SprintActive, env.getSprint(t, "S1").Status)
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, ...domain.HistoryEntry) {}

func TestHistoryActorAndDescription(t *testing.T) {
	env := newTestEnv(t)
	env.story(t, "U1", 3)
	_, err := env.Engine.UpdateUserStoryStatus(env.Ctx, tokBob, project, "U1", "in_progress")
	require.NoError(t, err)

	entries, err := env.Engine.UserStoryHistory(env.Ctx, project, "U1", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].ActorID)
	assert.Equal(t, domain.ActionUpdateUserStoryStatus, entries[0].Action)
	assert.Equal(t, "Statut mis à jour : BACKLOG → IN_PROGRESS", entries[0].Description)
	assert.Equal(t, "2026-03-10T12:00:00Z", entries[0].TS)
}
