package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintline/internal/domain"
	"sprintline/internal/engine"
)

func TestEvaluateDependencies(t *testing.T) {
	env := newTestEnv(t)
	env.story(t, "A", 1)
	env.story(t, "B", 1)
	_, err := env.Engine.UpdateUserStoryStatus(env.Ctx, tokAlice, project, "A", "DONE")
	require.NoError(t, err)

	// Stored directly: the engine refuses unknown predecessors on write.
	ghost, err := env.Engine.Repo.InsertUserStory(env.Ctx, nil, domain.UserStory{
		ID: "G", ProjectID: project, Title: "G", Status: domain.StoryBacklog, Priority: domain.PriorityLow,
		DependsOn: []string{"A", "missing"}, CreatedBy: "alice", CreatedAt: "x", UpdatedAt: "x",
	})
	require.NoError(t, err)

	cases := []struct {
		name string
		deps []string
		want engine.DependencyState
	}{
		{"no dependencies", nil, engine.Unconstrained},
		{"all done", []string{"A"}, engine.Unconstrained},
		{"one unfinished", []string{"A", "B"}, engine.Blocked},
		{"only unfinished", []string{"B"}, engine.Blocked},
		{"missing counts as satisfied", ghost.DependsOn, engine.Unconstrained},
		{"missing does not hide unfinished", []string{"missing", "B"}, engine.Blocked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := env.Engine.EvaluateDependencies(env.Ctx, domain.UserStory{ID: "X", DependsOn: tc.deps})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestUpdateDependencies(t *testing.T) {
	env := newTestEnv(t)
	env.story(t, "A", 1)
	env.story(t, "B", 1)

	_, err := env.Engine.UpdateDependencies(env.Ctx, tokAlice, project, "B", []string{"B"})
	require.ErrorIs(t, err, engine.ErrInvalidInput)

	_, err = env.Engine.UpdateDependencies(env.Ctx, tokAlice, project, "B", []string{"A", "nope"})
	require.ErrorIs(t, err, engine.ErrNotFound)
	assert.EqualError(t, err, "Dépendance non trouvée : nope")

	u, err := env.Engine.UpdateDependencies(env.Ctx, tokAlice, project, "B", []string{"A", "A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, u.DependsOn)
	assert.Equal(t, domain.StoryBacklog, u.Status, "outside an active sprint status is left alone")
	assert.Equal(t, []domain.Action{domain.ActionUpdateDependencies, domain.ActionCreate}, env.storyActions(t, "B"))
}

func TestUpdateDependenciesRecomputesInActiveSprint(t *testing.T) {
	env := newTestEnv(t)
	env.sprint(t, "S1", 10)
	env.story(t, "A", 1)
	env.story(t, "B", 1)
	env.assign(t, "B", "S1")
	_, err := env.Engine.ActivateSprint(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)
	assert.Equal(t, domain.StoryInProgress, env.get(t, "B").Status)

	u, err := env.Engine.UpdateDependencies(env.Ctx, tokAlice, project, "B", []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, domain.StoryBlocked, u.Status)

	u, err = env.Engine.UpdateDependencies(env.Ctx, tokAlice, project, "B", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StoryInProgress, u.Status)
}

func TestRecomputeNeverRegressesDone(t *testing.T) {
	env := newTestEnv(t)
	env.sprint(t, "S1", 10)
	env.story(t, "A", 1)
	env.story(t, "B", 1, "A")
	env.assign(t, "B", "S1")
	_, err := env.Engine.ActivateSprint(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)
	_, err = env.Engine.UpdateUserStoryStatus(env.Ctx, tokAlice, project, "B", "DONE")
	require.NoError(t, err)

	u, err := env.Engine.UpdateStatusBasedOnDependencies(env.Ctx, project, "B")
	require.NoError(t, err)
	assert.Equal(t, domain.StoryDone, u.Status)
}

func TestRecomputeOutsideActiveSprintIsNoop(t *testing.T) {
	env := newTestEnv(t)
	env.sprint(t, "S1", 10)
	env.story(t, "A", 1)
	env.story(t, "B", 1, "A")

	u, err := env.Engine.UpdateStatusBasedOnDependencies(env.Ctx, project, "B")
	require.NoError(t, err)
	assert.Equal(t, domain.StoryBacklog, u.Status)

	env.assign(t, "B", "S1")
	u, err = env.Engine.UpdateStatusBasedOnDependencies(env.Ctx, project, "B")
	require.NoError(t, err)
	assert.Equal(t, domain.StoryTodo, u.Status)
	assert.Equal(t, []domain.Action{domain.ActionAssignToSprint, domain.ActionCreate}, env.storyActions(t, "B"))
}

func TestDeleteUserStoryStripsDependencies(t *testing.T) {
	env := newTestEnv(t)
	env.sprint(t, "S1", 10)
	env.story(t, "A", 1)
	env.story(t, "B", 1, "A")
	env.assign(t, "B", "S1")
	_, err := env.Engine.ActivateSprint(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)
	assert.Equal(t, domain.StoryTodo, env.get(t, "B").Status, "blocked candidates keep their status on activation")

	require.NoError(t, env.Engine.DeleteUserStory(env.Ctx, tokAlice, project, "A"))

	b := env.get(t, "B")
	assert.Empty(t, b.DependsOn)
	assert.Equal(t, domain.StoryInProgress, b.Status)
	_, err = env.Engine.GetUserStory(env.Ctx, project, "A")
	require.ErrorIs(t, err, engine.ErrNotFound)
	assert.Equal(t, []domain.Action{domain.ActionDelete, domain.ActionCreate}, env.storyActions(t, "A"))
}
