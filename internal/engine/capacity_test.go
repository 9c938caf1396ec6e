package engine_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintline/internal/domain"
	"sprintline/internal/engine"
)

func TestCheckCapacity(t *testing.T) {
	env := newTestEnv(t)
	s := env.sprint(t, "S1", 10)
	env.story(t, "A", 4)
	env.story(t, "B", 3)
	env.assign(t, "A", "S1")
	env.assign(t, "B", "S1")

	for _, tc := range []struct {
		candidate string
		effort    int
		want      engine.CapacityResult
	}{
		{"new", 0, engine.CapacityOK},
		{"new", 3, engine.CapacityOK},
		{"new", 4, engine.CapacityExceeded},
		// A is already counted with 4; re-checking it with 7 replaces that.
		{"A", 7, engine.CapacityOK},
		{"A", 8, engine.CapacityExceeded},
	} {
		t.Run(fmt.Sprintf("%s+%d", tc.candidate, tc.effort), func(t *testing.T) {
			got, err := env.Engine.CheckCapacity(env.Ctx, s, tc.candidate, tc.effort)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAssignOverCapacityLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	env.sprint(t, "S1", 5)
	env.story(t, "A", 6)

	_, err := env.Engine.AssignUserStoryToSprint(env.Ctx, tokAlice, project, "A", "S1")
	require.ErrorIs(t, err, engine.ErrCapacityExceeded)
	assert.EqualError(t, err, "La capacité du sprint est insuffisante pour cette User Story")

	a := env.get(t, "A")
	assert.Nil(t, a.SprintID)
	assert.Equal(t, domain.StoryBacklog, a.Status)
	assert.Equal(t, int64(1), a.Version)
	assert.Equal(t, []domain.Action{domain.ActionCreate}, env.storyActions(t, "A"))
}

func TestReassignToSameSprintDoesNotDoubleCount(t *testing.T) {
	env := newTestEnv(t)
	env.sprint(t, "S1", 5)
	env.story(t, "A", 5)
	env.assign(t, "A", "S1")

	u := env.assign(t, "A", "S1")
	assert.True(t, u.InSprint("S1"))
}

func TestEffortEditIsCheckedAgainstSprint(t *testing.T) {
	env := newTestEnv(t)
	env.sprint(t, "S1", 5)
	env.story(t, "A", 2)
	env.story(t, "B", 2)
	env.assign(t, "A", "S1")
	env.assign(t, "B", "S1")

	four := 4
	_, err := env.Engine.UpdateUserStory(env.Ctx, tokAlice, engine.UserStoryUpdateOptions{ID: "A", ProjectID: project, EffortPoints: &four})
	require.ErrorIs(t, err, engine.ErrCapacityExceeded)

	three := 3
	u, err := env.Engine.UpdateUserStory(env.Ctx, tokAlice, engine.UserStoryUpdateOptions{ID: "A", ProjectID: project, EffortPoints: &three})
	require.NoError(t, err)
	assert.Equal(t, 3, u.EffortPoints)
}

func TestSprintCapacityEditMustHoldAssignedStories(t *testing.T) {
	env := newTestEnv(t)
	env.sprint(t, "S1", 10)
	env.story(t, "A", 6)
	env.assign(t, "A", "S1")

	five := 5
	_, err := env.Engine.UpdateSprint(env.Ctx, tokAlice, engine.SprintUpdateOptions{ID: "S1", ProjectID: project, Capacity: &five})
	require.ErrorIs(t, err, engine.ErrCapacityExceeded)

	six := 6
	s, err := env.Engine.UpdateSprint(env.Ctx, tokAlice, engine.SprintUpdateOptions{ID: "S1", ProjectID: project, Capacity: &six})
	require.NoError(t, err)
	assert.Equal(t, 6, s.Capacity)
	assert.Equal(t, []domain.Action{domain.ActionUpdate, domain.ActionCreate}, env.sprintActions(t, "S1"))
}
