package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintline/internal/domain"
	"sprintline/internal/engine"
)

func TestCreateSprintValidation(t *testing.T) {
	env := newTestEnv(t)
	s := env.sprint(t, "S1", 0)
	assert.Equal(t, domain.SprintPlanned, s.Status)
	assert.Equal(t, "alice", s.CreatedBy)
	assert.Equal(t, int64(1), s.Version)

	for name, opts := range map[string]engine.SprintCreateOptions{
		"empty name":        {Name: "", StartDate: "2026-03-01", EndDate: "2026-03-02"},
		"bad start":         {Name: "x", StartDate: "03/01/2026", EndDate: "2026-03-02"},
		"end before start":  {Name: "x", StartDate: "2026-03-02", EndDate: "2026-03-01"},
		"negative capacity": {Name: "x", StartDate: "2026-03-01", EndDate: "2026-03-02", Capacity: -1},
	} {
		t.Run(name, func(t *testing.T) {
			opts.ProjectID = project
			_, err := env.Engine.CreateSprint(env.Ctx, tokAlice, opts)
			assert.ErrorIs(t, err, engine.ErrInvalidInput)
		})
	}
}

func TestActivateOnlyFromPlanned(t *testing.T) {
	env := newTestEnv(t)
	env.sprint(t, "S1", 10)

	_, err := env.Engine.ActivateSprint(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)
	_, err = env.Engine.ActivateSprint(env.Ctx, tokAlice, project, "S1")
	require.ErrorIs(t, err, engine.ErrInvalidTransition)
	assert.EqualError(t, err, "Seul un sprint planifié (PLANNED) peut être activé")

	assert.Equal(t, []domain.Action{domain.ActionActivate, domain.ActionCreate}, env.sprintActions(t, "S1"))
}

func TestCancelReturnsEveryStoryToBacklog(t *testing.T) {
	env := newTestEnv(t)
	env.sprint(t, "S1", 10)
	env.story(t, "A", 1)
	env.story(t, "B", 1)
	env.assign(t, "A", "S1")
	env.assign(t, "B", "S1")
	_, err := env.Engine.ActivateSprint(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)
	_, err = env.Engine.UpdateUserStoryStatus(env.Ctx, tokAlice, project, "A", "DONE")
	require.NoError(t, err)

	s, err := env.Engine.CancelSprint(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)
	assert.Equal(t, domain.SprintCanceled, s.Status)
	for _, id := range []string{"A", "B"} {
		u := env.get(t, id)
		assert.Nil(t, u.SprintID, id)
		assert.Equal(t, domain.StoryBacklog, u.Status, id)
	}
	assert.Equal(t, domain.ActionCancel, env.sprintActions(t, "S1")[0])
}

func TestCancelRejectedOnceFinished(t *testing.T) {
	env := newTestEnv(t)
	completed := env.sprint(t, "S1", 10)
	env.story(t, "A", 1)
	env.assign(t, "A", "S1")
	_, err := env.Engine.ActivateSprint(env.Ctx, tokAlice, project, completed.ID)
	require.NoError(t, err)
	_, err = env.Engine.UpdateUserStoryStatus(env.Ctx, tokAlice, project, "A", "DONE")
	require.NoError(t, err)
	completed, err = env.Engine.CheckAndUpdateSprintStatus(env.Ctx, tokAlice, project, completed.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SprintCompleted, completed.Status)

	env.sprint(t, "S2", 10)
	_, err = env.Engine.CancelSprint(env.Ctx, tokAlice, project, "S2")
	require.NoError(t, err)
	_, err = env.Engine.ArchiveSprint(env.Ctx, tokAlice, project, "S2")
	require.NoError(t, err)

	for _, id := range []string{"S1", "S2"} {
		before := env.sprintActions(t, id)
		_, err := env.Engine.CancelSprint(env.Ctx, tokAlice, project, id)
		require.ErrorIs(t, err, engine.ErrInvalidTransition, id)
		assert.EqualError(t, err, "Impossible d'annuler un sprint déjà terminé ou archivé")
		assert.Equal(t, before, env.sprintActions(t, id))
	}
	assert.True(t, env.get(t, "A").InSprint("S1"))
}

func TestArchivePrecondition(t *testing.T) {
	env := newTestEnv(t)
	env.sprint(t, "S1", 10)

	_, err := env.Engine.ArchiveSprint(env.Ctx, tokAlice, project, "S1")
	require.ErrorIs(t, err, engine.ErrInvalidTransition)
	assert.EqualError(t, err, "Seuls les sprints terminés ou annulés peuvent être archivés")

	_, err = env.Engine.CancelSprint(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)
	s, err := env.Engine.ArchiveSprint(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)
	assert.Equal(t, domain.SprintArchived, s.Status)

	_, err = env.Engine.ArchiveSprint(env.Ctx, tokAlice, project, "S1")
	require.ErrorIs(t, err, engine.ErrInvalidTransition)
	assert.Equal(t, []domain.Action{domain.ActionArchive, domain.ActionCancel, domain.ActionCreate}, env.sprintActions(t, "S1"))
}

func TestTimeBasedCompletionWaitsForEndOfDay(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateSprint(env.Ctx, tokAlice, engine.SprintCreateOptions{
		ID: "S1", ProjectID: project, Name: "S1", StartDate: "2026-03-01", EndDate: "2026-03-10", Capacity: 10,
	})
	require.NoError(t, err)
	_, err = env.Engine.ActivateSprint(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)

	s, err := env.Engine.UpdateSprintStatus(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)
	assert.Equal(t, domain.SprintActive, s.Status, "the end date itself is still inside the sprint")
	assert.Len(t, env.sprintActions(t, "S1"), 2)
}

func TestTimeBasedCompletionIgnoresPlanned(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateSprint(env.Ctx, tokAlice, engine.SprintCreateOptions{
		ID: "S1", ProjectID: project, Name: "S1", StartDate: "2026-02-01", EndDate: "2026-02-14", Capacity: 10,
	})
	require.NoError(t, err)

	s, err := env.Engine.UpdateSprintStatus(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)
	assert.Equal(t, domain.SprintPlanned, s.Status)
}

func TestCompletionBasedNeedsEveryStoryDone(t *testing.T) {
	env := newTestEnv(t)
	env.sprint(t, "S1", 10)
	_, err := env.Engine.ActivateSprint(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)

	s, err := env.Engine.CheckAndUpdateSprintStatus(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)
	assert.Equal(t, domain.SprintActive, s.Status, "an empty sprint does not complete itself")

	env.story(t, "A", 1)
	env.story(t, "B", 1)
	env.assign(t, "A", "S1")
	env.assign(t, "B", "S1")
	_, err = env.Engine.UpdateUserStoryStatus(env.Ctx, tokAlice, project, "A", "DONE")
	require.NoError(t, err)
	s, err = env.Engine.CheckAndUpdateSprintStatus(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)
	assert.Equal(t, domain.SprintActive, s.Status)

	_, err = env.Engine.UpdateUserStoryStatus(env.Ctx, tokAlice, project, "B", "DONE")
	require.NoError(t, err)
	s, err = env.Engine.CheckAndUpdateSprintStatus(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)
	assert.Equal(t, domain.SprintCompleted, s.Status)
	assert.True(t, env.get(t, "B").InSprint("S1"))
	assert.Equal(t, []domain.Action{domain.ActionUpdateStatus, domain.ActionActivate, domain.ActionCreate}, env.sprintActions(t, "S1"))
}

func TestDeleteSprint(t *testing.T) {
	env := newTestEnv(t)
	env.sprint(t, "S1", 10)
	env.story(t, "A", 1)
	env.assign(t, "A", "S1")

	require.NoError(t, env.Engine.DeleteSprint(env.Ctx, tokAlice, project, "S1"))
	a := env.get(t, "A")
	assert.Nil(t, a.SprintID)
	assert.Equal(t, domain.StoryBacklog, a.Status)

	_, err := env.Engine.GetSprint(env.Ctx, project, "S1")
	require.ErrorIs(t, err, engine.ErrNotFound)
	assert.Equal(t, []domain.Action{domain.ActionDelete, domain.ActionCreate}, env.sprintActions(t, "S1"))
}

func TestUpdateSprintStaleVersion(t *testing.T) {
	env := newTestEnv(t)
	s := env.sprint(t, "S1", 10)
	goal := "ship login"

	updated, err := env.Engine.UpdateSprint(env.Ctx, tokAlice, engine.SprintUpdateOptions{ID: "S1", ProjectID: project, Goal: &goal, Version: s.Version})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	_, err = env.Engine.UpdateSprint(env.Ctx, tokAlice, engine.SprintUpdateOptions{ID: "S1", ProjectID: project, Goal: &goal, Version: s.Version})
	require.ErrorIs(t, err, engine.ErrUpdateConflict)
	assert.Equal(t, []domain.Action{domain.ActionUpdate, domain.ActionCreate}, env.sprintActions(t, "S1"))
}

func TestUpdateRejectedOnceArchived(t *testing.T) {
	env := newTestEnv(t)
	env.sprint(t, "S1", 10)
	_, err := env.Engine.CancelSprint(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)
	_, err = env.Engine.ArchiveSprint(env.Ctx, tokAlice, project, "S1")
	require.NoError(t, err)
	before := env.sprintActions(t, "S1")

	name := "Reused"
	_, err = env.Engine.UpdateSprint(env.Ctx, tokAlice, engine.SprintUpdateOptions{ID: "S1", ProjectID: project, Name: &name})
	require.ErrorIs(t, err, engine.ErrInvalidTransition)
	assert.EqualError(t, err, "Un sprint archivé ne peut plus être modifié")

	s := env.getSprint(t, "S1")
	assert.Equal(t, "S1", s.Name)
	assert.Equal(t, domain.SprintArchived, s.Status)
	assert.Equal(t, before, env.sprintActions(t, "S1"))
}
