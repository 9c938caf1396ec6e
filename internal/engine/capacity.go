package engine

import (
	"context"

	"sprintline/internal/domain"
	"sprintline/internal/repo"
)

type CapacityResult string

const (
	CapacityOK       CapacityResult = "OK"
	CapacityExceeded CapacityResult = "EXCEEDED"
)

// CheckCapacity reports whether adding effort for candidateID keeps sprint
// within capacity. The candidate's current effort in the sprint, if any, is
// not counted twice.
func (e Engine) CheckCapacity(ctx context.Context, sprint domain.Sprint, candidateID string, effort int) (CapacityResult, error) {
	return e.checkCapacity(ctx, e.DB, sprint, candidateID, effort)
}

func (e Engine) checkCapacity(ctx context.Context, q repo.Querier, sprint domain.Sprint, candidateID string, effort int) (CapacityResult, error) {
	used, err := e.Repo.SprintEffort(ctx, q, sprint.ID, candidateID)
	if err != nil {
		return "", err
	}
	if used+effort > sprint.Capacity {
		return CapacityExceeded, nil
	}
	return CapacityOK, nil
}
