package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sprintline/internal/domain"
	"sprintline/internal/history"
	"sprintline/internal/repo"
)

// op is one top-level engine operation: a transaction plus the history it
// produces. Entries are only recorded once the transaction commits.
type op struct {
	tx      *sql.Tx
	actor   string
	now     time.Time
	entries []domain.HistoryEntry
}

func (o *op) ts() string {
	return o.now.UTC().Format(time.RFC3339)
}

func (o *op) record(kind domain.SubjectKind, subjectID string, action domain.Action, description string) {
	o.entries = append(o.entries, history.NewEntry(kind, subjectID, action, o.actor, description, o.now))
}

func (e Engine) run(ctx context.Context, actor string, fn func(o *op) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	o := &op{tx: tx, actor: actor, now: e.now()}
	if err := fn(o); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if len(o.entries) > 0 && e.History != nil {
		e.History.Record(ctx, o.entries...)
	}
	return nil
}

// guard turns a failed versioned write into UpdateConflict. A row that
// vanished under us is a conflict too.
func guard(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrVersionConflict), errors.Is(err, repo.ErrNotFound):
		return conflict()
	default:
		return err
	}
}

// expectVersion rejects a write based on a stale read. expected == 0 skips the check.
func expectVersion(expected, actual int64) error {
	if expected != 0 && expected != actual {
		return conflict()
	}
	return nil
}

func (e Engine) saveStory(ctx context.Context, o *op, u domain.UserStory) (domain.UserStory, error) {
	u.UpdatedAt = o.ts()
	saved, err := e.Repo.SaveUserStory(ctx, o.tx, u)
	return saved, guard(err)
}

func (e Engine) saveSprint(ctx context.Context, o *op, s domain.Sprint) (domain.Sprint, error) {
	s.UpdatedAt = o.ts()
	saved, err := e.Repo.SaveSprint(ctx, o.tx, s)
	return saved, guard(err)
}
