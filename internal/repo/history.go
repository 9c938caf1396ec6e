package repo

import (
	"context"

	"sprintline/internal/domain"
)

// InsertHistory appends an entry. seq records insertion order, which listing
// relies on since timestamps only have second precision.
func (r Repo) InsertHistory(ctx context.Context, q Querier, h domain.HistoryEntry) error {
	_, err := r.q(q).ExecContext(ctx, `INSERT INTO history(id,subject_kind,subject_id,action,actor_id,description,ts,seq)
SELECT ?,?,?,?,?,?,?,COALESCE(MAX(seq),0)+1 FROM history`,
		h.ID, h.SubjectKind, h.SubjectID, h.Action, h.ActorID, h.Description, h.TS)
	return err
}

// ListHistory returns a subject's entries newest first. limit <= 0 means all.
func (r Repo) ListHistory(ctx context.Context, q Querier, kind domain.SubjectKind, subjectID string, limit int) ([]domain.HistoryEntry, error) {
	query := `SELECT id,subject_kind,subject_id,action,actor_id,description,ts FROM history
WHERE subject_kind=? AND subject_id=? ORDER BY seq DESC`
	args := []any{kind, subjectID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.q(q).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.HistoryEntry{}
	for rows.Next() {
		var h domain.HistoryEntry
		if err := rows.Scan(&h.ID, &h.SubjectKind, &h.SubjectID, &h.Action, &h.ActorID, &h.Description, &h.TS); err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}
