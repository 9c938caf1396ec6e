package repo

import (
	"context"
	"database/sql"

	"sprintline/internal/domain"
)

const sprintColumns = `id,project_id,name,start_date,end_date,COALESCE(goal,''),capacity,status,created_by,created_at,updated_at,version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSprint(row rowScanner) (domain.Sprint, error) {
	var s domain.Sprint
	err := row.Scan(&s.ID, &s.ProjectID, &s.Name, &s.StartDate, &s.EndDate, &s.Goal, &s.Capacity, &s.Status,
		&s.CreatedBy, &s.CreatedAt, &s.UpdatedAt, &s.Version)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

// InsertSprint stores a new sprint at version 1.
func (r Repo) InsertSprint(ctx context.Context, q Querier, s domain.Sprint) (domain.Sprint, error) {
	s.Version = 1
	_, err := r.q(q).ExecContext(ctx, `INSERT INTO sprints(id,project_id,name,start_date,end_date,goal,capacity,status,created_by,created_at,updated_at,version)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.ProjectID, s.Name, s.StartDate, s.EndDate, nullable(s.Goal), s.Capacity, s.Status, s.CreatedBy, s.CreatedAt, s.UpdatedAt, s.Version)
	return s, err
}

func (r Repo) GetSprint(ctx context.Context, q Querier, id string) (domain.Sprint, error) {
	return scanSprint(r.q(q).QueryRowContext(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE id=?`, id))
}

// SaveSprint writes s if the stored version still equals s.Version and
// returns it with the bumped version.
func (r Repo) SaveSprint(ctx context.Context, q Querier, s domain.Sprint) (domain.Sprint, error) {
	q = r.q(q)
	res, err := q.ExecContext(ctx, `UPDATE sprints SET name=?, start_date=?, end_date=?, goal=?, capacity=?, status=?, updated_at=?, version=version+1
WHERE id=? AND version=?`,
		s.Name, s.StartDate, s.EndDate, nullable(s.Goal), s.Capacity, s.Status, s.UpdatedAt, s.ID, s.Version)
	if err != nil {
		return s, err
	}
	if err := checkVersioned(ctx, q, res, "sprints", s.ID); err != nil {
		return s, err
	}
	s.Version++
	return s, nil
}

func (r Repo) DeleteSprint(ctx context.Context, q Querier, s domain.Sprint) error {
	q = r.q(q)
	res, err := q.ExecContext(ctx, `DELETE FROM sprints WHERE id=? AND version=?`, s.ID, s.Version)
	if err != nil {
		return err
	}
	return checkVersioned(ctx, q, res, "sprints", s.ID)
}

func (r Repo) ListSprints(ctx context.Context, q Querier, projectID string) ([]domain.Sprint, error) {
	rows, err := r.q(q).QueryContext(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE project_id=? ORDER BY start_date ASC, created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Sprint
	for rows.Next() {
		s, err := scanSprint(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
