package repo

import (
	"context"
	"database/sql"
	"fmt"

	"sprintline/internal/domain"
)

const storyColumns = `id,project_id,sprint_id,title,COALESCE(description,''),effort_points,status,priority,created_by,created_at,updated_at,version`

func scanStory(row rowScanner) (domain.UserStory, error) {
	var (
		u        domain.UserStory
		sprintID sql.NullString
	)
	err := row.Scan(&u.ID, &u.ProjectID, &sprintID, &u.Title, &u.Description, &u.EffortPoints, &u.Status, &u.Priority,
		&u.CreatedBy, &u.CreatedAt, &u.UpdatedAt, &u.Version)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	if sprintID.Valid {
		id := sprintID.String
		u.SprintID = &id
	}
	u.DependsOn = []string{}
	return u, nil
}

// InsertUserStory stores a new story and its dependency list at version 1.
func (r Repo) InsertUserStory(ctx context.Context, q Querier, u domain.UserStory) (domain.UserStory, error) {
	q = r.q(q)
	u.Version = 1
	_, err := q.ExecContext(ctx, `INSERT INTO user_stories(id,project_id,sprint_id,title,description,effort_points,status,priority,created_by,created_at,updated_at,version)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.ProjectID, nullableStringPtr(u.SprintID), u.Title, nullable(u.Description), u.EffortPoints, u.Status, u.Priority,
		u.CreatedBy, u.CreatedAt, u.UpdatedAt, u.Version)
	if err != nil {
		return u, err
	}
	if err := writeDependencies(ctx, q, u.ID, u.DependsOn); err != nil {
		return u, err
	}
	if u.DependsOn == nil {
		u.DependsOn = []string{}
	}
	return u, nil
}

func (r Repo) GetUserStory(ctx context.Context, q Querier, id string) (domain.UserStory, error) {
	q = r.q(q)
	u, err := scanStory(q.QueryRowContext(ctx, `SELECT `+storyColumns+` FROM user_stories WHERE id=?`, id))
	if err != nil {
		return u, err
	}
	u.DependsOn, err = listDependencies(ctx, q, u.ID)
	return u, err
}

// SaveUserStory writes u and replaces its dependency list if the stored
// version still equals u.Version. The returned story carries the new version.
func (r Repo) SaveUserStory(ctx context.Context, q Querier, u domain.UserStory) (domain.UserStory, error) {
	q = r.q(q)
	res, err := q.ExecContext(ctx, `UPDATE user_stories SET sprint_id=?, title=?, description=?, effort_points=?, status=?, priority=?, updated_at=?, version=version+1
WHERE id=? AND version=?`,
		nullableStringPtr(u.SprintID), u.Title, nullable(u.Description), u.EffortPoints, u.Status, u.Priority, u.UpdatedAt, u.ID, u.Version)
	if err != nil {
		return u, err
	}
	if err := checkVersioned(ctx, q, res, "user_stories", u.ID); err != nil {
		return u, err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM user_story_deps WHERE user_story_id=?`, u.ID); err != nil {
		return u, err
	}
	if err := writeDependencies(ctx, q, u.ID, u.DependsOn); err != nil {
		return u, err
	}
	u.Version++
	return u, nil
}

func (r Repo) DeleteUserStory(ctx context.Context, q Querier, u domain.UserStory) error {
	q = r.q(q)
	res, err := q.ExecContext(ctx, `DELETE FROM user_stories WHERE id=? AND version=?`, u.ID, u.Version)
	if err != nil {
		return err
	}
	return checkVersioned(ctx, q, res, "user_stories", u.ID)
}

// ListUserStories returns the project's stories, optionally narrowed by status.
func (r Repo) ListUserStories(ctx context.Context, q Querier, projectID string, status string) ([]domain.UserStory, error) {
	query := `SELECT ` + storyColumns + ` FROM user_stories WHERE project_id=?`
	args := []any{projectID}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	return r.listStories(ctx, r.q(q), query, args...)
}

func (r Repo) ListUserStoriesBySprint(ctx context.Context, q Querier, sprintID string) ([]domain.UserStory, error) {
	return r.listStories(ctx, r.q(q), `SELECT `+storyColumns+` FROM user_stories WHERE sprint_id=? ORDER BY created_at ASC, id ASC`, sprintID)
}

// ListDependents returns the stories that list id as a predecessor.
func (r Repo) ListDependents(ctx context.Context, q Querier, id string) ([]domain.UserStory, error) {
	return r.listStories(ctx, r.q(q), `SELECT `+storyColumns+` FROM user_stories
WHERE id IN (SELECT user_story_id FROM user_story_deps WHERE depends_on_id=?) ORDER BY created_at ASC, id ASC`, id)
}

// ListUserStoriesByIDs returns the stories that exist among ids, keyed by id.
func (r Repo) ListUserStoriesByIDs(ctx context.Context, q Querier, ids []string) (map[string]domain.UserStory, error) {
	out := map[string]domain.UserStory{}
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	stories, err := r.listStories(ctx, r.q(q), `SELECT `+storyColumns+` FROM user_stories WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	for _, u := range stories {
		out[u.ID] = u
	}
	return out, nil
}

// SprintEffort sums the effort of stories assigned to sprintID, leaving out
// excludeID.
func (r Repo) SprintEffort(ctx context.Context, q Querier, sprintID, excludeID string) (int, error) {
	var total int
	err := r.q(q).QueryRowContext(ctx, `SELECT COALESCE(SUM(effort_points),0) FROM user_stories WHERE sprint_id=? AND id<>?`, sprintID, excludeID).Scan(&total)
	return total, err
}

// ActiveSprintUserStoryIDs lists the ids of stories sitting in any ACTIVE sprint of the project.
func (r Repo) ActiveSprintUserStoryIDs(ctx context.Context, q Querier, projectID string) ([]string, error) {
	rows, err := r.q(q).QueryContext(ctx, `SELECT u.id FROM user_stories u JOIN sprints s ON s.id = u.sprint_id
WHERE s.project_id=? AND s.status=? ORDER BY u.created_at ASC, u.id ASC`, projectID, domain.SprintActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RemoveDependencyEverywhere strips id from every other story's dependency
// list and bumps the version of each story it touched.
func (r Repo) RemoveDependencyEverywhere(ctx context.Context, q Querier, id, updatedAt string) error {
	q = r.q(q)
	if _, err := q.ExecContext(ctx, `UPDATE user_stories SET version=version+1, updated_at=?
WHERE id IN (SELECT user_story_id FROM user_story_deps WHERE depends_on_id=?)`, updatedAt, id); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `DELETE FROM user_story_deps WHERE depends_on_id=?`, id)
	return err
}

func (r Repo) listStories(ctx context.Context, q Querier, query string, args ...any) ([]domain.UserStory, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var res []domain.UserStory
	for rows.Next() {
		u, err := scanStory(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	// Dependencies are loaded after the cursor is closed; a transaction holds a single connection.
	for i := range res {
		deps, err := listDependencies(ctx, q, res[i].ID)
		if err != nil {
			return nil, err
		}
		res[i].DependsOn = deps
	}
	return res, nil
}

func listDependencies(ctx context.Context, q Querier, id string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT depends_on_id FROM user_story_deps WHERE user_story_id=? ORDER BY position ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	deps := []string{}
	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

func writeDependencies(ctx context.Context, q Querier, id string, deps []string) error {
	for i, dep := range deps {
		if _, err := q.ExecContext(ctx, `INSERT INTO user_story_deps(user_story_id,depends_on_id,position) VALUES (?,?,?)`, id, dep, i); err != nil {
			return fmt.Errorf("dependency %s: %w", dep, err)
		}
	}
	return nil
}
