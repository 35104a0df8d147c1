package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bizassist/internal/domain"
)

func newID() string { return uuid.NewString() }

const taskColumns = "id, tenant_id, title, due_at, completed, created_at"

func scanTasks(rows *sql.Rows) ([]domain.Task, error) {
	defer rows.Close()
	out := []domain.Task{}
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Title, &t.DueAt, &t.Completed, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTasks returns all tasks of a tenant, newest first.
func (s *Store) ListTasks(ctx context.Context, tenantID string) ([]domain.Task, error) {
	rows, err := s.query(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE tenant_id = ? ORDER BY created_at DESC", tenantID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return scanTasks(rows)
}

// CreateTask inserts an incomplete task.
func (s *Store) CreateTask(ctx context.Context, tenantID, title string, dueAt time.Time) (domain.Task, error) {
	t := domain.Task{
		ID:        newID(),
		TenantID:  tenantID,
		Title:     title,
		DueAt:     ts(dueAt),
		CreatedAt: ts(time.Now()),
	}
	if _, err := s.exec(ctx,
		"INSERT INTO tasks ("+taskColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		t.ID, t.TenantID, t.Title, t.DueAt, t.Completed, t.CreatedAt,
	); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", classify(err))
	}
	return t, nil
}

// GetTask loads a task owned by the tenant. A task of another tenant is
// reported as ErrNotFound.
func (s *Store) GetTask(ctx context.Context, tenantID, id string) (domain.Task, error) {
	var t domain.Task
	err := s.queryRow(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ? AND tenant_id = ?", id, tenantID,
	).Scan(&t.ID, &t.TenantID, &t.Title, &t.DueAt, &t.Completed, &t.CreatedAt)
	if err != nil {
		return domain.Task{}, classify(err)
	}
	return t, nil
}

// UpdateTask applies the set fields of u and returns the updated task.
func (s *Store) UpdateTask(ctx context.Context, tenantID, id string, u domain.TaskUpdate) (domain.Task, error) {
	var (
		sets []string
		args []any
	)
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.DueAt != nil {
		sets = append(sets, "due_at = ?")
		args = append(args, ts(*u.DueAt))
	}
	if u.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, *u.Completed)
	}
	if len(sets) == 0 {
		return s.GetTask(ctx, tenantID, id)
	}
	args = append(args, id, tenantID)

	res, err := s.exec(ctx,
		"UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ? AND tenant_id = ?", args...)
	if err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Task{}, ErrNotFound
	}
	return s.GetTask(ctx, tenantID, id)
}

// DeleteTask removes a task owned by the tenant.
func (s *Store) DeleteTask(ctx context.Context, tenantID, id string) error {
	res, err := s.exec(ctx, "DELETE FROM tasks WHERE id = ? AND tenant_id = ?", id, tenantID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountTasks returns the number of completed and pending tasks of a tenant.
func (s *Store) CountTasks(ctx context.Context, tenantID string) (completed, pending int, err error) {
	err = s.queryRow(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN completed THEN 0 ELSE 1 END), 0)
		FROM tasks WHERE tenant_id = ?`, tenantID,
	).Scan(&completed, &pending)
	if err != nil {
		return 0, 0, fmt.Errorf("count tasks: %w", err)
	}
	return completed, pending, nil
}
