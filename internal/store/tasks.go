// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clearfeed/gatekeeper/internal/model"
)

// counterKey is the config row backing the wrap-around id allocator.
const counterKey = "sys_task_counter"

// maxTaskID keeps operator-visible ids short; the ring wraps 9999 -> 1.
const maxTaskID = 9999

// logCap bounds per-task log growth; AppendLog trims whole lines from the
// head once the column exceeds this.
const logCap = 64 * 1024

// NextID mints the next task id from the persistent ring counter. If a row
// already occupies the slot, displace is invoked (so the caller can stop a
// running worker) and the row is deleted, all in one transaction.
func (s *Store) NextID(ctx context.Context, displace func(id int)) (int, error) {
	var next int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var raw string
		current := 0
		err := tx.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, counterKey).Scan(&raw)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("store: read counter: %w", err)
		default:
			fmt.Sscanf(raw, "%d", &current)
		}

		next = current + 1
		if next > maxTaskID {
			next = 1
		}

		var occupied int
		err = tx.QueryRowContext(ctx, `SELECT id FROM tasks WHERE id = ?`, next).Scan(&occupied)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("store: probe slot %d: %w", next, err)
		}
		if err == nil {
			if displace != nil {
				displace(next)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, next); err != nil {
				return fmt.Errorf("store: displace slot %d: %w", next, err)
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO config (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			counterKey, fmt.Sprintf("%d", next))
		if err != nil {
			return fmt.Errorf("store: advance counter: %w", err)
		}
		return nil
	})
	return next, err
}

// CreateTask inserts a fresh pending task under the given id.
func (s *Store) CreateTask(ctx context.Context, id int, filename, filepath string) (*model.Task, error) {
	t := &model.Task{
		ID:        id,
		Filename:  filename,
		Filepath:  filepath,
		Status:    model.StatusPending,
		Stage:     model.StageDetect,
		CreatedAt: time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, filename, filepath, status, stage, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Filename, t.Filepath, string(t.Status), string(t.Stage), encodeTime(t.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("store: create task %d: %w", id, err)
	}
	return t, nil
}

const taskColumns = `id, filename, filepath, status, stage, progress, log, retry_count, overrides, upload_speed, upload_eta, created_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (*model.Task, error) {
	var (
		t          model.Task
		status     string
		stage      string
		overrides  string
		createdAt  string
		finishedAt sql.NullString
	)
	err := r.Scan(&t.ID, &t.Filename, &t.Filepath, &status, &stage, &t.Progress, &t.Log,
		&t.RetryCount, &overrides, &t.UploadSpeed, &t.UploadETA, &createdAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	t.Status = model.Status(status)
	t.Stage = model.Stage(stage)
	t.Overrides = model.ParseOverrides(overrides)
	t.CreatedAt = decodeTime(createdAt)
	if finishedAt.Valid && finishedAt.String != "" {
		ft := decodeTime(finishedAt.String)
		t.FinishedAt = &ft
	}
	return &t, nil
}

// GetTask loads one task. Returns ErrNotFound for an absent id.
func (s *Store) GetTask(ctx context.Context, id int) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get task %d: %w", id, err)
	}
	return t, nil
}

// UpdateTask applies fn to the current row and writes it back in one
// transaction. fn returning an error aborts without writing.
func (s *Store) UpdateTask(ctx context.Context, id int, fn func(*model.Task) error) (*model.Task, error) {
	var out *model.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
		t, err := scanTask(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("store: load task %d: %w", id, err)
		}
		if err := fn(t); err != nil {
			return err
		}
		var finished any
		if t.FinishedAt != nil {
			finished = encodeTime(*t.FinishedAt)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET filename=?, filepath=?, status=?, stage=?, progress=?, log=?,
			 retry_count=?, overrides=?, upload_speed=?, upload_eta=?, finished_at=? WHERE id=?`,
			t.Filename, t.Filepath, string(t.Status), string(t.Stage), t.Progress, t.Log,
			t.RetryCount, t.Overrides.Encode(), t.UploadSpeed, t.UploadETA, finished, t.ID)
		if err != nil {
			return fmt.Errorf("store: update task %d: %w", id, err)
		}
		out = t
		return nil
	})
	return out, err
}

// AppendLog appends one timestamped line to the task log, trimming the head
// at line granularity when the column would exceed the cap.
func (s *Store) AppendLog(ctx context.Context, id int, msg string) error {
	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("15:04:05"), msg)
	_, err := s.UpdateTask(ctx, id, func(t *model.Task) error {
		t.Log = appendBounded(t.Log, line)
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func appendBounded(log, line string) string {
	log += line
	for len(log) > logCap {
		nl := strings.IndexByte(log, '\n')
		if nl < 0 {
			return log[len(log)-logCap:]
		}
		log = log[nl+1:]
	}
	return log
}

// SetProgress updates the progress column only.
func (s *Store) SetProgress(ctx context.Context, id, progress int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET progress = ? WHERE id = ?`, progress, id)
	return err
}

// SetUploadProgress updates the live upload telemetry columns.
func (s *Store) SetUploadProgress(ctx context.Context, id, progress int, speed, eta string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET progress = ?, upload_speed = ?, upload_eta = ? WHERE id = ?`,
		progress, speed, eta, id)
	return err
}

// ListTasks returns up to limit tasks, newest id first. limit <= 0 means all.
func (s *Store) ListTasks(ctx context.Context, limit int) ([]*model.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	defer rows.Close()

	var out []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListByStatus returns all tasks whose status is in the given set.
func (s *Store) ListByStatus(ctx context.Context, statuses ...model.Status) ([]*model.Task, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(statuses))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE status IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list by status: %w", err)
	}
	defer rows.Close()

	var out []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTask removes the row. Missing rows are not an error.
func (s *Store) DeleteTask(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return err
}

// ClearFinished deletes every row in a terminal status and reports the count.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE status IN (?, ?, ?, ?)`,
		string(model.StatusUploaded), string(model.StatusDirty),
		string(model.StatusError), string(model.StatusCancelled))
	if err != nil {
		return 0, fmt.Errorf("store: clear finished: %w", err)
	}
	return res.RowsAffected()
}
