package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const instanceColumns = `id, definition_id, title, assignee, priority, department, branch, tags, status, due_at, created_at, completed_at`

func (r *SQLiteRepository) RecordGeneration(ctx context.Context, definitionID string, instances []TaskInstance, watermark time.Time) (int, error) {
	inserted := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var current sql.NullString
		if err := tx.QueryRowContext(ctx, `SELECT generated_until FROM task_definitions WHERE id = ?`, definitionID).Scan(&current); err != nil {
			return notFound(err)
		}
		prev, err := parseNullableTime(current)
		if err != nil {
			return err
		}
		if prev != nil && watermark.Before(*prev) {
			return fmt.Errorf("%w: %s < %s", ErrStaleWatermark, mustTime(watermark), mustTime(*prev))
		}

		for _, in := range instances {
			if in.DefinitionID != definitionID {
				return fmt.Errorf("storage: instance %s belongs to %s, not %s", in.ID, in.DefinitionID, definitionID)
			}
			n, err := insertInstance(ctx, tx, in)
			if err != nil {
				return fmt.Errorf("insert instance %s: %w", in.ID, err)
			}
			inserted += n
		}

		_, err = tx.ExecContext(ctx, `UPDATE task_definitions SET generated_until = ? WHERE id = ?`, mustTime(watermark), definitionID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func insertInstance(ctx context.Context, ex execer, in TaskInstance) (int, error) {
	res, err := ex.ExecContext(ctx, `
		INSERT OR IGNORE INTO task_instances (`+instanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.DefinitionID, in.Title, in.Assignee, in.Priority, in.Department, in.Branch, joinTags(in.Tags),
		in.Status, mustTime(in.DueAt), mustTime(in.CreatedAt), nullTime(in.CompletedAt),
	)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *SQLiteRepository) GetInstance(ctx context.Context, id string) (TaskInstance, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM task_instances WHERE id = ?`, id)
	inst, err := scanInstance(row)
	if err != nil {
		return TaskInstance{}, notFound(err)
	}
	return inst, nil
}

func (r *SQLiteRepository) ListInstances(ctx context.Context, filter InstanceListFilter) ([]TaskInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM task_instances`
	clauses := make([]string, 0, 5)
	args := make([]any, 0, 8)
	if filter.DefinitionID != "" {
		clauses = append(clauses, "definition_id = ?")
		args = append(args, filter.DefinitionID)
	}
	if filter.Assignee != "" {
		clauses = append(clauses, "assignee = ?")
		args = append(args, filter.Assignee)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, s := range filter.Statuses {
			args = append(args, s)
		}
	}
	if filter.DueFrom != nil {
		clauses = append(clauses, "due_at >= ?")
		args = append(args, mustTime(*filter.DueFrom))
	}
	if filter.DueBefore != nil {
		clauses = append(clauses, "due_at < ?")
		args = append(args, mustTime(*filter.DueBefore))
	}
	query += whereClause(clauses)
	query += ` ORDER BY due_at ASC, id ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]TaskInstance, 0)
	for rows.Next() {
		inst, scanErr := scanInstance(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateInstanceStatus(ctx context.Context, id string, status string, completedAt *time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE task_instances SET status = ?, completed_at = ? WHERE id = ?`,
		status, nullTime(completedAt), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func scanInstance(s scanner) (TaskInstance, error) {
	var out TaskInstance
	var tags, due, created string
	var completed sql.NullString
	if err := s.Scan(&out.ID, &out.DefinitionID, &out.Title, &out.Assignee, &out.Priority, &out.Department, &out.Branch, &tags,
		&out.Status, &due, &created, &completed); err != nil {
		return TaskInstance{}, err
	}
	var err error
	if out.DueAt, err = parseRequiredTime(due); err != nil {
		return TaskInstance{}, err
	}
	if out.CreatedAt, err = parseRequiredTime(created); err != nil {
		return TaskInstance{}, err
	}
	if out.CompletedAt, err = parseNullableTime(completed); err != nil {
		return TaskInstance{}, err
	}
	out.Tags = splitTags(tags)
	return out, nil
}
