package storage

import (
	"context"
	"database/sql"
)

const definitionColumns = `id, title, description, assignee, priority, department, branch, tags,
	frequency, interval_value, weekdays, month_days, nth_week, end_date, exception_date,
	due_at, generated_until, holiday_list_id, skip_holidays, enabled, created_at`

func (r *SQLiteRepository) CreateDefinition(ctx context.Context, in TaskDefinition) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO task_definitions (`+definitionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.Title, in.Description, in.Assignee, in.Priority, in.Department, in.Branch, joinTags(in.Tags),
		in.Frequency, in.IntervalValue, in.Weekdays, in.MonthDays, in.NthWeek, nullTime(in.EndDate), nullTime(in.ExceptionDate),
		mustTime(in.DueAt), nullTime(in.GeneratedUntil), nullString(in.HolidayListID), boolInt(in.SkipHolidays), boolInt(in.Enabled), mustTime(in.CreatedAt),
	)
	return err
}

func (r *SQLiteRepository) GetDefinition(ctx context.Context, id string) (TaskDefinition, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+definitionColumns+` FROM task_definitions WHERE id = ?`, id)
	def, err := scanDefinition(row)
	if err != nil {
		return TaskDefinition{}, notFound(err)
	}
	return def, nil
}

// UpdateDefinition rewrites the definition's configuration. The watermark is
// owned by RecordGeneration and is not touched here.
func (r *SQLiteRepository) UpdateDefinition(ctx context.Context, in TaskDefinition) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_definitions
		SET title = ?, description = ?, assignee = ?, priority = ?, department = ?, branch = ?, tags = ?,
			frequency = ?, interval_value = ?, weekdays = ?, month_days = ?, nth_week = ?, end_date = ?, exception_date = ?,
			due_at = ?, holiday_list_id = ?, skip_holidays = ?, enabled = ?
		WHERE id = ?`,
		in.Title, in.Description, in.Assignee, in.Priority, in.Department, in.Branch, joinTags(in.Tags),
		in.Frequency, in.IntervalValue, in.Weekdays, in.MonthDays, in.NthWeek, nullTime(in.EndDate), nullTime(in.ExceptionDate),
		mustTime(in.DueAt), nullString(in.HolidayListID), boolInt(in.SkipHolidays), boolInt(in.Enabled), in.ID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) DeleteDefinition(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM task_definitions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) ListDefinitions(ctx context.Context, filter DefinitionListFilter) ([]TaskDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM task_definitions`
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.Enabled != nil {
		clauses = append(clauses, "enabled = ?")
		args = append(args, boolInt(*filter.Enabled))
	}
	if filter.Assignee != "" {
		clauses = append(clauses, "assignee = ?")
		args = append(args, filter.Assignee)
	}
	query += whereClause(clauses)
	query += ` ORDER BY due_at ASC, id ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]TaskDefinition, 0)
	for rows.Next() {
		def, scanErr := scanDefinition(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func scanDefinition(s scanner) (TaskDefinition, error) {
	var out TaskDefinition
	var tags string
	var endDate, exceptionDate, generated, holidayList sql.NullString
	var due, created string
	var skip, enabled int
	if err := s.Scan(&out.ID, &out.Title, &out.Description, &out.Assignee, &out.Priority, &out.Department, &out.Branch, &tags,
		&out.Frequency, &out.IntervalValue, &out.Weekdays, &out.MonthDays, &out.NthWeek, &endDate, &exceptionDate,
		&due, &generated, &holidayList, &skip, &enabled, &created); err != nil {
		return TaskDefinition{}, err
	}
	var err error
	if out.EndDate, err = parseNullableTime(endDate); err != nil {
		return TaskDefinition{}, err
	}
	if out.ExceptionDate, err = parseNullableTime(exceptionDate); err != nil {
		return TaskDefinition{}, err
	}
	if out.GeneratedUntil, err = parseNullableTime(generated); err != nil {
		return TaskDefinition{}, err
	}
	if out.DueAt, err = parseRequiredTime(due); err != nil {
		return TaskDefinition{}, err
	}
	if out.CreatedAt, err = parseRequiredTime(created); err != nil {
		return TaskDefinition{}, err
	}
	out.Tags = splitTags(tags)
	out.HolidayListID = holidayList.String
	out.SkipHolidays = skip == 1
	out.Enabled = enabled == 1
	return out, nil
}
