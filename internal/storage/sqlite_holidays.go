package storage

import (
	"context"
	"database/sql"
	"time"
)

func (r *SQLiteRepository) CreateHolidayList(ctx context.Context, in HolidayList) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO holiday_lists (id, name, from_date, to_date, weekly_off, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		in.ID, in.Name, nullDate(in.FromDate), nullDate(in.ToDate), in.WeeklyOff, mustTime(in.CreatedAt),
	)
	return err
}

func (r *SQLiteRepository) GetHolidayList(ctx context.Context, id string) (HolidayList, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, from_date, to_date, weekly_off, created_at
		FROM holiday_lists WHERE id = ?`, id)
	item, err := scanHolidayList(row)
	if err != nil {
		return HolidayList{}, notFound(err)
	}
	return item, nil
}

func (r *SQLiteRepository) UpdateHolidayList(ctx context.Context, in HolidayList) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE holiday_lists SET name = ?, from_date = ?, to_date = ?, weekly_off = ? WHERE id = ?`,
		in.Name, nullDate(in.FromDate), nullDate(in.ToDate), in.WeeklyOff, in.ID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) ListHolidayLists(ctx context.Context) ([]HolidayList, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, from_date, to_date, weekly_off, created_at
		FROM holiday_lists ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]HolidayList, 0)
	for rows.Next() {
		item, scanErr := scanHolidayList(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateHoliday(ctx context.Context, in Holiday) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO holidays (list_id, holiday_date, description, weekly_off)
		VALUES (?, ?, ?, ?)`,
		in.ListID, formatDate(in.Date), in.Description, boolInt(in.WeeklyOff),
	)
	return err
}

func (r *SQLiteRepository) ListHolidays(ctx context.Context, filter HolidayListFilter) ([]Holiday, error) {
	query := `SELECT list_id, holiday_date, description, weekly_off FROM holidays`
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if filter.ListID != "" {
		clauses = append(clauses, "list_id = ?")
		args = append(args, filter.ListID)
	}
	if filter.From != nil {
		clauses = append(clauses, "holiday_date >= ?")
		args = append(args, formatDate(*filter.From))
	}
	if filter.To != nil {
		clauses = append(clauses, "holiday_date <= ?")
		args = append(args, formatDate(*filter.To))
	}
	query += whereClause(clauses) + ` ORDER BY holiday_date ASC, list_id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Holiday, 0)
	for rows.Next() {
		var h Holiday
		var date string
		var weeklyOff int
		if err := rows.Scan(&h.ListID, &date, &h.Description, &weeklyOff); err != nil {
			return nil, err
		}
		if h.Date, err = time.Parse(sqliteDateLayout, date); err != nil {
			return nil, err
		}
		h.WeeklyOff = weeklyOff == 1
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ReplaceWeeklyOffs(ctx context.Context, listID string, from, to time.Time, offs []Holiday) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE holiday_lists SET from_date = ?, to_date = ? WHERE id = ?`,
			formatDate(from), formatDate(to), listID)
		if err != nil {
			return err
		}
		if err := checkRowsAffected(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM holidays WHERE list_id = ? AND weekly_off = 1`, listID); err != nil {
			return err
		}
		for _, h := range offs {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO holidays (list_id, holiday_date, description, weekly_off)
				VALUES (?, ?, ?, 1)`,
				listID, formatDate(h.Date), h.Description); err != nil {
				return err
			}
		}
		return nil
	})
}

func scanHolidayList(s scanner) (HolidayList, error) {
	var out HolidayList
	var from, to sql.NullString
	var created string
	if err := s.Scan(&out.ID, &out.Name, &from, &to, &out.WeeklyOff, &created); err != nil {
		return HolidayList{}, err
	}
	var err error
	if out.FromDate, err = parseNullableDate(from); err != nil {
		return HolidayList{}, err
	}
	if out.ToDate, err = parseNullableDate(to); err != nil {
		return HolidayList{}, err
	}
	if out.CreatedAt, err = parseRequiredTime(created); err != nil {
		return HolidayList{}, err
	}
	return out, nil
}
