package storage

import (
	"context"
	"time"
)

func (r *SQLiteRepository) StatusCounts(ctx context.Context) ([]StatusCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(1) FROM task_instances GROUP BY status ORDER BY status ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]StatusCount, 0)
	for rows.Next() {
		var item StatusCount
		if err := rows.Scan(&item.Status, &item.Count); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Workload counts pending instances per assignee. today is the start of the
// current day; instances due before it are overdue.
func (r *SQLiteRepository) Workload(ctx context.Context, today time.Time) ([]WorkloadRow, error) {
	start := mustTime(today)
	end := mustTime(today.AddDate(0, 0, 1))
	rows, err := r.db.QueryContext(ctx, `
		SELECT assignee,
			COUNT(1),
			SUM(CASE WHEN due_at < ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN due_at >= ? AND due_at < ? THEN 1 ELSE 0 END)
		FROM task_instances
		WHERE status IN ('Upcoming', 'Open', 'Overdue')
		GROUP BY assignee
		ORDER BY assignee ASC`, start, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]WorkloadRow, 0)
	for rows.Next() {
		var item WorkloadRow
		if err := rows.Scan(&item.Assignee, &item.Open, &item.Overdue, &item.DueToday); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
