package storage

import "context"

const notificationRuleColumns = `id, definition_id, channel, phone, template, days_before, send_at, enabled, created_at`

func (r *SQLiteRepository) CreateNotificationRule(ctx context.Context, in NotificationRule) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_rules (`+notificationRuleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.DefinitionID, in.Channel, in.Phone, in.Template, in.DaysBefore, in.SendAt, boolInt(in.Enabled), mustTime(in.CreatedAt),
	)
	return err
}

func (r *SQLiteRepository) GetNotificationRule(ctx context.Context, id string) (NotificationRule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+notificationRuleColumns+` FROM notification_rules WHERE id = ?`, id)
	item, err := scanNotificationRule(row)
	if err != nil {
		return NotificationRule{}, notFound(err)
	}
	return item, nil
}

func (r *SQLiteRepository) UpdateNotificationRule(ctx context.Context, in NotificationRule) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notification_rules
		SET definition_id = ?, channel = ?, phone = ?, template = ?, days_before = ?, send_at = ?, enabled = ?
		WHERE id = ?`,
		in.DefinitionID, in.Channel, in.Phone, in.Template, in.DaysBefore, in.SendAt, boolInt(in.Enabled), in.ID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) DeleteNotificationRule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notification_rules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) ListNotificationRules(ctx context.Context, filter NotificationRuleListFilter) ([]NotificationRule, error) {
	query := `SELECT ` + notificationRuleColumns + ` FROM notification_rules`
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if filter.DefinitionID != "" {
		clauses = append(clauses, "definition_id = ?")
		args = append(args, filter.DefinitionID)
	}
	if filter.Enabled != nil {
		clauses = append(clauses, "enabled = ?")
		args = append(args, boolInt(*filter.Enabled))
	}
	query += whereClause(clauses) + ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]NotificationRule, 0)
	for rows.Next() {
		item, scanErr := scanNotificationRule(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateNotificationLog(ctx context.Context, in NotificationLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_log (id, instance_id, rule_id, status, error, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		in.ID, in.InstanceID, in.RuleID, in.Status, in.Error, mustTime(in.SentAt),
	)
	return err
}

func (r *SQLiteRepository) HasNotificationLog(ctx context.Context, instanceID, ruleID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM notification_log WHERE instance_id = ? AND rule_id = ?`,
		instanceID, ruleID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLiteRepository) ListNotificationLogs(ctx context.Context, filter NotificationLogListFilter) ([]NotificationLog, error) {
	query := `SELECT id, instance_id, rule_id, status, error, sent_at FROM notification_log`
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.InstanceID != "" {
		clauses = append(clauses, "instance_id = ?")
		args = append(args, filter.InstanceID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	query += whereClause(clauses) + ` ORDER BY sent_at DESC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]NotificationLog, 0)
	for rows.Next() {
		var item NotificationLog
		var sent string
		if err := rows.Scan(&item.ID, &item.InstanceID, &item.RuleID, &item.Status, &item.Error, &sent); err != nil {
			return nil, err
		}
		if item.SentAt, err = parseRequiredTime(sent); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanNotificationRule(s scanner) (NotificationRule, error) {
	var out NotificationRule
	var enabled int
	var created string
	if err := s.Scan(&out.ID, &out.DefinitionID, &out.Channel, &out.Phone, &out.Template, &out.DaysBefore, &out.SendAt, &enabled, &created); err != nil {
		return NotificationRule{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return NotificationRule{}, err
	}
	out.Enabled = enabled == 1
	out.CreatedAt = createdAt
	return out, nil
}
