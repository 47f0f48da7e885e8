package storage

import "context"

func (r *SQLiteRepository) UpsertRolePermission(ctx context.Context, in RolePermission) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO role_permissions (role, doctype, can_read, can_write, can_create, can_delete, can_submit, can_report, can_export)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (role, doctype) DO UPDATE SET
			can_read = excluded.can_read,
			can_write = excluded.can_write,
			can_create = excluded.can_create,
			can_delete = excluded.can_delete,
			can_submit = excluded.can_submit,
			can_report = excluded.can_report,
			can_export = excluded.can_export`,
		in.Role, in.Doctype, boolInt(in.Read), boolInt(in.Write), boolInt(in.Create), boolInt(in.Delete),
		boolInt(in.Submit), boolInt(in.Report), boolInt(in.Export),
	)
	return err
}

func (r *SQLiteRepository) DeleteRolePermission(ctx context.Context, role, doctype string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM role_permissions WHERE role = ? AND doctype = ?`, role, doctype)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) ListRolePermissions(ctx context.Context, filter RolePermissionListFilter) ([]RolePermission, error) {
	query := `SELECT role, doctype, can_read, can_write, can_create, can_delete, can_submit, can_report, can_export FROM role_permissions`
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.Role != "" {
		clauses = append(clauses, "role = ?")
		args = append(args, filter.Role)
	}
	if len(filter.Roles) > 0 {
		clauses = append(clauses, "role IN ("+placeholders(len(filter.Roles))+")")
		for _, role := range filter.Roles {
			args = append(args, role)
		}
	}
	if filter.Doctype != "" {
		clauses = append(clauses, "doctype = ?")
		args = append(args, filter.Doctype)
	}
	query += whereClause(clauses) + ` ORDER BY role ASC, doctype ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RolePermission, 0)
	for rows.Next() {
		var p RolePermission
		var read, write, create, del, submit, report, export int
		if err := rows.Scan(&p.Role, &p.Doctype, &read, &write, &create, &del, &submit, &report, &export); err != nil {
			return nil, err
		}
		p.Read, p.Write, p.Create, p.Delete = read == 1, write == 1, create == 1, del == 1
		p.Submit, p.Report, p.Export = submit == 1, report == 1, export == 1
		out = append(out, p)
	}
	return out, rows.Err()
}
