package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/school-admin/internal/model"
)

// AccessControlRepo reads and writes access control items and the
// permissions that grant them to roles.
type AccessControlRepo struct{ DB *sql.DB }

func NewAccessControlRepo(db *sql.DB) *AccessControlRepo { return &AccessControlRepo{DB: db} }

const acColumns = "ac.id, ac.name, ac.path, ac.icon, ac.parent_path, ac.hierarchy_id, ac.type, ac.method"

func scanAccessControls(rows *sql.Rows) ([]model.AccessControl, error) {
	defer rows.Close()
	var out []model.AccessControl
	for rows.Next() {
		var (
			a                    model.AccessControl
			icon, parent, method sql.NullString
			hier                 sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Path, &icon, &parent, &hier, &a.Type, &method); err != nil {
			return nil, err
		}
		a.Icon = nullStr(icon)
		a.ParentPath = nullStr(parent)
		a.Method = nullStr(method)
		if hier.Valid {
			h := int(hier.Int64)
			a.HierarchyID = &h
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// CheckPermission answers the point query behind every API authorization:
// does roleID hold a permission on the item with this path and method.
func (r *AccessControlRepo) CheckPermission(ctx context.Context, roleID uint64, path, method string) (bool, error) {
	var one int
	err := conn(ctx, r.DB).QueryRowContext(ctx, `
		SELECT 1
		  FROM permissions p
		  JOIN access_controls ac ON ac.id = p.access_control_id
		 WHERE p.role_id = ? AND ac.path = ? AND ac.method = ?
		 LIMIT 1`, roleID, path, strings.ToUpper(method)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// ListAll returns every access control item.
func (r *AccessControlRepo) ListAll(ctx context.Context) ([]model.AccessControl, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx, "SELECT "+acColumns+" FROM access_controls ac ORDER BY ac.id")
	if err != nil {
		return nil, err
	}
	return scanAccessControls(rows)
}

// ListByRole returns the items granted to roleID.  The caller handles the
// super-admin case; this query only looks at permission rows.
func (r *AccessControlRepo) ListByRole(ctx context.Context, roleID uint64) ([]model.AccessControl, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx, "SELECT "+acColumns+`
		  FROM permissions p
		  JOIN access_controls ac ON ac.id = p.access_control_id
		 WHERE p.role_id = ?
		 ORDER BY ac.id`, roleID)
	if err != nil {
		return nil, err
	}
	return scanAccessControls(rows)
}

// Create inserts a new item and returns its id.
func (r *AccessControlRepo) Create(ctx context.Context, a model.AccessControl) (uint64, error) {
	res, err := conn(ctx, r.DB).ExecContext(ctx, `
		INSERT INTO access_controls (name, path, icon, parent_path, hierarchy_id, type, method)
		VALUES (?,?,?,?,?,?,?)`,
		a.Name, a.Path, a.Icon, a.ParentPath, a.HierarchyID, a.Type, a.Method)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Update overwrites every column of item a.ID.
func (r *AccessControlRepo) Update(ctx context.Context, a model.AccessControl) error {
	res, err := conn(ctx, r.DB).ExecContext(ctx, `
		UPDATE access_controls
		   SET name = ?, path = ?, icon = ?, parent_path = ?, hierarchy_id = ?, type = ?, method = ?
		 WHERE id = ?`,
		a.Name, a.Path, a.Icon, a.ParentPath, a.HierarchyID, a.Type, a.Method, a.ID)
	if isDuplicate(err) {
		return ErrConflict
	}
	return affected(res, err)
}

// Delete removes an item; permission rows go with it via ON DELETE CASCADE.
func (r *AccessControlRepo) Delete(ctx context.Context, id uint64) error {
	res, err := conn(ctx, r.DB).ExecContext(ctx, "DELETE FROM access_controls WHERE id = ?", id)
	return affected(res, err)
}

// ReplacePermissions makes ids the exact permission set of roleID.  Rows for
// ids no longer listed are deleted and the rest are written with one
// parameterized multi-row upsert.  Unknown ids are ignored.  It must run
// inside WithTx.
func (r *AccessControlRepo) ReplacePermissions(ctx context.Context, roleID uint64, ids []uint64) error {
	q := conn(ctx, r.DB)
	if len(ids) == 0 {
		_, err := q.ExecContext(ctx, "DELETE FROM permissions WHERE role_id = ?", roleID)
		return err
	}

	marks := placeholders(len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, roleID)
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := q.ExecContext(ctx,
		"DELETE FROM permissions WHERE role_id = ? AND access_control_id NOT IN ("+marks+")", args...); err != nil {
		return err
	}

	// Insert copies the item type from access_controls so that unknown ids
	// simply produce no row.
	_, err := q.ExecContext(ctx, `
		INSERT INTO permissions (role_id, access_control_id, type)
		SELECT ?, ac.id, ac.type FROM access_controls ac WHERE ac.id IN (`+marks+`)
		ON DUPLICATE KEY UPDATE type = VALUES(type)`, args...)
	return err
}

// placeholders returns "?,?,...,?" with n marks.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
