package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/school-admin/internal/model"
)

type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// List returns every role with the number of users assigned to it.
func (r *RoleRepo) List(ctx context.Context) ([]model.Role, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx, `
		SELECT r.id, r.name, r.is_active, r.is_editable, COUNT(u.id)
		  FROM roles r
		  LEFT JOIN users u ON u.role_id = r.id
		 GROUP BY r.id, r.name, r.is_active, r.is_editable
		 ORDER BY r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Role
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.IsActive, &role.IsEditable, &role.UsersCount); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// GetByID returns one role (without the user count).
func (r *RoleRepo) GetByID(ctx context.Context, id uint64) (model.Role, error) {
	var role model.Role
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT id, name, is_active, is_editable FROM roles WHERE id = ? LIMIT 1", id).
		Scan(&role.ID, &role.Name, &role.IsActive, &role.IsEditable)
	return role, err
}

// NameByID returns the lower-cased role name carried in token claims.
func (r *RoleRepo) NameByID(ctx context.Context, id uint64) (string, error) {
	var name string
	err := conn(ctx, r.DB).QueryRowContext(ctx, "SELECT LOWER(name) FROM roles WHERE id = ?", id).Scan(&name)
	return name, err
}

// NameExists checks for a role with the same name, ignoring case.
func (r *RoleRepo) NameExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT 1 FROM roles WHERE LOWER(name) = ? LIMIT 1", strings.ToLower(strings.TrimSpace(name))).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// Create inserts a role and returns its id.
func (r *RoleRepo) Create(ctx context.Context, name string) (uint64, error) {
	res, err := conn(ctx, r.DB).ExecContext(ctx, "INSERT INTO roles (name) VALUES (?)", strings.TrimSpace(name))
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

// Rename changes the name of an editable role.
func (r *RoleRepo) Rename(ctx context.Context, id uint64, name string) error {
	res, err := conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE roles SET name = ? WHERE id = ? AND is_editable = TRUE", strings.TrimSpace(name), id)
	if isDuplicate(err) {
		return ErrConflict
	}
	return affected(res, err)
}

// SetActive enables or disables an editable role.
func (r *RoleRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	res, err := conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE roles SET is_active = ? WHERE id = ? AND is_editable = TRUE", active, id)
	return affected(res, err)
}
