package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/school-admin/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "u.id, u.name, u.email, u.password, u.role_id, r.name, u.is_active, u.is_email_verified, u.last_login, u.created_at, u.updated_at"

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var (
		u        model.User
		password sql.NullString
		last     sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &password, &u.RoleID, &u.RoleName,
		&u.IsActive, &u.IsEmailVerified, &last, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.PasswordHash = password.String
	if last.Valid {
		t := last.Time
		u.LastLogin = &t
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email, joined with its role name.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users u JOIN roles r ON r.id = u.role_id WHERE u.email = ? LIMIT 1", email)
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users u JOIN roles r ON r.id = u.role_id WHERE u.id = ? LIMIT 1", id)
	return scanUser(row)
}

// GetByRefreshHash returns the owner of the stored refresh token with the
// given hash.  Expired rows are ignored.
func (r *UserRepo) GetByRefreshHash(ctx context.Context, tokenHash string) (model.User, error) {
	row := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT "+userColumns+` FROM users u
		   JOIN roles r ON r.id = u.role_id
		   JOIN user_refresh_tokens t ON t.user_id = u.id
		  WHERE t.token_hash = ? AND t.expires_at > UTC_TIMESTAMP()
		  LIMIT 1`, tokenHash)
	return scanUser(row)
}

// ExistsWithEmail reports whether (id, email) identifies one user.
func (r *UserRepo) ExistsWithEmail(ctx context.Context, id uint64, email string) (bool, error) {
	var one int
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE id = ? AND email = ? LIMIT 1",
		id, strings.ToLower(strings.TrimSpace(email))).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// TouchLastLogin stamps the last successful login time.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx, "UPDATE users SET last_login = ? WHERE id = ?", at, id)
	return err
}

// MarkEmailVerified flips is_email_verified.  ErrNoChange is returned when
// no row matched.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, id uint64) error {
	res, err := conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE users SET is_email_verified = TRUE WHERE id = ?", id)
	return affected(res, err)
}

// SetupPassword stores the hash and activates the account.
func (r *UserRepo) SetupPassword(ctx context.Context, id uint64, email, hash string) error {
	res, err := conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE users SET password = ?, is_active = TRUE WHERE id = ? AND email = ?",
		hash, id, strings.ToLower(strings.TrimSpace(email)))
	return affected(res, err)
}

// UpdatePassword replaces the stored hash of an existing account.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	res, err := conn(ctx, r.DB).ExecContext(ctx, "UPDATE users SET password = ? WHERE id = ?", hash, id)
	return affected(res, err)
}

// SwitchRole moves a user to another role.
func (r *UserRepo) SwitchRole(ctx context.Context, userID, roleID uint64) error {
	res, err := conn(ctx, r.DB).ExecContext(ctx, "UPDATE users SET role_id = ? WHERE id = ?", roleID, userID)
	return affected(res, err)
}

// ListByRole returns the users currently assigned to roleID.
func (r *UserRepo) ListByRole(ctx context.Context, roleID uint64) ([]model.RoleUser, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx,
		"SELECT id, name, email, is_active, last_login, role_id FROM users WHERE role_id = ? ORDER BY id", roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.RoleUser
	for rows.Next() {
		var (
			u    model.RoleUser
			last sql.NullTime
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.IsActive, &last, &u.RoleID); err != nil {
			return nil, err
		}
		if last.Valid {
			t := last.Time
			u.LastLogin = &t
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoChange
	}
	return nil
}
