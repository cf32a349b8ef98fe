package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo persists refresh tokens.  Only the SHA-256 hash of a token is
// stored (single 'token_hash' column); callers hash before every call.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		"INSERT INTO user_refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	return err
}

// DeleteByHash removes one token and reports how many rows went away.
func (r *TokenRepo) DeleteByHash(ctx context.Context, tokenHash string) (int64, error) {
	res, err := conn(ctx, r.DB).ExecContext(ctx,
		"DELETE FROM user_refresh_tokens WHERE token_hash = ?", tokenHash)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteAllForUser drops every refresh token the user holds.
func (r *TokenRepo) DeleteAllForUser(ctx context.Context, userID uint64) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		"DELETE FROM user_refresh_tokens WHERE user_id = ?", userID)
	return err
}

// Replace swaps the row identified by oldHash for a new token of the same
// user.  ErrNoChange means the old token was already gone.
func (r *TokenRepo) Replace(ctx context.Context, userID uint64, oldHash, newHash string, exp time.Time) error {
	res, err := conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE user_refresh_tokens SET token_hash = ?, expires_at = ? WHERE user_id = ? AND token_hash = ?",
		newHash, exp, userID, oldHash)
	return affected(res, err)
}

// PurgeExpired removes rows past their expiry and returns how many.
func (r *TokenRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := conn(ctx, r.DB).ExecContext(ctx,
		"DELETE FROM user_refresh_tokens WHERE expires_at <= ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
