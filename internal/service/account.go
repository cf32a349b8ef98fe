package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/school-admin/internal/apperr"
	"github.com/iliyamo/school-admin/internal/repository"
	"github.com/iliyamo/school-admin/internal/utils"
)

// AccountService serves the signed-in user's own account.
type AccountService struct {
	DB       *sql.DB
	Users    *repository.UserRepo
	Tokens   *repository.TokenRepo
	Roles    *repository.RoleRepo
	Sessions *SessionIssuer
	Hasher   *utils.PasswordHasher
	Log      logrus.FieldLogger
}

// AccountDetail is the body of GET /account/me.
type AccountDetail struct {
	ID              uint64     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	RoleID          uint64     `json:"roleId"`
	IsActive        bool       `json:"isActive"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	LastLogin       *time.Time `json:"lastLogin"`
}

// ChangePasswordResult carries the rotated session.
type ChangePasswordResult struct {
	Access  AccessSession
	Refresh utils.SignedToken
	Message string
}

// ChangePassword verifies the old password, stores the new one and rotates
// the whole session in one transaction.  Every other device is logged out.
func (s *AccountService) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string) (res ChangePasswordResult, err error) {
	defer func() { observe("change_password", err) }()

	err = repository.WithTx(ctx, s.DB, func(ctx context.Context) error {
		u, err := s.Users.GetByID(ctx, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound(msgUserNotFound)
		}
		if err != nil {
			return err
		}
		if err := s.Hasher.Verify(u.PasswordHash, oldPassword); err != nil {
			return apperr.BadRequest(msgInvalidCredential)
		}
		roleName, err := s.Roles.NameByID(ctx, u.RoleID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("Role does not exist for user")
		}
		if err != nil {
			return err
		}

		hash, err := s.Hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		if err := s.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
			return err
		}

		access, err := s.Sessions.IssueAccess(u.ID, roleName, u.RoleID)
		if err != nil {
			return err
		}
		refresh, err := s.Sessions.IssueRefresh(u.ID, roleName, u.RoleID)
		if err != nil {
			return err
		}
		if err := s.Tokens.DeleteAllForUser(ctx, u.ID); err != nil {
			return err
		}
		if err := s.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Token), refresh.Exp); err != nil {
			return err
		}
		res = ChangePasswordResult{Access: access, Refresh: refresh, Message: "Password changed successfully"}
		return nil
	})
	if err != nil {
		return ChangePasswordResult{}, apperr.Wrap(err, "Unable to change password")
	}
	s.Log.WithField("user_id", userID).Info("password changed")
	return res, nil
}

// Me returns the account details of userID.
func (s *AccountService) Me(ctx context.Context, userID uint64) (AccountDetail, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return AccountDetail{}, apperr.NotFound(msgUserNotFound)
	}
	if err != nil {
		return AccountDetail{}, apperr.ServerError("Unable to get account detail", err)
	}
	return AccountDetail{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            u.RoleName,
		RoleID:          u.RoleID,
		IsActive:        u.IsActive,
		IsEmailVerified: u.IsEmailVerified,
		LastLogin:       u.LastLogin,
	}, nil
}
