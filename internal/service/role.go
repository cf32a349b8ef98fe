package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/school-admin/internal/apperr"
	"github.com/iliyamo/school-admin/internal/model"
	"github.com/iliyamo/school-admin/internal/repository"
)

// RoleService administers roles and the permissions attached to them.
type RoleService struct {
	DB     *sql.DB
	Roles  *repository.RoleRepo
	Users  *repository.UserRepo
	Items  *repository.AccessControlRepo
	Access *AccessControlService
	Log    logrus.FieldLogger
}

func (s *RoleService) List(ctx context.Context) ([]model.Role, error) {
	roles, err := s.Roles.List(ctx)
	if err != nil {
		return nil, apperr.ServerError("Unable to get roles", err)
	}
	if len(roles) == 0 {
		return nil, apperr.ServerError("Roles not found", nil)
	}
	return roles, nil
}

func (s *RoleService) Get(ctx context.Context, id uint64) (model.Role, error) {
	role, err := s.Roles.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Role{}, apperr.NotFound("Invalid role id")
	}
	if err != nil {
		return model.Role{}, apperr.ServerError("Unable to get role detail", err)
	}
	return role, nil
}

// Create adds a role.  Names are unique regardless of case.
func (s *RoleService) Create(ctx context.Context, name string) (uint64, error) {
	exists, err := s.Roles.NameExists(ctx, name)
	if err != nil {
		return 0, apperr.ServerError("Unable to add role", err)
	}
	if exists {
		return 0, apperr.Conflict("Role Name already exists.")
	}
	id, err := s.Roles.Create(ctx, name)
	if errors.Is(err, repository.ErrConflict) {
		return 0, apperr.Conflict("Role Name already exists.")
	}
	if err != nil {
		return 0, apperr.ServerError("Unable to add role", err)
	}
	s.Log.WithFields(logrus.Fields{"role_id": id, "name": name}).Info("role created")
	return id, nil
}

// Rename changes the name of an editable role.  Non-editable roles (the
// super-admin) report a server error as no row is touched.
func (s *RoleService) Rename(ctx context.Context, id uint64, name string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	err := s.Roles.Rename(ctx, id, name)
	if errors.Is(err, repository.ErrConflict) {
		return apperr.Conflict("Role Name already exists.")
	}
	if err != nil {
		return apperr.ServerError("Unable to update role", err)
	}
	return nil
}

// SetStatus enables or disables an editable role and returns the message
// shown to the caller.
func (s *RoleService) SetStatus(ctx context.Context, id uint64, active bool) (string, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return "", err
	}
	stsText := "disabled"
	if active {
		stsText = "enabled"
	}
	if err := s.Roles.SetActive(ctx, id, active); err != nil {
		return "", apperr.ServerError(fmt.Sprintf("Unable to change role status to %s", stsText), err)
	}
	return fmt.Sprintf("Role %s successfully", stsText), nil
}

// Permissions lists the items granted to a role.
func (s *RoleService) Permissions(ctx context.Context, id uint64) ([]model.AccessControl, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	items, err := s.Access.PermissionsFor(ctx, id)
	if err != nil {
		return nil, apperr.ServerError("Unable to get permissions", err)
	}
	if len(items) == 0 {
		return nil, apperr.NotFound("Permissions for given role not found")
	}
	return items, nil
}

// ReplacePermissions makes ids the exact permission set of the role in one
// transaction and returns the message for the caller.
func (s *RoleService) ReplacePermissions(ctx context.Context, id uint64, ids []uint64) (string, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return "", err
	}
	ids = dedupe(ids)
	err := repository.WithTx(ctx, s.DB, func(ctx context.Context) error {
		return s.Items.ReplacePermissions(ctx, id, ids)
	})
	if err != nil {
		return "", apperr.ServerError("Unable to assign permission to given role", err)
	}
	s.Log.WithFields(logrus.Fields{"role_id": id, "permissions": len(ids)}).Info("role permissions replaced")
	if len(ids) == 0 {
		return "Permission of given role deleted successfully", nil
	}
	return "Permission of given role saved successfully", nil
}

// ListUsers lists the accounts assigned to a role.
func (s *RoleService) ListUsers(ctx context.Context, id uint64) ([]model.RoleUser, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	users, err := s.Users.ListByRole(ctx, id)
	if err != nil {
		return nil, apperr.ServerError("Unable to get users", err)
	}
	if len(users) == 0 {
		return nil, apperr.NotFound("Users not found")
	}
	return users, nil
}

// SwitchRole moves a user to another existing role.
func (s *RoleService) SwitchRole(ctx context.Context, userID, roleID uint64) error {
	if _, err := s.Get(ctx, roleID); err != nil {
		return err
	}
	err := s.Users.SwitchRole(ctx, userID, roleID)
	if errors.Is(err, repository.ErrNoChange) {
		return apperr.ServerError("Unable to switch role", nil)
	}
	if err != nil {
		return apperr.ServerError("Unable to switch role", err)
	}
	s.Log.WithFields(logrus.Fields{"user_id": userID, "role_id": roleID}).Info("user role switched")
	return nil
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
