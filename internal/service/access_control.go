package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/school-admin/internal/apperr"
	"github.com/iliyamo/school-admin/internal/model"
	"github.com/iliyamo/school-admin/internal/repository"
)

// BuildHierarchy turns a flat item list into the two level menu tree.
// Parents are items without a parent path; children attach to the parent
// whose path equals their parent path.  Both groups are ordered by
// hierarchy id (ties keep input order).  Children whose parent is absent are
// dropped.
func BuildHierarchy(items []model.AccessControl) []model.MenuNode {
	if len(items) == 0 {
		return []model.MenuNode{}
	}
	var parents, children []model.AccessControl
	for _, it := range items {
		if it.ParentPath == nil || *it.ParentPath == "" {
			parents = append(parents, it)
		} else {
			children = append(children, it)
		}
	}
	byHierarchy := func(s []model.AccessControl) {
		sort.SliceStable(s, func(i, j int) bool { return hierarchyOf(s[i]) < hierarchyOf(s[j]) })
	}
	byHierarchy(parents)
	byHierarchy(children)

	out := make([]model.MenuNode, 0, len(parents))
	for _, p := range parents {
		node := model.MenuNode{MenuItem: menuItem(p), Icon: p.Icon, SubMenus: []model.MenuItem{}}
		for _, c := range children {
			if *c.ParentPath == p.Path {
				node.SubMenus = append(node.SubMenus, menuItem(c))
			}
		}
		out = append(out, node)
	}
	return out
}

func hierarchyOf(a model.AccessControl) int {
	if a.HierarchyID == nil {
		return 0
	}
	return *a.HierarchyID
}

func menuItem(a model.AccessControl) model.MenuItem {
	return model.MenuItem{ID: a.ID, Name: a.Name, Path: a.Path, Type: a.Type, Method: a.Method}
}

// ClassifyPermissions splits a role's items into the navigation tree (menu
// and menu-screen items), the UI list (everything but APIs) and the API list.
func ClassifyPermissions(items []model.AccessControl) model.PermissionSet {
	set := model.PermissionSet{UIs: []model.AccessControl{}, APIs: []model.AccessControl{}}
	var menus []model.AccessControl
	for _, it := range items {
		if it.IsMenu() {
			menus = append(menus, it)
		}
		if it.Type == model.TypeAPI {
			set.APIs = append(set.APIs, it)
		} else {
			set.UIs = append(set.UIs, it)
		}
	}
	set.Menus = BuildHierarchy(menus)
	return set
}

// AccessControlService answers authorization queries and manages the
// access control catalogue.
type AccessControlService struct {
	Items *repository.AccessControlRepo
	Log   logrus.FieldLogger
}

// Authorize reports whether roleID may call method on the route template
// path.  The super-admin never touches the database; every other check is a
// single point query.
func (s *AccessControlService) Authorize(ctx context.Context, roleID uint64, path, method string) (bool, error) {
	if roleID == model.SuperAdminRoleID {
		return true, nil
	}
	return s.Items.CheckPermission(ctx, roleID, path, strings.ToUpper(method))
}

// PermissionsFor returns the items granted to roleID; the super-admin holds
// all of them.
func (s *AccessControlService) PermissionsFor(ctx context.Context, roleID uint64) ([]model.AccessControl, error) {
	if roleID == model.SuperAdminRoleID {
		return s.Items.ListAll(ctx)
	}
	return s.Items.ListByRole(ctx, roleID)
}

// Mine returns the caller's classified permissions.
func (s *AccessControlService) Mine(ctx context.Context, roleID uint64) (model.PermissionSet, error) {
	items, err := s.PermissionsFor(ctx, roleID)
	if err != nil {
		return model.PermissionSet{}, apperr.ServerError("Unable to get permissions", err)
	}
	if len(items) == 0 {
		return model.PermissionSet{}, apperr.NotFound("You do not have permission to the system.")
	}
	return ClassifyPermissions(items), nil
}

// List returns the whole catalogue as a hierarchy.
func (s *AccessControlService) List(ctx context.Context) ([]model.MenuNode, error) {
	items, err := s.Items.ListAll(ctx)
	if err != nil {
		return nil, apperr.ServerError("Unable to get access controls", err)
	}
	if len(items) == 0 {
		return nil, apperr.NotFound("Access controls not found")
	}
	return BuildHierarchy(items), nil
}

// Create adds an item to the catalogue.
func (s *AccessControlService) Create(ctx context.Context, a model.AccessControl) (uint64, error) {
	normalizeItem(&a)
	id, err := s.Items.Create(ctx, a)
	if errors.Is(err, repository.ErrConflict) {
		return 0, apperr.Conflict("Access control already exists")
	}
	if err != nil {
		return 0, apperr.ServerError("Unable to add access control", err)
	}
	s.Log.WithFields(logrus.Fields{"access_control_id": id, "path": a.Path}).Info("access control created")
	return id, nil
}

// Update overwrites an existing item.
func (s *AccessControlService) Update(ctx context.Context, a model.AccessControl) error {
	normalizeItem(&a)
	err := s.Items.Update(ctx, a)
	switch {
	case errors.Is(err, repository.ErrNoChange):
		return apperr.NotFound("Access control not found")
	case errors.Is(err, repository.ErrConflict):
		return apperr.Conflict("Access control already exists")
	case err != nil:
		return apperr.ServerError("Unable to update access control", err)
	}
	return nil
}

// Delete removes an item and the permissions granting it.
func (s *AccessControlService) Delete(ctx context.Context, id uint64) error {
	err := s.Items.Delete(ctx, id)
	if errors.Is(err, repository.ErrNoChange) {
		return apperr.NotFound("Access control not found")
	}
	if err != nil {
		return apperr.ServerError("Unable to delete access control", err)
	}
	return nil
}

func normalizeItem(a *model.AccessControl) {
	a.Type = strings.ToLower(strings.TrimSpace(a.Type))
	if a.Method != nil {
		m := strings.ToUpper(strings.TrimSpace(*a.Method))
		a.Method = &m
	}
}
