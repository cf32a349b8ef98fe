package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/school-admin/internal/apperr"
	"github.com/iliyamo/school-admin/internal/model"
	"github.com/iliyamo/school-admin/internal/repository"
)

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func TestBuildHierarchyAttachesAndStripsChildren(t *testing.T) {
	items := []model.AccessControl{
		{ID: 1, Path: "/a", HierarchyID: intp(1), Type: model.TypeMenu, Icon: strp("home")},
		{ID: 2, Path: "/a/b", ParentPath: strp("/a"), HierarchyID: intp(1), Type: model.TypeMenuScreen, Icon: strp("x")},
	}
	tree := BuildHierarchy(items)
	require.Len(t, tree, 1)
	assert.Equal(t, "/a", tree[0].Path)
	require.NotNil(t, tree[0].Icon)
	assert.Equal(t, "home", *tree[0].Icon)
	require.Len(t, tree[0].SubMenus, 1)
	assert.Equal(t, "/a/b", tree[0].SubMenus[0].Path)

	raw, err := json.Marshal(tree[0].SubMenus[0])
	require.NoError(t, err)
	var child map[string]any
	require.NoError(t, json.Unmarshal(raw, &child))
	assert.NotContains(t, child, "parent_path")
	assert.NotContains(t, child, "hierarchy_id")
	assert.NotContains(t, child, "icon")

	raw, err = json.Marshal(tree[0])
	require.NoError(t, err)
	var parent map[string]any
	require.NoError(t, json.Unmarshal(raw, &parent))
	assert.NotContains(t, parent, "parent_path")
	assert.NotContains(t, parent, "hierarchy_id")
	assert.Contains(t, parent, "icon")
}

func TestBuildHierarchyOrdersAndDropsOrphans(t *testing.T) {
	items := []model.AccessControl{
		{ID: 1, Path: "/z", HierarchyID: intp(3)},
		{ID: 2, Path: "/a", HierarchyID: intp(1)},
		{ID: 3, Path: "/a/2", ParentPath: strp("/a"), HierarchyID: intp(2)},
		{ID: 4, Path: "/a/1", ParentPath: strp("/a"), HierarchyID: intp(1)},
		{ID: 5, Path: "/ghost/1", ParentPath: strp("/ghost"), HierarchyID: intp(1)},
		{ID: 6, Path: "/m", HierarchyID: intp(2)},
	}
	tree := BuildHierarchy(items)
	require.Len(t, tree, 3)
	assert.Equal(t, []string{"/a", "/m", "/z"}, []string{tree[0].Path, tree[1].Path, tree[2].Path})
	assert.Equal(t, "/a/1", tree[0].SubMenus[0].Path)
	assert.Equal(t, "/a/2", tree[0].SubMenus[1].Path)

	// parents without children still encode subMenus as []
	assert.NotNil(t, tree[1].SubMenus)
	raw, err := json.Marshal(tree[1])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"subMenus":[]`)

	assert.Empty(t, BuildHierarchy(nil))
}

func TestClassifyPermissions(t *testing.T) {
	items := []model.AccessControl{
		{ID: 1, Path: "/roles", Type: model.TypeMenu, HierarchyID: intp(1)},
		{ID: 2, Path: "/roles/edit", ParentPath: strp("/roles"), Type: model.TypeMenuScreen, HierarchyID: intp(1)},
		{ID: 3, Path: "btn-delete-role", Type: "button"},
		{ID: 4, Path: "/api/v1/roles", Type: model.TypeAPI, Method: strp("GET")},
		{ID: 5, Path: "/api/v1/orphan", ParentPath: strp("/nowhere"), Type: model.TypeAPI, Method: strp("POST")},
	}
	set := ClassifyPermissions(items)
	require.Len(t, set.Menus, 1)
	assert.Len(t, set.Menus[0].SubMenus, 1)
	assert.Len(t, set.UIs, 3)
	require.Len(t, set.APIs, 2)
	assert.Equal(t, "/api/v1/orphan", set.APIs[1].Path)
}

func newAccessService(t *testing.T) (*AccessControlService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	log, _ := logtest.NewNullLogger()
	return &AccessControlService{Items: repository.NewAccessControlRepo(db), Log: log}, mock
}

func TestAuthorizeSuperAdminWithoutQuery(t *testing.T) {
	svc, mock := newAccessService(t)
	for _, m := range []string{"GET", "POST", "DELETE"} {
		ok, err := svc.Authorize(context.Background(), model.SuperAdminRoleID, "/api/v1/anything/:id", m)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthorizeRunsOnePointQuery(t *testing.T) {
	svc, mock := newAccessService(t)
	mock.ExpectQuery("SELECT 1").WithArgs(uint64(3), "/api/v1/roles/:id", "PUT").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	ok, err := svc.Authorize(context.Background(), 3, "/api/v1/roles/:id", "put")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMineEmptyIsNotFound(t *testing.T) {
	svc, mock := newAccessService(t)
	mock.ExpectQuery("FROM permissions p").WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "path", "icon", "parent_path", "hierarchy_id", "type", "method"}))

	_, err := svc.Mine(context.Background(), 3)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, ae.Kind)
}

func TestReplacePermissionsDedupesInTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	log, _ := logtest.NewNullLogger()
	log.SetLevel(logrus.InfoLevel)
	items := repository.NewAccessControlRepo(db)
	svc := &RoleService{
		DB:     db,
		Roles:  repository.NewRoleRepo(db),
		Users:  repository.NewUserRepo(db),
		Items:  items,
		Access: &AccessControlService{Items: items, Log: log},
		Log:    log,
	}

	mock.ExpectQuery("SELECT id, name, is_active, is_editable FROM roles").WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "is_active", "is_editable"}).AddRow(2, "Teacher", true, true))
	mock.ExpectBegin()
	mock.ExpectExec("NOT IN \\(\\?,\\?\\)").WithArgs(uint64(2), uint64(4), uint64(7)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO permissions").WithArgs(uint64(2), uint64(4), uint64(7)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	msg, err := svc.ReplacePermissions(context.Background(), 2, []uint64{4, 7, 4})
	require.NoError(t, err)
	assert.Equal(t, "Permission of given role saved successfully", msg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleCreateDuplicateConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	log, _ := logtest.NewNullLogger()
	svc := &RoleService{DB: db, Roles: repository.NewRoleRepo(db), Log: log}

	mock.ExpectQuery("SELECT 1 FROM roles WHERE LOWER\\(name\\)").WithArgs("teacher").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	_, err = svc.Create(context.Background(), "TEACHER")
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindConflict, ae.Kind)
}
