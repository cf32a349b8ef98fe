package model

// Access control item types.  Anything that is not an API and not a menu is
// treated as a UI capability (buttons, tabs and the like).
const (
	TypeMenu       = "menu"
	TypeMenuScreen = "menu-screen"
	TypeAPI        = "api"
)

// AccessControl is one row of the `access_controls` table.  An item is a
// navigable menu entry, a UI capability or an API endpoint.  Items with a
// ParentPath hang below the item whose Path equals it; the tree is never
// deeper than two levels.
type AccessControl struct {
	ID          uint64  `json:"id"`
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	Icon        *string `json:"icon"`
	ParentPath  *string `json:"parent_path"`
	HierarchyID *int    `json:"hierarchy_id"`
	Type        string  `json:"type"`
	Method      *string `json:"method"`
}

// IsMenu reports whether the item belongs to the navigation tree.
func (a AccessControl) IsMenu() bool {
	return a.Type == TypeMenu || a.Type == TypeMenuScreen
}

// MenuItem is the trimmed child node: parent_path, hierarchy_id and icon
// never leave the server for children.
type MenuItem struct {
	ID     uint64  `json:"id"`
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	Type   string  `json:"type"`
	Method *string `json:"method"`
}

// MenuNode is a top level node with its ordered children.  SubMenus is
// always non-nil so that it encodes as [] rather than null.
type MenuNode struct {
	MenuItem
	Icon     *string    `json:"icon"`
	SubMenus []MenuItem `json:"subMenus"`
}

// PermissionSet is the classified permission payload returned after login
// and by the /access-controls/me endpoint.  Menus is the two level tree;
// UIs and APIs stay flat.
type PermissionSet struct {
	Menus []MenuNode      `json:"menus"`
	UIs   []AccessControl `json:"uis"`
	APIs  []AccessControl `json:"apis"`
}
