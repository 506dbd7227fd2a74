package domain

// Role is a closed enum with an explicit hierarchy: each role includes every
// capability of the roles below it. Comparisons go through the capability
// table, never through string matching.
type Role int

const (
	RoleViewer Role = iota
	RoleStaff
	RoleManager
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RoleStaff:
		return "staff"
	case RoleManager:
		return "manager"
	case RoleOwner:
		return "owner"
	}
	return "unknown"
}

// ParseRole maps a claim value to a role; unknown values collapse to the
// least-privileged role.
func ParseRole(s string) Role {
	switch s {
	case "owner":
		return RoleOwner
	case "manager":
		return RoleManager
	case "staff":
		return RoleStaff
	default:
		return RoleViewer
	}
}

type Permission string

const (
	PermViewOrders      Permission = "orders:view"
	PermManageOrders    Permission = "orders:manage"
	PermManageInventory Permission = "inventory:manage"
	PermManageCatalog   Permission = "catalog:manage"
	PermManageTenant    Permission = "tenant:manage"
)

// capabilities is the single authorization table. Roles are cumulative down
// the hierarchy.
var capabilities = map[Role][]Permission{
	RoleViewer:  {PermViewOrders},
	RoleStaff:   {PermViewOrders, PermManageOrders},
	RoleManager: {PermViewOrders, PermManageOrders, PermManageInventory, PermManageCatalog},
	RoleOwner:   {PermViewOrders, PermManageOrders, PermManageInventory, PermManageCatalog, PermManageTenant},
}

// Allows is the one authorization check in the system.
func (r Role) Allows(p Permission) bool {
	for _, have := range capabilities[r] {
		if have == p {
			return true
		}
	}
	return false
}
