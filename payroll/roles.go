package payroll

import "strings"

// =============================================================================
// ROLE - Closed set of positions that take part in the tip pool
// =============================================================================

type Role int

const (
	RoleKitchen Role = iota
	RoleBartender
	RoleServer
	RoleHost
)

// Roles lists the canonical roles in report column order.
var Roles = [...]Role{RoleKitchen, RoleBartender, RoleServer, RoleHost}

func (r Role) String() string {
	switch r {
	case RoleKitchen:
		return "Kitchen"
	case RoleBartender:
		return "Bartender"
	case RoleServer:
		return "Server"
	case RoleHost:
		return "Host"
	default:
		return "Unknown"
	}
}

// ParseRole maps a wage title from the labor feed onto a Role.
// Matching ignores case and surrounding whitespace.
func ParseRole(title string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(title)) {
	case "kitchen":
		return RoleKitchen, nil
	case "bartender":
		return RoleBartender, nil
	case "server":
		return RoleServer, nil
	case "host":
		return RoleHost, nil
	}
	return 0, &DataError{Field: "role", Value: title, Err: ErrUnknownRole}
}

// roleSet is a small membership set over Role.
type roleSet uint8

func newRoleSet(roles []Role) roleSet {
	var s roleSet
	for _, r := range roles {
		s |= 1 << uint(r)
	}
	return s
}

func (s roleSet) has(r Role) bool { return s&(1<<uint(r)) != 0 }
func (s roleSet) empty() bool     { return s == 0 }
