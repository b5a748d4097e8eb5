package auth

import "slices"

// Admin roles, least privileged first.
const (
	RoleViewer     = "viewer"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// ReviewRoles may read the flagged-session queue.
func ReviewRoles() []string {
	return []string{RoleViewer, RoleAdmin, RoleSuperAdmin}
}

// ModerationRoles may deactivate and reactivate players.
func ModerationRoles() []string {
	return []string{RoleAdmin, RoleSuperAdmin}
}

// ValidRole reports whether role may appear in an admin token.
func ValidRole(role string) bool {
	return slices.Contains(ReviewRoles(), role)
}
