package models

import (
	id "prereg/pkg/domain"
	platformstrings "prereg/pkg/platform/strings"
)

// Role is a role name asserted by the identity provider.
type Role string

const (
	RoleIndividual             Role = "INDIVIDUAL"
	RoleRegistrationOfficer    Role = "REGISTRATION_OFFICER"
	RoleRegistrationSupervisor Role = "REGISTRATION_SUPERVISOR"
	RoleRegistrationAdmin      Role = "REGISTRATION_ADMIN"
)

// PrivilegedRoles may act on applications they do not own.
var PrivilegedRoles = []Role{
	RoleRegistrationOfficer,
	RoleRegistrationSupervisor,
	RoleRegistrationAdmin,
}

// OperatorRoles are the roles allowed to call any lifecycle operation.
var OperatorRoles = append([]Role{RoleIndividual}, PrivilegedRoles...)

// RoleSet is a resolved set of role names. Unknown names are kept; they
// simply never satisfy a predicate.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from raw role names. Names are matched
// case-insensitively.
func NewRoleSet(names ...string) RoleSet {
	names = platformstrings.DedupeAndTrimUpper(names)
	set := make(RoleSet, len(names))
	for _, n := range names {
		set[Role(n)] = struct{}{}
	}
	return set
}

func (r RoleSet) Has(role Role) bool {
	_, ok := r[role]
	return ok
}

// HasAny reports whether at least one of roles is present.
func (r RoleSet) HasAny(roles ...Role) bool {
	for _, role := range roles {
		if r.Has(role) {
			return true
		}
	}
	return false
}

// Caller is the resolved identity behind a lifecycle operation.
type Caller struct {
	UserID id.UserID
	Roles  RoleSet
}

// NewCaller builds a Caller from a user id and raw role names.
func NewCaller(userID id.UserID, roles ...string) Caller {
	return Caller{UserID: userID, Roles: NewRoleSet(roles...)}
}

// CanOperate reports whether the caller holds any role that grants access to
// the lifecycle operations at all.
func (c Caller) CanOperate() bool {
	return !c.UserID.IsNil() && c.Roles.HasAny(OperatorRoles...)
}

// IsPrivileged reports whether the caller may act on other users' applications.
func (c Caller) IsPrivileged() bool {
	return c.Roles.HasAny(PrivilegedRoles...)
}

// CanAccess reports whether the caller may see and modify app.
func (c Caller) CanAccess(app *Application) bool {
	if app == nil {
		return false
	}
	return app.OwnerUserID == c.UserID || c.IsPrivileged()
}

// RoleNames returns the role names in no particular order.
func (c Caller) RoleNames() []string {
	names := make([]string, 0, len(c.Roles))
	for r := range c.Roles {
		names = append(names, string(r))
	}
	return names
}
