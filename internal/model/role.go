package model

import (
	"fmt"
	"strings"
)

// Role is a user's position in the institution hierarchy.
type Role string

const (
	RoleSuperAdmin Role = "SUPERADMIN"
	RolePrincipal  Role = "PRINCIPAL"
	RoleHOD        Role = "HOD"
	RoleAssistant  Role = "ASSISTANT"
	RoleFaculty    Role = "FACULTY"
	RoleStudent    Role = "STUDENT"
)

// Roles lists every role from the top of the hierarchy down.
var Roles = []Role{RoleSuperAdmin, RolePrincipal, RoleHOD, RoleAssistant, RoleFaculty, RoleStudent}

// RoleNames returns Roles as a comma-separated list.
func RoleNames() string {
	names := make([]string, len(Roles))
	for i, r := range Roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

// Capability is a single permission granted to one or more roles.
type Capability int

const (
	CapManageDepartments Capability = iota
	CapManageUsers
	CapAuthorExams
	CapTakeExams
	CapViewDepartmentResults
	CapViewAllResults
)

var roleCapabilities = map[Role][]Capability{
	RoleSuperAdmin: {CapManageDepartments, CapManageUsers, CapViewAllResults, CapViewDepartmentResults},
	RolePrincipal:  {CapManageDepartments, CapManageUsers, CapViewAllResults, CapViewDepartmentResults},
	RoleHOD:        {CapManageUsers, CapViewDepartmentResults},
	RoleAssistant:  {CapManageUsers, CapViewDepartmentResults},
	RoleFaculty:    {CapAuthorExams},
	RoleStudent:    {CapTakeExams},
}

// managed lists the roles each role may create, edit or delete.
var managed = map[Role][]Role{
	RoleSuperAdmin: {RolePrincipal, RoleHOD, RoleAssistant, RoleFaculty, RoleStudent},
	RolePrincipal:  {RoleHOD, RoleAssistant, RoleFaculty, RoleStudent},
	RoleHOD:        {RoleAssistant, RoleFaculty, RoleStudent},
	RoleAssistant:  {RoleFaculty, RoleStudent},
}

// ParseRole converts s (case-insensitive) into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q, want one of %s: %w", s, RoleNames(), ErrValidation)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Can reports whether r grants c.
func (r Role) Can(c Capability) bool {
	for _, have := range roleCapabilities[r] {
		if have == c {
			return true
		}
	}
	return false
}

// CanManage reports whether a user with role r may manage users with role target.
// Department scoping for HOD and ASSISTANT is enforced by the caller.
func (r Role) CanManage(target Role) bool {
	for _, m := range managed[r] {
		if m == target {
			return true
		}
	}
	return false
}

// DepartmentScoped reports whether r only acts within its own department.
func (r Role) DepartmentScoped() bool {
	switch r {
	case RoleHOD, RoleAssistant, RoleFaculty, RoleStudent:
		return true
	}
	return false
}
