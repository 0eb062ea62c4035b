package authorization

import (
	"slices"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
	RoleGuest    Role = "guest"
)

// Permission names granted to users through user_permissions.
const (
	PermAdmin          = "ADMIN"
	PermCreateTask     = "CREATE_TASK"
	PermUpdateTask     = "UPDATE_TASK"
	PermViewInventory  = "VIEW_INVENTORY"
	PermViewStatistics = "VIEW_STATISTICS"
)

// Catalog lists every permission the resolver understands.
var Catalog = []struct {
	Name        string
	Description string
}{
	{PermAdmin, "Full administrative access"},
	{PermCreateTask, "Create yard move tasks"},
	{PermUpdateTask, "Advance, assign and cancel yard move tasks"},
	{PermViewInventory, "Read containers, yard and vessel data"},
	{PermViewStatistics, "Read dashboards and reports"},
}

// Principal is the authenticated caller as asserted by the identity provider.
type Principal struct {
	Identifier string `json:"identifier"`
	Elevated   bool   `json:"elevated"`
}

func (p Principal) Anonymous() bool {
	return strings.TrimSpace(p.Identifier) == ""
}

// RoleContext is computed for each operation and passed explicitly to every
// service call that reads or mutates state.
type RoleContext struct {
	UserID      snowflake.ID `json:"user_id"`
	Identifier  string       `json:"identifier"`
	Role        Role         `json:"role"`
	Permissions []string     `json:"permissions"`
	Elevated    bool         `json:"elevated"`
}

// Guest is the role context of an unauthenticated or unknown caller.
func Guest() RoleContext {
	return RoleContext{Role: RoleGuest, Permissions: []string{}}
}

func (rc RoleContext) Has(permission string) bool {
	return slices.Contains(rc.Permissions, permission)
}

// ActorID returns the user id as an audit actor id, nil for anonymous callers.
func (rc RoleContext) ActorID() *string {
	if rc.UserID == 0 {
		return nil
	}
	id := rc.UserID.String()
	return &id
}

// ResolveRole derives the role from the principal and its permission names.
// Precedence: elevated, ADMIN, task write permissions, view permissions, guest.
func ResolveRole(principal Principal, perms []string) RoleContext {
	names := make([]string, 0, len(perms)+1)
	for _, p := range perms {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" || slices.Contains(names, p) {
			continue
		}
		names = append(names, p)
	}

	rc := RoleContext{
		Identifier:  strings.TrimSpace(principal.Identifier),
		Permissions: names,
		Elevated:    principal.Elevated,
	}

	switch {
	case principal.Elevated:
		rc.Role = RoleAdmin
		if !slices.Contains(rc.Permissions, PermAdmin) {
			rc.Permissions = append(rc.Permissions, PermAdmin)
		}
	case slices.Contains(names, PermAdmin):
		rc.Role = RoleAdmin
	case slices.Contains(names, PermCreateTask), slices.Contains(names, PermUpdateTask):
		rc.Role = RoleOperator
	case slices.Contains(names, PermViewInventory), slices.Contains(names, PermViewStatistics):
		rc.Role = RoleViewer
	default:
		rc.Role = RoleGuest
	}
	return rc
}
