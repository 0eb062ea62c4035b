package authorization

import "context"

// Entity kinds used as casbin objects.
const (
	KindParty         = "party"
	KindPort          = "port"
	KindBerth         = "berth"
	KindVessel        = "vessel"
	KindContainerType = "container_type"
	KindContainer     = "container"
	KindYardBlock     = "yard_block"
	KindYardStack     = "yard_stack"
	KindYardSlot      = "yard_slot"
	KindVesselVisit   = "vessel_visit"
	KindBooking       = "booking"
	KindTask          = "task"
	KindUser          = "user"
	KindPermission    = "permission"
	KindDashboard     = "dashboard"
	KindKPI           = "kpi"
	KindSearch        = "search"
	KindAuditLog      = "audit_log"
)

// Operations used as casbin actions.
const (
	OpRead   = "read"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Gate is the single authorization check every service call goes through.
type Gate interface {
	Authorize(role Role, kind, op string) bool
	Require(ctx context.Context, rc RoleContext, kind, op string) error
}
