package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/portyard/internal/authorization"
)

type StatusCount struct {
	Status string `gorm:"column:status" json:"status"`
	Total  int64  `gorm:"column:total" json:"total"`
}

type BlockUtilization struct {
	BlockID          snowflake.ID `gorm:"column:block_id" json:"block_id"`
	BlockName        string       `gorm:"column:block_name" json:"block_name"`
	TotalSlots       int64        `gorm:"column:total_slots" json:"total_slots"`
	OccupiedSlots    int64        `gorm:"column:occupied_slots" json:"occupied_slots"`
	AvailableSlots   int64        `gorm:"column:available_slots" json:"available_slots"`
	ReservedSlots    int64        `gorm:"column:reserved_slots" json:"reserved_slots"`
	MaintenanceSlots int64        `gorm:"column:maintenance_slots" json:"maintenance_slots"`
	// Utilization is the occupied share in percent, one decimal.
	Utilization float64 `gorm:"-" json:"utilization"`
}

type RecentVisit struct {
	VisitID    snowflake.ID `gorm:"column:visit_id" json:"visit_id"`
	VesselName string       `gorm:"column:vessel_name" json:"vessel_name"`
	IMONumber  string       `gorm:"column:imo_number" json:"imo_number"`
	PortCode   string       `gorm:"column:port_code" json:"port_code"`
	BerthName  *string      `gorm:"column:berth_name" json:"berth_name,omitempty"`
	ATA        *time.Time   `gorm:"column:ata" json:"ata,omitempty"`
	Status     string       `gorm:"column:status" json:"status"`
}

// Dashboard holds the sections visible to the caller's role. Sections a role
// does not see are left empty.
type Dashboard struct {
	Role             authorization.Role `json:"role"`
	ContainerStatus  []StatusCount      `json:"container_status,omitempty"`
	TaskStatus       []StatusCount      `json:"task_status,omitempty"`
	YardUtilization  []BlockUtilization `json:"yard_utilization,omitempty"`
	VisitStatus      []StatusCount      `json:"visit_status,omitempty"`
	MyPendingTasks   *int64             `json:"my_pending_tasks,omitempty"`
	MyCompletedTasks *int64             `json:"my_completed_tasks,omitempty"`
	GeneratedAt      time.Time          `json:"generated_at"`
}

type KPIs struct {
	TotalContainers  int64         `json:"total_containers"`
	ContainersInYard int64         `json:"containers_in_yard"`
	TotalTasks       int64         `json:"total_tasks"`
	PendingTasks     int64         `json:"pending_tasks"`
	TotalVisits      int64         `json:"total_visits"`
	VisitsAtBerth    int64         `json:"visits_at_berth"`
	RecentVisits     []RecentVisit `json:"recent_visits"`
	GeneratedAt      time.Time     `json:"generated_at"`
}

type Service interface {
	Dashboard(ctx context.Context, rc authorization.RoleContext) (*Dashboard, error)
	KPIs(ctx context.Context, rc authorization.RoleContext) (*KPIs, error)
	KPISheet(ctx context.Context, rc authorization.RoleContext) ([]byte, error)
}
