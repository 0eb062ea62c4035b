package migration

import (
	"fmt"

	"gorm.io/gorm"
)

// Reporting views. Readers fall back to table queries when a view is missing,
// so the views must stay column-compatible with those queries.
var views = []struct {
	name string
	body string
}{
	{"view_user_permissions", `
SELECT up.user_id, u.username, u.email, p.name AS permission_name
FROM user_permissions up
JOIN users u ON u.id = up.user_id
JOIN permissions p ON p.id = up.permission_id
WHERE u.is_active = TRUE`},
	{"view_yard_utilization", `
SELECT b.id AS block_id, b.name AS block_name,
	COUNT(s.id) AS total_slots,
	SUM(CASE WHEN s.status = 'Occupied' THEN 1 ELSE 0 END) AS occupied_slots,
	SUM(CASE WHEN s.status = 'Available' THEN 1 ELSE 0 END) AS available_slots,
	SUM(CASE WHEN s.status = 'Reserved' THEN 1 ELSE 0 END) AS reserved_slots,
	SUM(CASE WHEN s.status = 'Maintenance' THEN 1 ELSE 0 END) AS maintenance_slots
FROM yard_blocks b
LEFT JOIN yard_stacks st ON st.block_id = b.id
LEFT JOIN yard_slots s ON s.stack_id = st.id
GROUP BY b.id, b.name`},
	{"view_container_status_summary", `
SELECT current_status AS status, COUNT(*) AS total
FROM containers
GROUP BY current_status`},
	{"view_task_details", `
SELECT t.id AS task_id, t.type AS task_type, t.status, t.priority,
	t.container_id, c.number AS container_number,
	t.from_slot_id, fs.coordinates AS from_coordinates,
	t.to_slot_id, ts.coordinates AS to_coordinates,
	t.vessel_visit_id, t.created_by_user_id, t.assigned_user_id, t.actual_executor_id,
	t.movement_timestamp, t.created_at
FROM tasks t
JOIN containers c ON c.id = t.container_id
LEFT JOIN yard_slots fs ON fs.id = t.from_slot_id
LEFT JOIN yard_slots ts ON ts.id = t.to_slot_id`},
	{"view_pending_tasks", `
SELECT * FROM view_task_details WHERE status = 'Pending'`},
	{"view_vessel_visit_details", `
SELECT vv.id AS visit_id, vv.vessel_id, v.name AS vessel_name, v.imo_number,
	vv.port_id, p.code AS port_code, vv.berth_id, b.name AS berth_name,
	vv.voyage_number_in, vv.voyage_number_out, vv.ata, vv.atd, vv.status
FROM vessel_visits vv
JOIN vessels v ON v.id = vv.vessel_id
JOIN ports p ON p.id = vv.port_id
LEFT JOIN berths b ON b.id = vv.berth_id`},
}

// ViewNames lists the reporting views in creation order.
func ViewNames() []string {
	names := make([]string, 0, len(views))
	for _, v := range views {
		names = append(names, v.name)
	}
	return names
}

// CreateViews (re)creates the reporting views for the connected dialect.
func CreateViews(conn *gorm.DB) error {
	dialect := conn.Dialector.Name()
	for _, v := range views {
		var stmts []string
		switch dialect {
		case "sqlite":
			stmts = []string{
				fmt.Sprintf("DROP VIEW IF EXISTS %s", v.name),
				fmt.Sprintf("CREATE VIEW %s AS %s", v.name, v.body),
			}
		default:
			stmts = []string{fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s", v.name, v.body)}
		}
		for _, stmt := range stmts {
			if err := conn.Exec(stmt).Error; err != nil {
				return fmt.Errorf("create view %s: %w", v.name, err)
			}
		}
	}
	return nil
}

// DropViews removes the reporting views, newest first.
func DropViews(conn *gorm.DB) error {
	for i := len(views) - 1; i >= 0; i-- {
		if err := conn.Exec(fmt.Sprintf("DROP VIEW IF EXISTS %s", views[i].name)).Error; err != nil {
			return err
		}
	}
	return nil
}
