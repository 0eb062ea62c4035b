package testkit

import (
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	mddomain "github.com/smallbiznis/portyard/internal/masterdata/domain"
	userdomain "github.com/smallbiznis/portyard/internal/user/domain"
	vesseldomain "github.com/smallbiznis/portyard/internal/vessel/domain"
	yarddomain "github.com/smallbiznis/portyard/internal/yard/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Fixtures writes rows directly, bypassing services and access checks.
type Fixtures struct {
	t    testing.TB
	db   *gorm.DB
	node *snowflake.Node
	now  time.Time
}

func NewFixtures(t testing.TB, db *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: db, node: Node(t), now: Epoch}
}

// Node is the id generator the fixtures share with services under test.
func (f *Fixtures) Node() *snowflake.Node { return f.node }

func (f *Fixtures) create(row any) {
	f.t.Helper()
	require.NoError(f.t, f.db.Create(row).Error)
}

func (f *Fixtures) ContainerType(code string) *mddomain.ContainerType {
	ct := &mddomain.ContainerType{TypeCode: code, NominalSize: 20, GroupCode: "GP", CreatedAt: f.now, UpdatedAt: f.now}
	f.create(ct)
	return ct
}

func (f *Fixtures) Container(number string, status mddomain.ContainerStatus) *mddomain.Container {
	var ct mddomain.ContainerType
	if err := f.db.Where("type_code = ?", "22G1").Take(&ct).Error; err != nil {
		f.ContainerType("22G1")
	}
	c := &mddomain.Container{
		ID:            f.node.Generate(),
		Number:        number,
		TypeCode:      "22G1",
		CurrentStatus: status,
		CreatedAt:     f.now,
		UpdatedAt:     f.now,
	}
	f.create(c)
	return c
}

// Yard creates one block with a single stack of the given number of tiers.
func (f *Fixtures) Yard(blockName string, tiers int) []*yarddomain.Slot {
	block := &yarddomain.Block{ID: f.node.Generate(), Name: blockName, Type: yarddomain.BlockStandard, CreatedAt: f.now, UpdatedAt: f.now}
	f.create(block)
	stack := &yarddomain.Stack{ID: f.node.Generate(), BlockID: block.ID, BayNumber: 1, RowNumber: 1, CreatedAt: f.now, UpdatedAt: f.now}
	f.create(stack)

	slots := make([]*yarddomain.Slot, 0, tiers)
	for tier := 1; tier <= tiers; tier++ {
		slot := &yarddomain.Slot{
			ID:          f.node.Generate(),
			StackID:     stack.ID,
			TierNumber:  tier,
			Coordinates: fmt.Sprintf("%s-1-1-%d", blockName, tier),
			Status:      yarddomain.SlotAvailable,
			CreatedAt:   f.now,
			UpdatedAt:   f.now,
		}
		f.create(slot)
		slots = append(slots, slot)
	}
	return slots
}

// Place puts the container into the slot and marks it InYard.
func (f *Fixtures) Place(slot *yarddomain.Slot, c *mddomain.Container) {
	f.t.Helper()
	require.NoError(f.t, f.db.Model(&yarddomain.Slot{}).Where("id = ?", slot.ID).Updates(map[string]any{
		"current_container_id": c.ID,
		"status":               yarddomain.SlotOccupied,
	}).Error)
	require.NoError(f.t, f.db.Model(&mddomain.Container{}).Where("id = ?", c.ID).
		Update("current_status", mddomain.ContainerInYard).Error)
	id := c.ID
	slot.CurrentContainerID = &id
	slot.Status = yarddomain.SlotOccupied
	c.CurrentStatus = mddomain.ContainerInYard
}

// User creates an active user holding the named permissions.
func (f *Fixtures) User(username string, perms ...string) *userdomain.User {
	f.t.Helper()
	u := &userdomain.User{
		ID:        f.node.Generate(),
		Username:  username,
		Email:     username + "@yard.test",
		IsActive:  true,
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
	f.create(u)
	for _, name := range perms {
		var p userdomain.Permission
		require.NoError(f.t, f.db.Where("name = ?", name).Take(&p).Error)
		f.create(&userdomain.UserPermission{UserID: u.ID, PermissionID: p.ID, CreatedAt: f.now})
	}
	return u
}

func (f *Fixtures) Party(name string) *mddomain.Party {
	p := &mddomain.Party{ID: f.node.Generate(), Name: name, Type: mddomain.PartyCompany, CreatedAt: f.now, UpdatedAt: f.now}
	f.create(p)
	return p
}

func (f *Fixtures) Port(code string) *mddomain.Port {
	p := &mddomain.Port{ID: f.node.Generate(), Code: code, Name: code, CreatedAt: f.now, UpdatedAt: f.now}
	f.create(p)
	return p
}

func (f *Fixtures) Berth(port *mddomain.Port, name string) *mddomain.Berth {
	b := &mddomain.Berth{ID: f.node.Generate(), PortID: port.ID, Name: name, CreatedAt: f.now, UpdatedAt: f.now}
	f.create(b)
	return b
}

func (f *Fixtures) Vessel(imo, name string) *mddomain.Vessel {
	v := &mddomain.Vessel{ID: f.node.Generate(), IMONumber: imo, Name: name, CreatedAt: f.now, UpdatedAt: f.now}
	f.create(v)
	return v
}

// Visit creates an Approaching visit of the vessel at the port.
func (f *Fixtures) Visit(vessel *mddomain.Vessel, port *mddomain.Port) *vesseldomain.VesselVisit {
	v := &vesseldomain.VesselVisit{
		ID:        f.node.Generate(),
		VesselID:  vessel.ID,
		PortID:    port.ID,
		Status:    vesseldomain.VisitApproaching,
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
	f.create(v)
	return v
}

func (f *Fixtures) Slot(id snowflake.ID) yarddomain.Slot {
	f.t.Helper()
	var slot yarddomain.Slot
	require.NoError(f.t, f.db.Where("id = ?", id).Take(&slot).Error)
	return slot
}

func (f *Fixtures) ContainerByID(id snowflake.ID) mddomain.Container {
	f.t.Helper()
	var c mddomain.Container
	require.NoError(f.t, f.db.Where("id = ?", id).Take(&c).Error)
	return c
}
