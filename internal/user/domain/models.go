package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is a known principal. IsSuperuser is set by identity bootstrap and
// elevates the user to admin regardless of grants.
type User struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	Username    string        `gorm:"type:varchar(150);not null;uniqueIndex" json:"username"`
	Email       string        `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	FullName    string        `gorm:"type:varchar(255)" json:"full_name,omitempty"`
	PartyID     *snowflake.ID `gorm:"index" json:"party_id,omitempty"`
	IsActive    bool          `gorm:"not null" json:"is_active"`
	IsSuperuser bool          `gorm:"not null;default:false" json:"is_superuser"`
	CreatedAt   time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }

type Permission struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Description string       `gorm:"type:varchar(255)" json:"description,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Permission) TableName() string { return "permissions" }

// UserPermission is keyed by the (user, permission) pair.
type UserPermission struct {
	UserID       snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	User         *User        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	PermissionID snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"permission_id"`
	Permission   *Permission  `gorm:"foreignKey:PermissionID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
}

func (UserPermission) TableName() string { return "user_permissions" }
