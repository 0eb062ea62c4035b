package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/portyard/internal/authorization"
)

type CreateUserRequest struct {
	Username    string        `json:"username" validate:"required,max=150"`
	Email       string        `json:"email" validate:"required,email,max=255"`
	FullName    string        `json:"full_name" validate:"max=255"`
	PartyID     *snowflake.ID `json:"party_id"`
	IsSuperuser bool          `json:"is_superuser"`
	Permissions []string      `json:"permissions" validate:"dive,required,max=100"`
}

type ListUsersRequest struct {
	Query  string `form:"q"`
	Active *bool  `form:"active"`
	Limit  int    `form:"limit,default=50" validate:"gte=0,lte=500"`
	Offset int    `form:"offset" validate:"gte=0"`
}

// UserView is a user with its granted permission names.
type UserView struct {
	User
	Permissions []string `json:"permissions"`
}

type Service interface {
	CreateUser(ctx context.Context, rc authorization.RoleContext, req CreateUserRequest) (*UserView, error)
	GetUser(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*UserView, error)
	ListUsers(ctx context.Context, rc authorization.RoleContext, req ListUsersRequest) ([]UserView, error)
	ListPermissions(ctx context.Context, rc authorization.RoleContext) ([]Permission, error)
	Grant(ctx context.Context, rc authorization.RoleContext, userID snowflake.ID, permission string) (*UserView, error)
	Revoke(ctx context.Context, rc authorization.RoleContext, userID snowflake.ID, permission string) (*UserView, error)
}
