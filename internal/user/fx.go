package user

import (
	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(service.NewPermissionSource),
	fx.Provide(func(r *authorization.Resolver) service.RoleInvalidator { return r }),
	fx.Provide(service.New),
)
