package yard

import (
	"github.com/smallbiznis/portyard/internal/yard/occupancy"
	"github.com/smallbiznis/portyard/internal/yard/service"
	"go.uber.org/fx"
)

var Module = fx.Module("yard.service",
	fx.Provide(occupancy.New),
	fx.Provide(service.New),
)
