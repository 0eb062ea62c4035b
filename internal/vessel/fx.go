package vessel

import (
	"github.com/smallbiznis/portyard/internal/vessel/service"
	"go.uber.org/fx"
)

var Module = fx.Module("vessel.service",
	fx.Provide(service.New),
)
