package masterdata

import (
	"github.com/smallbiznis/portyard/internal/masterdata/service"
	"go.uber.org/fx"
)

var Module = fx.Module("masterdata.service",
	fx.Provide(service.New),
)
