package reporting

import (
	"github.com/smallbiznis/portyard/internal/reporting/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reporting.service",
	fx.Provide(service.New),
)
