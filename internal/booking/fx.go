package booking

import (
	"github.com/smallbiznis/portyard/internal/booking/service"
	"go.uber.org/fx"
)

var Module = fx.Module("booking.service",
	fx.Provide(service.New),
)
