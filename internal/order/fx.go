package order

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/toolvault/internal/order/repository"
	"github.com/smallbiznis/toolvault/internal/order/service"
)

// Module wires order fulfillment.
var Module = fx.Module("order",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
