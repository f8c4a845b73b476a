package cart

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/toolvault/internal/cart/repository"
	"github.com/smallbiznis/toolvault/internal/cart/service"
)

// Module wires the cart feature.
var Module = fx.Module("cart",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
