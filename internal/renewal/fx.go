package renewal

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/toolvault/internal/renewal/service"
)

// Module wires assignment renewals.
var Module = fx.Module("renewal",
	fx.Provide(service.NewService),
)
