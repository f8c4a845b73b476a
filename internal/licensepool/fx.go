package licensepool

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/toolvault/internal/licensepool/repository"
	"github.com/smallbiznis/toolvault/internal/licensepool/service"
)

// Module wires the license account pool.
var Module = fx.Module("licensepool",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
