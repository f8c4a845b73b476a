package catalog

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/toolvault/internal/catalog/repository"
	"github.com/smallbiznis/toolvault/internal/catalog/service"
)

// Module wires the catalog feature.
var Module = fx.Module("catalog",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
