package audit

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/toolvault/internal/audit/repository"
	"github.com/smallbiznis/toolvault/internal/audit/service"
)

// Module wires the audit trail.
var Module = fx.Module("audit",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
