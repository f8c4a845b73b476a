package payment

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/toolvault/internal/payment/adapters"
	"github.com/smallbiznis/toolvault/internal/payment/adapters/midtrans"
	"github.com/smallbiznis/toolvault/internal/payment/adapters/sandbox"
	"github.com/smallbiznis/toolvault/internal/payment/domain"
	"github.com/smallbiznis/toolvault/internal/payment/webhook"
)

func newRegistry() *adapters.Registry {
	return adapters.NewRegistry(
		midtrans.NewFactory(),
		sandbox.NewFactory(),
	)
}

// Module wires webhook ingestion with the built-in gateway adapters.
var Module = fx.Module("payment",
	fx.Provide(newRegistry),
	fx.Provide(webhook.NewService),
)

var _ domain.Service = (*webhook.Service)(nil)
