package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/toolvault/internal/config"
	"github.com/smallbiznis/toolvault/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/toolvault/internal/order/domain"
	"github.com/smallbiznis/toolvault/internal/payment/adapters"
	"github.com/smallbiznis/toolvault/internal/payment/domain"
	pkgdb "github.com/smallbiznis/toolvault/pkg/db"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Log      *zap.Logger
	Orders   orderdomain.Service
	Adapters *adapters.Registry
	Cfg      config.Config
}

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	log       *zap.Logger
	orders    orderdomain.Service
	adapters  *adapters.Registry
	providers map[string]config.ProviderConfig
}

// NewService builds the webhook ingestion service.
func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		log:       p.Log.Named("payment.webhook"),
		orders:    p.Orders,
		adapters:  p.Adapters,
		providers: p.Cfg.PaymentProviders,
	}
}

// IngestWebhook verifies, deduplicates and applies one gateway notification.
// Redelivered events re-drive the order transition, then return
// ErrEventAlreadyProcessed so transport layers can acknowledge them.
func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return domain.ErrInvalidProvider
	}
	if s.adapters == nil || !s.adapters.ProviderExists(provider) {
		return domain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return domain.ErrInvalidPayload
	}

	providerCfg, ok := s.providers[provider]
	if !ok {
		return domain.ErrProviderNotFound
	}
	adapter, err := s.adapters.NewAdapter(provider, domain.AdapterConfig{
		ServerKey:     providerCfg.ServerKey,
		WebhookSecret: providerCfg.WebhookSecret,
	})
	if err != nil {
		return err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		metrics.Fulfillment().RecordPaymentEvent(provider, "rejected")
		s.log.Warn("webhook rejected", zap.String("provider", provider), zap.Error(err))
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			metrics.Fulfillment().RecordPaymentEvent(provider, "ignored")
			s.log.Debug("webhook carries no settlement outcome", zap.String("provider", provider))
		}
		return err
	}

	record := &domain.EventRecord{
		ID:              s.node.Generate(),
		Provider:        provider,
		ProviderEventID: event.ProviderEventID,
		OrderRef:        event.OrderRef,
		Kind:            event.Kind,
		Payload:         payload,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			// The event row may have committed while the order transition
			// failed, so a redelivery still re-drives the transition. The
			// order-level status guards make reapplying a no-op when the
			// first attempt went through.
			if err := s.applyEvent(ctx, provider, event); err != nil {
				metrics.Fulfillment().RecordPaymentEvent(provider, "error")
				return err
			}
			metrics.Fulfillment().RecordPaymentEvent(provider, "duplicate")
			s.log.Info("webhook redelivery detected",
				zap.String("provider", provider),
				zap.String("provider_event_id", event.ProviderEventID),
			)
			return domain.ErrEventAlreadyProcessed
		}
		return err
	}

	if err := s.applyEvent(ctx, provider, event); err != nil {
		metrics.Fulfillment().RecordPaymentEvent(provider, "error")
		return err
	}

	metrics.Fulfillment().RecordPaymentEvent(provider, string(event.Kind))
	return nil
}

// applyEvent drives the order state machine for one parsed gateway event.
func (s *Service) applyEvent(ctx context.Context, provider string, event *domain.ConfirmationEvent) error {
	switch event.Kind {
	case domain.EventKindSuccess:
		return s.orders.OnPaymentConfirmed(ctx, orderdomain.ConfirmationInput{
			OrderRef:             event.OrderRef,
			Provider:             provider,
			GatewayTransactionID: event.GatewayTransactionID,
			ResponseCode:         event.ResponseCode,
			ResponseMessage:      event.ResponseMessage,
			AmountCents:          event.AmountCents,
			OccurredAt:           event.OccurredAt,
		})
	case domain.EventKindFailure:
		return s.orders.OnPaymentFailed(ctx, orderdomain.FailureInput{
			OrderRef:             event.OrderRef,
			Provider:             provider,
			GatewayTransactionID: event.GatewayTransactionID,
			ResponseCode:         event.ResponseCode,
			ResponseMessage:      event.ResponseMessage,
			OccurredAt:           event.OccurredAt,
		})
	default:
		return domain.ErrInvalidPayload
	}
}
