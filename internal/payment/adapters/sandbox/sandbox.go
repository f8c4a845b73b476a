// Package sandbox is a gateway emulator for development and tests. Payloads
// are authenticated with an HMAC-SHA256 of the raw body.
package sandbox

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/toolvault/internal/payment/domain"
)

// SignatureHeader carries the hex HMAC of the request body.
const SignatureHeader = "X-Sandbox-Signature"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "sandbox"
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.PaymentAdapter, error) {
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, domain.ErrInvalidConfig
	}
	return &Adapter{secret: []byte(secret)}, nil
}

type Adapter struct {
	secret []byte
}

type event struct {
	EventID       string `json:"event_id"`
	OrderRef      string `json:"order_ref"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	ResponseCode  string `json:"response_code"`
	Message       string `json:"message"`
	AmountCents   int64  `json:"amount_cents"`
	OccurredAt    string `json:"occurred_at"`
}

// Sign computes the signature the adapter expects. Exposed for tests and
// local tooling.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	signature := strings.TrimSpace(headers.Get(SignatureHeader))
	if signature == "" {
		return domain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, a.secret)
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.ConfirmationEvent, error) {
	var evt event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if evt.EventID == "" || evt.OrderRef == "" {
		return nil, domain.ErrInvalidPayload
	}

	var kind domain.EventKind
	switch strings.ToLower(evt.Status) {
	case "succeeded":
		kind = domain.EventKindSuccess
	case "failed":
		kind = domain.EventKindFailure
	case "pending":
		return nil, domain.ErrEventIgnored
	default:
		return nil, domain.ErrEventIgnored
	}

	occurredAt := time.Now().UTC()
	if evt.OccurredAt != "" {
		if parsed, err := time.Parse(time.RFC3339, evt.OccurredAt); err == nil {
			occurredAt = parsed.UTC()
		}
	}

	return &domain.ConfirmationEvent{
		Kind:                 kind,
		ProviderEventID:      evt.EventID,
		OrderRef:             evt.OrderRef,
		GatewayTransactionID: evt.TransactionID,
		ResponseCode:         evt.ResponseCode,
		ResponseMessage:      evt.Message,
		AmountCents:          evt.AmountCents,
		OccurredAt:           occurredAt,
	}, nil
}
