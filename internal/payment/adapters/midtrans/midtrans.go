// Package midtrans implements the Midtrans HTTP notification contract: the
// signature_key field is SHA-512 over order_id + status_code + gross_amount
// + server key.
package midtrans

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/toolvault/internal/payment/domain"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "midtrans"
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.PaymentAdapter, error) {
	serverKey := strings.TrimSpace(cfg.ServerKey)
	if serverKey == "" {
		return nil, domain.ErrInvalidConfig
	}
	return &Adapter{serverKey: serverKey}, nil
}

type Adapter struct {
	serverKey string
}

type notification struct {
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	TransactionTime   string `json:"transaction_time"`
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	FraudStatus       string `json:"fraud_status"`
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	var n notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return domain.ErrInvalidPayload
	}
	if n.OrderID == "" || n.StatusCode == "" || n.SignatureKey == "" {
		return domain.ErrInvalidSignature
	}

	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + a.serverKey))
	expected := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(n.SignatureKey))) != 1 {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.ConfirmationEvent, error) {
	var n notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	var kind domain.EventKind
	switch strings.ToLower(n.TransactionStatus) {
	case "settlement", "capture":
		if strings.EqualFold(n.FraudStatus, "challenge") {
			return nil, domain.ErrEventIgnored
		}
		kind = domain.EventKindSuccess
	case "deny", "cancel", "expire", "failure":
		kind = domain.EventKindFailure
	case "pending":
		return nil, domain.ErrEventIgnored
	default:
		return nil, domain.ErrEventIgnored
	}

	occurredAt := time.Now().UTC()
	if n.TransactionTime != "" {
		// Midtrans sends Jakarta local time without an offset.
		if parsed, err := time.Parse("2006-01-02 15:04:05", n.TransactionTime); err == nil {
			occurredAt = parsed
		}
	}

	return &domain.ConfirmationEvent{
		Kind:                 kind,
		ProviderEventID:      n.TransactionID,
		OrderRef:             n.OrderID,
		GatewayTransactionID: n.TransactionID,
		ResponseCode:         n.StatusCode,
		ResponseMessage:      n.StatusMessage,
		AmountCents:          grossAmountCents(n.GrossAmount),
		OccurredAt:           occurredAt,
	}, nil
}

func grossAmountCents(raw string) int64 {
	amount, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(amount * 100))
}
