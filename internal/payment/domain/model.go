// Package domain defines the payment gateway adapter contract and the
// confirmation event record used for webhook deduplication.
package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

var (
	ErrInvalidProvider       = errors.New("invalid_provider")
	ErrProviderNotFound      = errors.New("provider_not_found")
	ErrInvalidConfig         = errors.New("invalid_provider_config")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
)

// EventKind is the settlement outcome carried by a gateway event.
type EventKind string

const (
	EventKindSuccess EventKind = "success"
	EventKindFailure EventKind = "failure"
)

// ConfirmationEvent is the provider-neutral result of parsing a verified
// webhook payload.
type ConfirmationEvent struct {
	Kind                 EventKind
	ProviderEventID      string
	OrderRef             string
	GatewayTransactionID string
	ResponseCode         string
	ResponseMessage      string
	AmountCents          int64
	OccurredAt           time.Time
}

// EventRecord stores each accepted gateway event. The unique
// (provider, provider_event_id) pair makes redeliveries detectable.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null;uniqueIndex:idx_payment_events_provider_event,priority:1"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex:idx_payment_events_provider_event,priority:2"`
	OrderRef        string         `json:"order_ref" gorm:"type:text;not null;index"`
	Kind            EventKind      `json:"kind" gorm:"type:text;not null"`
	Payload         datatypes.JSON `json:"payload"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "payment_events" }

// AdapterConfig carries the per-provider secrets.
type AdapterConfig struct {
	ServerKey     string
	WebhookSecret string
}

// PaymentAdapter verifies and parses one provider's webhook payloads.
type PaymentAdapter interface {
	// Verify authenticates the payload. It returns ErrInvalidSignature
	// when the payload cannot be attributed to the provider.
	Verify(ctx context.Context, payload []byte, headers http.Header) error

	// Parse extracts the confirmation event. Events that carry no
	// settlement outcome return ErrEventIgnored.
	Parse(ctx context.Context, payload []byte) (*ConfirmationEvent, error)
}

// AdapterFactory builds adapters for one provider name.
type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}

// Service ingests gateway webhooks and drives the order state machine.
type Service interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}
