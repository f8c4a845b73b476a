package webhook

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/toolvault/internal/config"
	orderdomain "github.com/smallbiznis/toolvault/internal/order/domain"
	"github.com/smallbiznis/toolvault/internal/payment/adapters"
	"github.com/smallbiznis/toolvault/internal/payment/adapters/midtrans"
	"github.com/smallbiznis/toolvault/internal/payment/adapters/sandbox"
	"github.com/smallbiznis/toolvault/internal/payment/domain"
	"github.com/smallbiznis/toolvault/pkg/db/pagination"
)

const (
	testServerKey     = "midtrans-server-key"
	testWebhookSecret = "sandbox-secret"
)

var testDBSeq int

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testDBSeq++
	dsn := fmt.Sprintf("file:webhooktest_%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec(`
		CREATE TABLE payment_events (
			id INTEGER PRIMARY KEY,
			provider TEXT NOT NULL,
			provider_event_id TEXT NOT NULL,
			order_ref TEXT NOT NULL,
			kind TEXT NOT NULL,
			payload TEXT,
			received_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (provider, provider_event_id)
		)
	`).Error; err != nil {
		t.Fatalf("create payment_events table: %v", err)
	}
	return db
}

type recordingOrders struct {
	confirmed []orderdomain.ConfirmationInput
	failed    []orderdomain.FailureInput
	// consumed one per OnPaymentConfirmed call before recording
	confirmErrs []error
}

func (r *recordingOrders) Checkout(context.Context, snowflake.ID) (*orderdomain.Detail, error) {
	return nil, nil
}
func (r *recordingOrders) GetByID(context.Context, snowflake.ID, snowflake.ID) (*orderdomain.Detail, error) {
	return nil, nil
}
func (r *recordingOrders) GetByReference(context.Context, string) (*orderdomain.Detail, error) {
	return nil, nil
}
func (r *recordingOrders) List(context.Context, orderdomain.ListFilter, pagination.Pagination) ([]orderdomain.CustomerOrder, pagination.PageInfo, error) {
	return nil, pagination.PageInfo{}, nil
}
func (r *recordingOrders) Cancel(context.Context, snowflake.ID, snowflake.ID) (*orderdomain.CustomerOrder, error) {
	return nil, nil
}
func (r *recordingOrders) OnPaymentConfirmed(_ context.Context, input orderdomain.ConfirmationInput) error {
	if len(r.confirmErrs) > 0 {
		err := r.confirmErrs[0]
		r.confirmErrs = r.confirmErrs[1:]
		if err != nil {
			return err
		}
	}
	// Mirrors the order service's status guard: once an order is
	// confirmed, repeat confirmations are no-ops.
	for _, c := range r.confirmed {
		if c.OrderRef == input.OrderRef {
			return nil
		}
	}
	r.confirmed = append(r.confirmed, input)
	return nil
}
func (r *recordingOrders) Allocate(context.Context, snowflake.ID) error { return nil }
func (r *recordingOrders) OnPaymentFailed(_ context.Context, input orderdomain.FailureInput) error {
	r.failed = append(r.failed, input)
	return nil
}

func newTestService(t *testing.T) (domain.Service, *recordingOrders) {
	t.Helper()

	db := openTestDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	orders := &recordingOrders{}
	svc := NewService(Params{
		DB:     db,
		Node:   node,
		Log:    zap.NewNop(),
		Orders: orders,
		Adapters: adapters.NewRegistry(
			midtrans.NewFactory(),
			sandbox.NewFactory(),
		),
		Cfg: config.Config{
			PaymentProviders: map[string]config.ProviderConfig{
				"midtrans": {ServerKey: testServerKey},
				"sandbox":  {WebhookSecret: testWebhookSecret},
			},
		},
	})
	return svc, orders
}

func sandboxPayload(t *testing.T, eventID, orderRef, status string, amountCents int64) ([]byte, http.Header) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"event_id":       eventID,
		"order_ref":      orderRef,
		"status":         status,
		"transaction_id": "txn-" + eventID,
		"response_code":  "200",
		"message":        status,
		"amount_cents":   amountCents,
		"occurred_at":    "2026-03-10T09:00:00Z",
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	headers := http.Header{}
	headers.Set(sandbox.SignatureHeader, sandbox.Sign(testWebhookSecret, payload))
	return payload, headers
}

func TestIngestWebhook_SuccessDrivesConfirmation(t *testing.T) {
	svc, orders := newTestService(t)

	payload, headers := sandboxPayload(t, "evt-1", "01ARZ3NDEKTSV4RRFFQ69G5FAV", "succeeded", 3000)
	if err := svc.IngestWebhook(context.Background(), "sandbox", payload, headers); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if len(orders.confirmed) != 1 {
		t.Fatalf("expected 1 confirmation, got %d", len(orders.confirmed))
	}
	got := orders.confirmed[0]
	if got.OrderRef != "01ARZ3NDEKTSV4RRFFQ69G5FAV" || got.AmountCents != 3000 || got.Provider != "sandbox" {
		t.Errorf("unexpected confirmation input: %+v", got)
	}
}

func TestIngestWebhook_RedeliveryDetected(t *testing.T) {
	svc, orders := newTestService(t)

	payload, headers := sandboxPayload(t, "evt-1", "ref-1", "succeeded", 1500)
	if err := svc.IngestWebhook(context.Background(), "sandbox", payload, headers); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.IngestWebhook(context.Background(), "sandbox", payload, headers); err != domain.ErrEventAlreadyProcessed {
		t.Fatalf("expected ErrEventAlreadyProcessed, got %v", err)
	}
	if len(orders.confirmed) != 1 {
		t.Errorf("redelivery must not reconfirm, got %d confirmations", len(orders.confirmed))
	}
}

func TestIngestWebhook_RedeliveryRecoversFailedConfirmation(t *testing.T) {
	svc, orders := newTestService(t)
	transient := errors.New("connection reset by peer")
	orders.confirmErrs = []error{transient}

	// The event row commits but the order transition fails, so the
	// gateway sees an error and redelivers.
	payload, headers := sandboxPayload(t, "evt-9", "ref-9", "succeeded", 2500)
	if err := svc.IngestWebhook(context.Background(), "sandbox", payload, headers); err != transient {
		t.Fatalf("expected transient error surfaced, got %v", err)
	}
	if len(orders.confirmed) != 0 {
		t.Fatalf("failed transition must not record a confirmation, got %d", len(orders.confirmed))
	}

	if err := svc.IngestWebhook(context.Background(), "sandbox", payload, headers); err != domain.ErrEventAlreadyProcessed {
		t.Fatalf("expected ErrEventAlreadyProcessed, got %v", err)
	}
	if len(orders.confirmed) != 1 {
		t.Fatalf("redelivery must apply the lost confirmation, got %d", len(orders.confirmed))
	}
}

func TestIngestWebhook_BadSignatureRejected(t *testing.T) {
	svc, orders := newTestService(t)

	payload, _ := sandboxPayload(t, "evt-2", "ref-2", "succeeded", 1500)
	headers := http.Header{}
	headers.Set(sandbox.SignatureHeader, "deadbeef")
	if err := svc.IngestWebhook(context.Background(), "sandbox", payload, headers); err != domain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if len(orders.confirmed) != 0 {
		t.Error("forged payload must not reach the order service")
	}
}

func TestIngestWebhook_FailureDrivesFailure(t *testing.T) {
	svc, orders := newTestService(t)

	payload, headers := sandboxPayload(t, "evt-3", "ref-3", "failed", 1500)
	if err := svc.IngestWebhook(context.Background(), "sandbox", payload, headers); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(orders.failed) != 1 || len(orders.confirmed) != 0 {
		t.Fatalf("expected 1 failure, got %d failures %d confirmations", len(orders.failed), len(orders.confirmed))
	}
}

func TestIngestWebhook_PendingIgnored(t *testing.T) {
	svc, orders := newTestService(t)

	payload, headers := sandboxPayload(t, "evt-4", "ref-4", "pending", 1500)
	if err := svc.IngestWebhook(context.Background(), "sandbox", payload, headers); err != domain.ErrEventIgnored {
		t.Fatalf("expected ErrEventIgnored, got %v", err)
	}
	if len(orders.confirmed)+len(orders.failed) != 0 {
		t.Error("pending events must not touch orders")
	}
}

func TestIngestWebhook_UnknownProvider(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.IngestWebhook(context.Background(), "stripe", []byte(`{}`), http.Header{}); err != domain.ErrProviderNotFound {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}

func midtransSignature(orderID, statusCode, grossAmount string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + testServerKey))
	return hex.EncodeToString(sum[:])
}

func TestIngestWebhook_MidtransSettlement(t *testing.T) {
	svc, orders := newTestService(t)

	payload, err := json.Marshal(map[string]any{
		"transaction_id":     "mt-1",
		"transaction_status": "settlement",
		"transaction_time":   "2026-03-10 16:00:00",
		"order_id":           "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		"status_code":        "200",
		"status_message":     "midtrans payment notification",
		"gross_amount":       "30.00",
		"signature_key":      midtransSignature("01ARZ3NDEKTSV4RRFFQ69G5FAV", "200", "30.00"),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if err := svc.IngestWebhook(context.Background(), "midtrans", payload, http.Header{}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(orders.confirmed) != 1 {
		t.Fatalf("expected 1 confirmation, got %d", len(orders.confirmed))
	}
	if orders.confirmed[0].AmountCents != 3000 {
		t.Errorf("expected 3000 cents, got %d", orders.confirmed[0].AmountCents)
	}
}

func TestIngestWebhook_MidtransBadSignature(t *testing.T) {
	svc, _ := newTestService(t)

	payload, _ := json.Marshal(map[string]any{
		"transaction_id":     "mt-2",
		"transaction_status": "settlement",
		"order_id":           "ref-x",
		"status_code":        "200",
		"gross_amount":       "30.00",
		"signature_key":      "0000",
	})
	if err := svc.IngestWebhook(context.Background(), "midtrans", payload, http.Header{}); err != domain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestIngestWebhook_MidtransDenyIsFailure(t *testing.T) {
	svc, orders := newTestService(t)

	payload, _ := json.Marshal(map[string]any{
		"transaction_id":     "mt-3",
		"transaction_status": "deny",
		"order_id":           "ref-y",
		"status_code":        "202",
		"status_message":     "denied by bank",
		"gross_amount":       "15.00",
		"signature_key":      midtransSignature("ref-y", "202", "15.00"),
	})
	if err := svc.IngestWebhook(context.Background(), "midtrans", payload, http.Header{}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(orders.failed) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(orders.failed))
	}
	if orders.failed[0].ResponseCode != "202" {
		t.Errorf("expected response code 202, got %s", orders.failed[0].ResponseCode)
	}
}
