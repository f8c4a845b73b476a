package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/smallbiznis/toolvault/pkg/db/pagination"
)

var (
	ErrOrderNotFound     = errors.New("order_not_found")
	ErrEmptyCart         = errors.New("empty_cart")
	ErrInvalidTransition = errors.New("invalid_order_transition")
	ErrCurrencyMismatch  = errors.New("cart_currency_mismatch")
)

// ConfirmationInput carries a verified gateway result into the state
// machine. AmountCents is what the gateway says was collected; a mismatch
// with the order total is logged but does not block fulfillment.
type ConfirmationInput struct {
	OrderRef             string
	Provider             string
	GatewayTransactionID string
	ResponseCode         string
	ResponseMessage      string
	AmountCents          int64
	OccurredAt           time.Time
}

// FailureInput carries a verified gateway failure.
type FailureInput struct {
	OrderRef             string
	Provider             string
	GatewayTransactionID string
	ResponseCode         string
	ResponseMessage      string
	OccurredAt           time.Time
}

type Service interface {
	// Checkout snapshots the account's cart into a PENDING_PAYMENT order
	// and empties the cart. The cart must not be empty and all items must
	// share one currency.
	Checkout(ctx context.Context, accountID snowflake.ID) (*Detail, error)

	// GetByID returns the order with lines, transactions and, once
	// fulfilled, the assigned credentials. Scoped to the owning account.
	GetByID(ctx context.Context, accountID, orderID snowflake.ID) (*Detail, error)

	// GetByReference is the unscoped lookup used by admin tooling.
	GetByReference(ctx context.Context, reference string) (*Detail, error)

	List(ctx context.Context, filter ListFilter, page pagination.Pagination) ([]CustomerOrder, pagination.PageInfo, error)

	// Cancel moves a PENDING_PAYMENT order to CANCELLED. Repeating the
	// call on an already cancelled order is a no-op.
	Cancel(ctx context.Context, accountID, orderID snowflake.ID) (*CustomerOrder, error)

	// OnPaymentConfirmed transitions PENDING_PAYMENT to PAID, records the
	// transaction, then allocates license accounts. Redelivered
	// confirmations are swallowed.
	OnPaymentConfirmed(ctx context.Context, input ConfirmationInput) error

	// Allocate assigns license accounts to every line of a PAID order in
	// one transaction. All lines succeed or none do; an uncoverable line
	// fails the whole order. Admin tooling may call it to retry an order
	// left PAID by a crash.
	Allocate(ctx context.Context, orderID snowflake.ID) error

	// OnPaymentFailed transitions PENDING_PAYMENT or PAID to FAILED.
	OnPaymentFailed(ctx context.Context, input FailureInput) error
}
