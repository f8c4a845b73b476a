// Package domain contains the order models and the fulfillment state
// machine contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// OrderStatus is the lifecycle state of a customer order.
type OrderStatus string

const (
	// OrderStatusPendingPayment is the state right after checkout, before
	// any gateway confirmation arrives.
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	// OrderStatusPaid means the gateway confirmed payment; allocation has
	// not completed yet.
	OrderStatusPaid OrderStatus = "PAID"
	// OrderStatusFulfilled means every line has its license accounts
	// assigned. Terminal.
	OrderStatusFulfilled OrderStatus = "FULFILLED"
	// OrderStatusCancelled means the customer cancelled before payment.
	// Terminal.
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusFailed means payment failed or allocation could not cover
	// the order. Terminal.
	OrderStatusFailed OrderStatus = "FAILED"
)

// Terminal reports whether no further transitions leave this status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFulfilled, OrderStatusCancelled, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition encodes the allowed edges of the order state machine.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	switch s {
	case OrderStatusPendingPayment:
		return to == OrderStatusPaid || to == OrderStatusCancelled || to == OrderStatusFailed
	case OrderStatusPaid:
		return to == OrderStatusFulfilled || to == OrderStatusFailed
	default:
		return false
	}
}

// CustomerOrder is an immutable snapshot of a cart at checkout time plus the
// fulfillment status. Reference is the identifier shared with the payment
// gateway.
type CustomerOrder struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	Reference  string       `json:"reference" gorm:"type:text;not null;uniqueIndex"`
	AccountID  snowflake.ID `json:"account_id" gorm:"not null;index"`
	Status     OrderStatus  `json:"status" gorm:"type:text;not null"`
	TotalCents int64        `json:"total_cents" gorm:"not null"`
	Currency   string       `json:"currency" gorm:"type:text;not null"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CustomerOrder) TableName() string { return "customer_orders" }

// OrderLine snapshots one cart item. Name, price and duration are copied so
// later catalog edits cannot change what was sold.
type OrderLine struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	OrderID        snowflake.ID `json:"order_id" gorm:"not null;index"`
	ToolID         snowflake.ID `json:"tool_id" gorm:"not null"`
	LicenseID      snowflake.ID `json:"license_id" gorm:"not null"`
	ToolName       string       `json:"tool_name" gorm:"type:text;not null"`
	LicenseName    string       `json:"license_name" gorm:"type:text;not null"`
	UnitPriceCents int64        `json:"unit_price_cents" gorm:"not null"`
	Currency       string       `json:"currency" gorm:"type:text;not null"`
	DurationDays   int          `json:"duration_days" gorm:"not null"`
	Quantity       int          `json:"quantity" gorm:"not null"`
	CreatedAt      time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (OrderLine) TableName() string { return "order_lines" }

// Transaction records one gateway response tied to an order.
type Transaction struct {
	ID                   snowflake.ID `json:"id" gorm:"primaryKey"`
	OrderID              snowflake.ID `json:"order_id" gorm:"not null;index"`
	Provider             string       `json:"provider" gorm:"type:text;not null"`
	GatewayTransactionID string       `json:"gateway_transaction_id" gorm:"type:text"`
	ResponseCode         string       `json:"response_code" gorm:"type:text"`
	ResponseMessage      string       `json:"response_message" gorm:"type:text"`
	AmountCents          int64        `json:"amount_cents"`
	OccurredAt           time.Time    `json:"occurred_at"`
	CreatedAt            time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }

// LineDetail is an order line with its assigned credentials, revealed only
// once the order is fulfilled.
type LineDetail struct {
	OrderLine
	Assignments []AssignmentView `json:"assignments,omitempty"`
}

// AssignmentView exposes one assigned account to the order's owner.
type AssignmentView struct {
	AccountID snowflake.ID `json:"account_id"`
	StartDate time.Time    `json:"start_date"`
	EndDate   time.Time    `json:"end_date"`
	Token     string       `json:"token,omitempty"`
	Username  string       `json:"username,omitempty"`
	Password  string       `json:"password,omitempty"`
}

// Detail is the full order view.
type Detail struct {
	CustomerOrder
	Lines        []LineDetail  `json:"lines"`
	Transactions []Transaction `json:"transactions,omitempty"`
}
