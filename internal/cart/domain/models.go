// Package domain contains the shopping cart models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Cart holds a customer's pending selection. One cart per account.
type Cart struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	AccountID snowflake.ID `json:"account_id" gorm:"not null;uniqueIndex"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Cart) TableName() string { return "carts" }

// CartItem is one license plan in a cart. Adding the same plan again merges
// into the existing row.
type CartItem struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	CartID    snowflake.ID `json:"cart_id" gorm:"not null;index"`
	ToolID    snowflake.ID `json:"tool_id" gorm:"not null"`
	LicenseID snowflake.ID `json:"license_id" gorm:"not null"`
	Quantity  int          `json:"quantity" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CartItem) TableName() string { return "cart_items" }

// ItemView joins a cart item with its catalog snapshot for display and
// checkout pricing.
type ItemView struct {
	CartItem
	ToolName     string `json:"tool_name"`
	LicenseName  string `json:"license_name"`
	PriceCents   int64  `json:"price_cents"`
	Currency     string `json:"currency"`
	DurationDays int    `json:"duration_days"`
}

// View is the full cart as returned to the storefront.
type View struct {
	CartID     snowflake.ID `json:"cart_id"`
	AccountID  snowflake.ID `json:"account_id"`
	Items      []ItemView   `json:"items"`
	ItemCount  int          `json:"item_count"`
	TotalCents int64        `json:"total_cents"`
	Currency   string       `json:"currency"`
}
