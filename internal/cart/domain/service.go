package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrCartNotFound    = errors.New("cart_not_found")
	ErrItemNotFound    = errors.New("cart_item_not_found")
	ErrInvalidQuantity = errors.New("invalid_quantity")
)

// AddItemInput adds or merges one plan into the account's cart.
type AddItemInput struct {
	LicenseID snowflake.ID `json:"license_id,string" binding:"required"`
	Quantity  int          `json:"quantity" binding:"required"`
}

type Service interface {
	// Get returns the account's cart, creating an empty one on first use.
	Get(ctx context.Context, accountID snowflake.ID) (*View, error)

	// AddItem merges quantity into any existing row for the same plan.
	AddItem(ctx context.Context, accountID snowflake.ID, input AddItemInput) (*View, error)

	// UpdateQuantity sets an item's quantity; zero or less removes the item.
	UpdateQuantity(ctx context.Context, accountID, itemID snowflake.ID, quantity int) (*View, error)

	RemoveItem(ctx context.Context, accountID, itemID snowflake.ID) (*View, error)
	ItemCount(ctx context.Context, accountID snowflake.ID) (int, error)

	// Clear empties the cart inside the caller's transaction. Checkout uses
	// it after snapshotting the cart onto an order.
	Clear(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) error
}
