package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists carts and their items.
type Repository interface {
	CreateCart(ctx context.Context, db *gorm.DB, cart *Cart) error
	FindCartByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*Cart, error)

	CreateItem(ctx context.Context, db *gorm.DB, item *CartItem) error
	FindItem(ctx context.Context, db *gorm.DB, cartID, licenseID snowflake.ID) (*CartItem, error)
	ListItems(ctx context.Context, db *gorm.DB, cartID snowflake.ID) ([]ItemView, error)
	UpdateItemQuantity(ctx context.Context, db *gorm.DB, itemID snowflake.ID, quantity int) error
	DeleteItem(ctx context.Context, db *gorm.DB, itemID snowflake.ID) (int64, error)
	DeleteItems(ctx context.Context, db *gorm.DB, cartID snowflake.ID) error
	CountItems(ctx context.Context, db *gorm.DB, cartID snowflake.ID) (int, error)
}
