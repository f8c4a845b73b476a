package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/smallbiznis/toolvault/internal/cart/domain"
)

type repository struct{}

// New returns a cart repository backed by raw SQL.
func New() domain.Repository {
	return &repository{}
}

func (r *repository) CreateCart(ctx context.Context, db *gorm.DB, cart *domain.Cart) error {
	return db.WithContext(ctx).Create(cart).Error
}

func (r *repository) FindCartByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*domain.Cart, error) {
	var cart domain.Cart
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM carts WHERE account_id = ? LIMIT 1`, accountID).
		Scan(&cart).Error
	if err != nil {
		return nil, err
	}
	if cart.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &cart, nil
}

func (r *repository) CreateItem(ctx context.Context, db *gorm.DB, item *domain.CartItem) error {
	return db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindItem(ctx context.Context, db *gorm.DB, cartID, licenseID snowflake.ID) (*domain.CartItem, error) {
	var item domain.CartItem
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM cart_items WHERE cart_id = ? AND license_id = ? LIMIT 1`, cartID, licenseID).
		Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &item, nil
}

func (r *repository) ListItems(ctx context.Context, db *gorm.DB, cartID snowflake.ID) ([]domain.ItemView, error) {
	var items []domain.ItemView
	err := db.WithContext(ctx).
		Raw(`SELECT ci.*, t.name AS tool_name, l.name AS license_name, l.price_cents, l.currency, l.duration_days
			FROM cart_items ci
			JOIN licenses l ON l.id = ci.license_id
			JOIN tools t ON t.id = ci.tool_id
			WHERE ci.cart_id = ?
			ORDER BY ci.id ASC`, cartID).
		Scan(&items).Error
	return items, err
}

func (r *repository) UpdateItemQuantity(ctx context.Context, db *gorm.DB, itemID snowflake.ID, quantity int) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE cart_items SET quantity = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		quantity, itemID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) DeleteItem(ctx context.Context, db *gorm.DB, itemID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM cart_items WHERE id = ?`, itemID)
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteItems(ctx context.Context, db *gorm.DB, cartID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM cart_items WHERE cart_id = ?`, cartID).Error
}

func (r *repository) CountItems(ctx context.Context, db *gorm.DB, cartID snowflake.ID) (int, error) {
	var count int
	err := db.WithContext(ctx).
		Raw(`SELECT COALESCE(SUM(quantity), 0) FROM cart_items WHERE cart_id = ?`, cartID).
		Scan(&count).Error
	return count, err
}
