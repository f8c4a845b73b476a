package repository

import (
	"context"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/smallbiznis/toolvault/internal/order/domain"
	"github.com/smallbiznis/toolvault/pkg/db/pagination"
)

type repository struct{}

// New returns an order repository backed by raw SQL.
func New() domain.Repository {
	return &repository{}
}

func (r *repository) CreateOrder(ctx context.Context, db *gorm.DB, order *domain.CustomerOrder) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repository) CreateLines(ctx context.Context, db *gorm.DB, lines []domain.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&lines).Error
}

func (r *repository) CreateTransaction(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	return db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CustomerOrder, error) {
	return r.findOne(ctx, db, `SELECT * FROM customer_orders WHERE id = ? LIMIT 1`, id)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CustomerOrder, error) {
	return r.findOne(ctx, db, `SELECT * FROM customer_orders WHERE id = ? LIMIT 1 FOR UPDATE`, id)
}

func (r *repository) FindByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.CustomerOrder, error) {
	return r.findOne(ctx, db, `SELECT * FROM customer_orders WHERE reference = ? LIMIT 1`, reference)
}

func (r *repository) FindByReferenceForUpdate(ctx context.Context, db *gorm.DB, reference string) (*domain.CustomerOrder, error) {
	return r.findOne(ctx, db, `SELECT * FROM customer_orders WHERE reference = ? LIMIT 1 FOR UPDATE`, reference)
}

func (r *repository) findOne(ctx context.Context, db *gorm.DB, query string, arg interface{}) (*domain.CustomerOrder, error) {
	var order domain.CustomerOrder
	err := db.WithContext(ctx).Raw(query, arg).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &order, nil
}

func (r *repository) ListLines(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.OrderLine, error) {
	var lines []domain.OrderLine
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM order_lines WHERE order_id = ? ORDER BY id ASC`, orderID).
		Scan(&lines).Error
	return lines, err
}

func (r *repository) ListTransactions(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM transactions WHERE order_id = ? ORDER BY id ASC`, orderID).
		Scan(&txns).Error
	return txns, err
}

func (r *repository) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.OrderStatus) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE customer_orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		to, id, from,
	)
	return res.RowsAffected, res.Error
}

func (r *repository) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]domain.CustomerOrder, pagination.PageInfo, error) {
	limit := page.PageSize
	if limit <= 0 {
		limit = 10
	}
	if limit > 250 {
		limit = 250
	}

	query := `SELECT * FROM customer_orders WHERE 1=1`
	args := []interface{}{}

	if filter.AccountID != 0 {
		query += ` AND account_id = ?`
		args = append(args, filter.AccountID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.CreatedAfter != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query += ` AND created_at < ?`
		args = append(args, *filter.CreatedBefore)
	}

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, pagination.PageInfo{}, err
		}
		lastID, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return nil, pagination.PageInfo{}, err
		}
		query += ` AND id < ?`
		args = append(args, lastID)
	}

	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit+1)

	var orders []domain.CustomerOrder
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&orders).Error; err != nil {
		return nil, pagination.PageInfo{}, err
	}

	info := pagination.BuildCursorPageInfo(orders, limit, func(o domain.CustomerOrder) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: strconv.FormatInt(int64(o.ID), 10)})
		return token
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, info, nil
}
