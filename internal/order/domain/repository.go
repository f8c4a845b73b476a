package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/smallbiznis/toolvault/pkg/db/pagination"
)

// ListFilter narrows order listings. Zero values are ignored.
type ListFilter struct {
	AccountID     snowflake.ID
	Status        OrderStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Repository persists orders, lines and gateway transactions.
type Repository interface {
	CreateOrder(ctx context.Context, db *gorm.DB, order *CustomerOrder) error
	CreateLines(ctx context.Context, db *gorm.DB, lines []OrderLine) error
	CreateTransaction(ctx context.Context, db *gorm.DB, txn *Transaction) error

	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CustomerOrder, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CustomerOrder, error)
	FindByReference(ctx context.Context, db *gorm.DB, reference string) (*CustomerOrder, error)
	FindByReferenceForUpdate(ctx context.Context, db *gorm.DB, reference string) (*CustomerOrder, error)

	ListLines(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]OrderLine, error)
	ListTransactions(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]Transaction, error)

	// UpdateStatus performs a compare-and-set on the order status and
	// returns the number of rows changed.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to OrderStatus) (int64, error)

	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]CustomerOrder, pagination.PageInfo, error)
}
