package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrOutOfStock         = errors.New("out_of_stock")
	ErrAccountNotFound    = errors.New("license_account_not_found")
	ErrAccountNotAssigned = errors.New("license_account_not_assigned")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInvalidDate        = errors.New("invalid_date")
	ErrInvalidCredential  = errors.New("invalid_credential")
)

// ProvisionInput adds one credential to the pool for a license plan.
type ProvisionInput struct {
	LicenseID snowflake.ID `json:"license_id,string" binding:"required"`
	Token     string       `json:"token"`
	Username  string       `json:"username"`
	Password  string       `json:"password"`
}

// ReserveInput asks for quantity accounts of one license, all assigned to a
// single order line with the same validity window.
type ReserveInput struct {
	LicenseID    snowflake.ID
	OrderLineID  snowflake.ID
	Quantity     int
	StartDate    time.Time
	DurationDays int
}

// Service manages the credential pool. Reserve and Release accept an optional
// transaction handle so order fulfillment can compose them with its own
// state changes; pass nil to run standalone.
type Service interface {
	Provision(ctx context.Context, input ProvisionInput) (*LicenseAccount, error)
	Get(ctx context.Context, id snowflake.ID) (*LicenseAccount, error)
	List(ctx context.Context, licenseID snowflake.ID, status AccountStatus, limit int) ([]LicenseAccount, error)
	CountAvailable(ctx context.Context, licenseID snowflake.ID) (int64, error)

	// AssignmentsForOrderLine returns the accounts assigned to one order
	// line, lowest ID first.
	AssignmentsForOrderLine(ctx context.Context, orderLineID snowflake.ID) ([]LicenseAccount, error)

	// Reserve atomically assigns exactly Quantity accounts or none,
	// returning ErrOutOfStock without side effects when the pool cannot
	// cover the request.
	Reserve(ctx context.Context, tx *gorm.DB, input ReserveInput) ([]Assignment, error)

	// Release returns an assigned account to the pool in the given status.
	Release(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, status AccountStatus) error

	// RenewAssignment extends an assigned account's end date. newEndDate
	// must be strictly after the current end date. A non-nil credential
	// replaces the stored secret in the same transaction; its shape must
	// match the tool's login method.
	RenewAssignment(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, newEndDate time.Time, credential Credential) (*LicenseAccount, error)
}
