package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists license accounts. Callers pass the *gorm.DB so services
// can compose calls inside one transaction.
type Repository interface {
	Create(ctx context.Context, db *gorm.DB, account *LicenseAccount) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*LicenseAccount, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*LicenseAccount, error)
	FindByOrderLine(ctx context.Context, db *gorm.DB, orderLineID snowflake.ID) ([]LicenseAccount, error)
	List(ctx context.Context, db *gorm.DB, licenseID snowflake.ID, status AccountStatus, limit int) ([]LicenseAccount, error)
	CountAvailable(ctx context.Context, db *gorm.DB, licenseID snowflake.ID) (int64, error)

	// SelectEligibleForUpdate locks up to limit unused, non-expired accounts
	// for the license, lowest ID first, skipping rows locked by concurrent
	// reservations.
	SelectEligibleForUpdate(ctx context.Context, db *gorm.DB, licenseID snowflake.ID, limit int) ([]snowflake.ID, error)

	// MarkReserved flips the selected accounts to used ACTIVE with the given
	// validity window. The update is guarded on used = FALSE and returns the
	// number of rows changed so callers can detect a lost race.
	MarkReserved(ctx context.Context, db *gorm.DB, ids []snowflake.ID, orderLineID snowflake.ID, start, end time.Time) (int64, error)

	// Release returns an account to the pool, clearing its assignment.
	Release(ctx context.Context, db *gorm.DB, id snowflake.ID, status AccountStatus) (int64, error)

	// UpdateEndDate extends the validity window of an assigned account.
	UpdateEndDate(ctx context.Context, db *gorm.DB, id snowflake.ID, end time.Time) error

	// UpdateCredential replaces the stored secret, clearing whichever
	// fields the new credential shape does not carry.
	UpdateCredential(ctx context.Context, db *gorm.DB, id snowflake.ID, credential Credential) error

	// ExpireBatch marks up to limit overdue ACTIVE accounts EXPIRED and
	// returns their IDs.
	ExpireBatch(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error)
}
