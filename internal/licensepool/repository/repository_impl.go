package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/smallbiznis/toolvault/internal/licensepool/domain"
)

type repository struct{}

// New returns a license account repository backed by raw SQL.
func New() domain.Repository {
	return &repository{}
}

func (r *repository) Create(ctx context.Context, db *gorm.DB, account *domain.LicenseAccount) error {
	return db.WithContext(ctx).Create(account).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.LicenseAccount, error) {
	var account domain.LicenseAccount
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM license_accounts WHERE id = ? LIMIT 1`, id).
		Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &account, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.LicenseAccount, error) {
	var account domain.LicenseAccount
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM license_accounts WHERE id = ? LIMIT 1 FOR UPDATE`, id).
		Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &account, nil
}

func (r *repository) FindByOrderLine(ctx context.Context, db *gorm.DB, orderLineID snowflake.ID) ([]domain.LicenseAccount, error) {
	var accounts []domain.LicenseAccount
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM license_accounts WHERE order_line_id = ? ORDER BY id ASC`, orderLineID).
		Scan(&accounts).Error
	return accounts, err
}

func (r *repository) List(ctx context.Context, db *gorm.DB, licenseID snowflake.ID, status domain.AccountStatus, limit int) ([]domain.LicenseAccount, error) {
	query := `SELECT * FROM license_accounts WHERE license_id = ?`
	args := []interface{}{licenseID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)

	var accounts []domain.LicenseAccount
	err := db.WithContext(ctx).Raw(query, args...).Scan(&accounts).Error
	return accounts, err
}

func (r *repository) CountAvailable(ctx context.Context, db *gorm.DB, licenseID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Raw(`SELECT COUNT(1) FROM license_accounts WHERE license_id = ? AND used = FALSE AND status <> ?`,
			licenseID, domain.AccountStatusExpired).
		Scan(&count).Error
	return count, err
}

func (r *repository) SelectEligibleForUpdate(ctx context.Context, db *gorm.DB, licenseID snowflake.ID, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Raw(`SELECT id FROM license_accounts
			WHERE license_id = ? AND used = FALSE AND status <> ?
			ORDER BY id ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED`,
			licenseID, domain.AccountStatusExpired, limit).
		Scan(&ids).Error
	return ids, err
}

func (r *repository) MarkReserved(ctx context.Context, db *gorm.DB, ids []snowflake.ID, orderLineID snowflake.ID, start, end time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE license_accounts
		SET used = TRUE, status = ?, order_line_id = ?, start_date = ?, end_date = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id IN (?) AND used = FALSE`,
		domain.AccountStatusActive, orderLineID, start, end, ids,
	)
	return res.RowsAffected, res.Error
}

func (r *repository) Release(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.AccountStatus) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE license_accounts
		SET used = FALSE, status = ?, order_line_id = NULL, start_date = NULL, end_date = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND used = TRUE`,
		status, id,
	)
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateEndDate(ctx context.Context, db *gorm.DB, id snowflake.ID, end time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE license_accounts SET end_date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		end, id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) UpdateCredential(ctx context.Context, db *gorm.DB, id snowflake.ID, credential domain.Credential) error {
	var res *gorm.DB
	switch cred := credential.(type) {
	case domain.TokenCredential:
		res = db.WithContext(ctx).Exec(
			`UPDATE license_accounts SET token = ?, username = NULL, password = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			cred.Token, id,
		)
	case domain.PasswordCredential:
		res = db.WithContext(ctx).Exec(
			`UPDATE license_accounts SET token = NULL, username = ?, password = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			cred.Username, cred.Password, id,
		)
	default:
		return domain.ErrInvalidCredential
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ExpireBatch(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Raw(`SELECT id FROM license_accounts
			WHERE status = ? AND end_date IS NOT NULL AND end_date < ?
			ORDER BY end_date ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED`,
			domain.AccountStatusActive, now, limit).
		Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	res := db.WithContext(ctx).Exec(
		`UPDATE license_accounts SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id IN (?)`,
		domain.AccountStatusExpired, ids,
	)
	if res.Error != nil {
		return nil, res.Error
	}
	return ids, nil
}
