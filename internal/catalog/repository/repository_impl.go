package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/smallbiznis/toolvault/internal/catalog/domain"
)

type repository struct{}

// New returns a catalog repository backed by raw SQL.
func New() domain.Repository {
	return &repository{}
}

func (r *repository) CreateTool(ctx context.Context, db *gorm.DB, tool *domain.Tool) error {
	return db.WithContext(ctx).Create(tool).Error
}

func (r *repository) FindToolByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tool, error) {
	var tool domain.Tool
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM tools WHERE id = ? LIMIT 1`, id).
		Scan(&tool).Error
	if err != nil {
		return nil, err
	}
	if tool.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &tool, nil
}

func (r *repository) FindToolBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Tool, error) {
	var tool domain.Tool
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM tools WHERE slug = ? LIMIT 1`, slug).
		Scan(&tool).Error
	if err != nil {
		return nil, err
	}
	if tool.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &tool, nil
}

func (r *repository) ListTools(ctx context.Context, db *gorm.DB) ([]domain.Tool, error) {
	var tools []domain.Tool
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM tools ORDER BY name ASC`).
		Scan(&tools).Error
	return tools, err
}

func (r *repository) UpdateTool(ctx context.Context, db *gorm.DB, tool *domain.Tool) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE tools SET name = ?, slug = ?, description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		tool.Name, tool.Slug, tool.Description, tool.ID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) CreateLicense(ctx context.Context, db *gorm.DB, license *domain.License) error {
	return db.WithContext(ctx).Create(license).Error
}

func (r *repository) FindLicenseByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.License, error) {
	var license domain.License
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM licenses WHERE id = ? LIMIT 1`, id).
		Scan(&license).Error
	if err != nil {
		return nil, err
	}
	if license.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &license, nil
}

func (r *repository) ListLicensesByTool(ctx context.Context, db *gorm.DB, toolID snowflake.ID) ([]domain.License, error) {
	var licenses []domain.License
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM licenses WHERE tool_id = ? ORDER BY price_cents ASC, id ASC`, toolID).
		Scan(&licenses).Error
	return licenses, err
}

func (r *repository) UpdateLicense(ctx context.Context, db *gorm.DB, license *domain.License) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE licenses SET name = ?, duration_days = ?, price_cents = ?, currency = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		license.Name, license.DurationDays, license.PriceCents, license.Currency, license.ID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) CountOrderLineRefs(ctx context.Context, db *gorm.DB, licenseID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Raw(`SELECT COUNT(1) FROM order_lines WHERE license_id = ?`, licenseID).
		Scan(&count).Error
	return count, err
}

// IsNotFound reports whether err is the repository's missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
