package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ToolFilter narrows tool lookups.
type ToolFilter struct {
	Slug string
}

// Repository persists catalog rows. Callers pass the *gorm.DB so services can
// run several calls inside one transaction.
type Repository interface {
	CreateTool(ctx context.Context, db *gorm.DB, tool *Tool) error
	FindToolByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tool, error)
	FindToolBySlug(ctx context.Context, db *gorm.DB, slug string) (*Tool, error)
	ListTools(ctx context.Context, db *gorm.DB) ([]Tool, error)
	UpdateTool(ctx context.Context, db *gorm.DB, tool *Tool) error

	CreateLicense(ctx context.Context, db *gorm.DB, license *License) error
	FindLicenseByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*License, error)
	ListLicensesByTool(ctx context.Context, db *gorm.DB, toolID snowflake.ID) ([]License, error)
	UpdateLicense(ctx context.Context, db *gorm.DB, license *License) error
	CountOrderLineRefs(ctx context.Context, db *gorm.DB, licenseID snowflake.ID) (int64, error)
}
