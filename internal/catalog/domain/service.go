package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrToolNotFound      = errors.New("tool_not_found")
	ErrLicenseNotFound   = errors.New("license_not_found")
	ErrSlugAlreadyExists = errors.New("slug_already_exists")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidLogin      = errors.New("invalid_login_method")
	ErrInvalidDuration   = errors.New("invalid_duration_days")
	ErrInvalidPrice      = errors.New("invalid_price")
	ErrLicenseReferenced = errors.New("license_referenced_by_orders")
)

// CreateToolInput describes a new catalog tool.
type CreateToolInput struct {
	Name        string      `json:"name" binding:"required"`
	LoginMethod LoginMethod `json:"login_method" binding:"required"`
	Description string      `json:"description"`
}

// CreateLicenseInput describes a new plan under a tool.
type CreateLicenseInput struct {
	ToolID       snowflake.ID `json:"tool_id,string" binding:"required"`
	Name         string       `json:"name" binding:"required"`
	DurationDays int          `json:"duration_days" binding:"required"`
	PriceCents   int64        `json:"price_cents"`
	Currency     string       `json:"currency" binding:"required"`
}

// UpdateLicenseInput changes price or duration of a plan that no order has
// referenced yet.
type UpdateLicenseInput struct {
	Name         *string `json:"name"`
	DurationDays *int    `json:"duration_days"`
	PriceCents   *int64  `json:"price_cents"`
	Currency     *string `json:"currency"`
}

// ToolWithLicenses is the storefront view of a tool.
type ToolWithLicenses struct {
	Tool
	Licenses []License `json:"licenses"`
}

type Service interface {
	CreateTool(ctx context.Context, input CreateToolInput) (*Tool, error)
	GetTool(ctx context.Context, id snowflake.ID) (*ToolWithLicenses, error)
	GetToolBySlug(ctx context.Context, slug string) (*ToolWithLicenses, error)
	ListTools(ctx context.Context) ([]ToolWithLicenses, error)

	CreateLicense(ctx context.Context, input CreateLicenseInput) (*License, error)
	GetLicense(ctx context.Context, id snowflake.ID) (*License, error)
	UpdateLicense(ctx context.Context, id snowflake.ID, input UpdateLicenseInput) (*License, error)
}
