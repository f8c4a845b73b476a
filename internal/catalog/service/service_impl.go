package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/toolvault/internal/catalog/domain"
	pkgdb "github.com/smallbiznis/toolvault/pkg/db"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
	Log  *zap.Logger
	Repo domain.Repository
}

type service struct {
	db   *gorm.DB
	node *snowflake.Node
	log  *zap.Logger
	repo domain.Repository
}

// NewService builds the catalog service.
func NewService(p Params) domain.Service {
	return &service{
		db:   p.DB,
		node: p.Node,
		log:  p.Log.Named("catalog.service"),
		repo: p.Repo,
	}
}

func (s *service) CreateTool(ctx context.Context, input domain.CreateToolInput) (*domain.Tool, error) {
	if !input.LoginMethod.Valid() {
		return nil, domain.ErrInvalidLogin
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	tool := &domain.Tool{
		ID:          s.node.Generate(),
		Name:        name,
		Slug:        slug.Make(name),
		LoginMethod: input.LoginMethod,
		Description: input.Description,
	}

	if err := s.repo.CreateTool(ctx, s.db, tool); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugAlreadyExists
		}
		return nil, err
	}

	s.log.Info("tool created",
		zap.String("tool_id", tool.ID.String()),
		zap.String("slug", tool.Slug),
	)
	return tool, nil
}

func (s *service) GetTool(ctx context.Context, id snowflake.ID) (*domain.ToolWithLicenses, error) {
	tool, err := s.repo.FindToolByID(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrToolNotFound
		}
		return nil, err
	}
	return s.withLicenses(ctx, tool)
}

func (s *service) GetToolBySlug(ctx context.Context, toolSlug string) (*domain.ToolWithLicenses, error) {
	tool, err := s.repo.FindToolBySlug(ctx, s.db, toolSlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrToolNotFound
		}
		return nil, err
	}
	return s.withLicenses(ctx, tool)
}

func (s *service) ListTools(ctx context.Context) ([]domain.ToolWithLicenses, error) {
	tools, err := s.repo.ListTools(ctx, s.db)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ToolWithLicenses, 0, len(tools))
	for i := range tools {
		item, err := s.withLicenses(ctx, &tools[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, nil
}

func (s *service) withLicenses(ctx context.Context, tool *domain.Tool) (*domain.ToolWithLicenses, error) {
	licenses, err := s.repo.ListLicensesByTool(ctx, s.db, tool.ID)
	if err != nil {
		return nil, err
	}
	return &domain.ToolWithLicenses{Tool: *tool, Licenses: licenses}, nil
}

func (s *service) CreateLicense(ctx context.Context, input domain.CreateLicenseInput) (*domain.License, error) {
	if input.DurationDays <= 0 {
		return nil, domain.ErrInvalidDuration
	}
	if input.PriceCents < 0 {
		return nil, domain.ErrInvalidPrice
	}

	if _, err := s.repo.FindToolByID(ctx, s.db, input.ToolID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrToolNotFound
		}
		return nil, err
	}

	license := &domain.License{
		ID:           s.node.Generate(),
		ToolID:       input.ToolID,
		Name:         strings.TrimSpace(input.Name),
		DurationDays: input.DurationDays,
		PriceCents:   input.PriceCents,
		Currency:     strings.ToUpper(input.Currency),
	}

	if err := s.repo.CreateLicense(ctx, s.db, license); err != nil {
		return nil, err
	}

	s.log.Info("license created",
		zap.String("license_id", license.ID.String()),
		zap.String("tool_id", license.ToolID.String()),
		zap.Int("duration_days", license.DurationDays),
	)
	return license, nil
}

func (s *service) GetLicense(ctx context.Context, id snowflake.ID) (*domain.License, error) {
	license, err := s.repo.FindLicenseByID(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLicenseNotFound
		}
		return nil, err
	}
	return license, nil
}

// UpdateLicense rejects changes to price or duration once any order line has
// snapshotted the plan. Name-only edits stay allowed.
func (s *service) UpdateLicense(ctx context.Context, id snowflake.ID, input domain.UpdateLicenseInput) (*domain.License, error) {
	var updated *domain.License
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		license, err := s.repo.FindLicenseByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrLicenseNotFound
			}
			return err
		}

		pricingChange := input.DurationDays != nil || input.PriceCents != nil || input.Currency != nil
		if pricingChange {
			refs, err := s.repo.CountOrderLineRefs(ctx, tx, id)
			if err != nil {
				return err
			}
			if refs > 0 {
				return domain.ErrLicenseReferenced
			}
		}

		if input.Name != nil {
			license.Name = strings.TrimSpace(*input.Name)
		}
		if input.DurationDays != nil {
			if *input.DurationDays <= 0 {
				return domain.ErrInvalidDuration
			}
			license.DurationDays = *input.DurationDays
		}
		if input.PriceCents != nil {
			if *input.PriceCents < 0 {
				return domain.ErrInvalidPrice
			}
			license.PriceCents = *input.PriceCents
		}
		if input.Currency != nil {
			license.Currency = strings.ToUpper(*input.Currency)
		}

		if err := s.repo.UpdateLicense(ctx, tx, license); err != nil {
			return err
		}
		updated = license
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
