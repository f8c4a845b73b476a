package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/smallbiznis/toolvault/internal/audit/domain"
	pooldomain "github.com/smallbiznis/toolvault/internal/licensepool/domain"
	"github.com/smallbiznis/toolvault/internal/renewal/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Node  *snowflake.Node
	Log   *zap.Logger
	Pool  pooldomain.Service
	Audit auditdomain.Service
}

type service struct {
	db    *gorm.DB
	node  *snowflake.Node
	log   *zap.Logger
	pool  pooldomain.Service
	audit auditdomain.Service
}

// NewService builds the renewal service.
func NewService(p Params) domain.Service {
	return &service{
		db:    p.DB,
		node:  p.Node,
		log:   p.Log.Named("renewal.service"),
		pool:  p.Pool,
		audit: p.Audit,
	}
}

func (s *service) Renew(ctx context.Context, actorID string, input domain.RenewInput) (*domain.Renewal, error) {
	if input.AmountPaidCents < 0 {
		return nil, domain.ErrInvalidAmount
	}
	credential, err := credentialFromInput(input)
	if err != nil {
		return nil, err
	}

	var renewal *domain.Renewal
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.pool.Get(ctx, input.AccountID)
		if err != nil {
			return err
		}
		previousEnd := account.EndDate.Time

		if _, err := s.pool.RenewAssignment(ctx, tx, input.AccountID, input.NewEndDate, credential); err != nil {
			return err
		}

		renewal = &domain.Renewal{
			ID:              s.node.Generate(),
			AccountID:       input.AccountID,
			PreviousEndDate: previousEnd,
			NewEndDate:      input.NewEndDate,
			AmountPaidCents: input.AmountPaidCents,
		}
		return tx.WithContext(ctx).Create(renewal).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("assignment renewed",
		zap.String("account_id", input.AccountID.String()),
		zap.Time("new_end_date", input.NewEndDate),
		zap.Int64("amount_paid_cents", input.AmountPaidCents),
	)
	s.audit.Record(ctx, auditdomain.ActorAdmin, actorID,
		"assignment.renewed", "license_account", input.AccountID.String(),
		map[string]any{
			"previous_end_date": renewal.PreviousEndDate,
			"new_end_date":      renewal.NewEndDate,
			"amount_paid_cents": renewal.AmountPaidCents,
		})
	return renewal, nil
}

// credentialFromInput maps the optional secret fields to a pool credential.
// Mixing token and username/password fields is rejected here; the pool
// service checks the shape against the tool's login method.
func credentialFromInput(input domain.RenewInput) (pooldomain.Credential, error) {
	switch {
	case input.Token == "" && input.Username == "" && input.Password == "":
		return nil, nil
	case input.Token != "" && input.Username == "" && input.Password == "":
		return pooldomain.TokenCredential{Token: input.Token}, nil
	case input.Token == "":
		return pooldomain.PasswordCredential{Username: input.Username, Password: input.Password}, nil
	default:
		return nil, pooldomain.ErrInvalidCredential
	}
}

func (s *service) ListByAccount(ctx context.Context, accountID snowflake.ID) ([]domain.Renewal, error) {
	var renewals []domain.Renewal
	err := s.db.WithContext(ctx).
		Raw(`SELECT * FROM renewals WHERE account_id = ? ORDER BY id DESC`, accountID).
		Scan(&renewals).Error
	return renewals, err
}
