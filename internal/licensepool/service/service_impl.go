package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	catalogdomain "github.com/smallbiznis/toolvault/internal/catalog/domain"
	"github.com/smallbiznis/toolvault/internal/config"
	"github.com/smallbiznis/toolvault/internal/licensepool/domain"
	"github.com/smallbiznis/toolvault/internal/observability/metrics"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Node    *snowflake.Node
	Log     *zap.Logger
	Repo    domain.Repository
	Catalog catalogdomain.Service
	Policy  *config.FulfillmentPolicyHolder
}

type service struct {
	db      *gorm.DB
	node    *snowflake.Node
	log     *zap.Logger
	repo    domain.Repository
	catalog catalogdomain.Service
	policy  *config.FulfillmentPolicyHolder
}

// NewService builds the license pool service.
func NewService(p Params) domain.Service {
	return &service{
		db:      p.DB,
		node:    p.Node,
		log:     p.Log.Named("licensepool.service"),
		repo:    p.Repo,
		catalog: p.Catalog,
		policy:  p.Policy,
	}
}

// Provision validates the credential shape against the tool's login method
// and inserts a PENDING account.
func (s *service) Provision(ctx context.Context, input domain.ProvisionInput) (*domain.LicenseAccount, error) {
	license, err := s.catalog.GetLicense(ctx, input.LicenseID)
	if err != nil {
		return nil, err
	}
	tool, err := s.catalog.GetTool(ctx, license.ToolID)
	if err != nil {
		return nil, err
	}

	account := &domain.LicenseAccount{
		ID:        s.node.Generate(),
		LicenseID: license.ID,
		Status:    domain.AccountStatusPending,
	}

	switch tool.LoginMethod {
	case catalogdomain.LoginMethodToken:
		if input.Token == "" || input.Username != "" || input.Password != "" {
			return nil, domain.ErrInvalidCredential
		}
		account.Token = sql.NullString{String: input.Token, Valid: true}
	case catalogdomain.LoginMethodUserPassword:
		if input.Token != "" || input.Username == "" || input.Password == "" {
			return nil, domain.ErrInvalidCredential
		}
		account.Username = sql.NullString{String: input.Username, Valid: true}
		account.Password = sql.NullString{String: input.Password, Valid: true}
	default:
		return nil, domain.ErrInvalidCredential
	}

	if err := s.repo.Create(ctx, s.db, account); err != nil {
		return nil, err
	}

	s.log.Info("license account provisioned",
		zap.String("account_id", account.ID.String()),
		zap.String("license_id", account.LicenseID.String()),
	)
	return account, nil
}

// validateCredential checks a replacement secret against the login method of
// the tool the license belongs to.
func (s *service) validateCredential(ctx context.Context, licenseID snowflake.ID, credential domain.Credential) error {
	license, err := s.catalog.GetLicense(ctx, licenseID)
	if err != nil {
		return err
	}
	tool, err := s.catalog.GetTool(ctx, license.ToolID)
	if err != nil {
		return err
	}

	switch cred := credential.(type) {
	case domain.TokenCredential:
		if tool.LoginMethod != catalogdomain.LoginMethodToken || cred.Token == "" {
			return domain.ErrInvalidCredential
		}
	case domain.PasswordCredential:
		if tool.LoginMethod != catalogdomain.LoginMethodUserPassword || cred.Username == "" || cred.Password == "" {
			return domain.ErrInvalidCredential
		}
	default:
		return domain.ErrInvalidCredential
	}
	return nil
}

func (s *service) Get(ctx context.Context, id snowflake.ID) (*domain.LicenseAccount, error) {
	account, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (s *service) List(ctx context.Context, licenseID snowflake.ID, status domain.AccountStatus, limit int) ([]domain.LicenseAccount, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.List(ctx, s.db, licenseID, status, limit)
}

func (s *service) CountAvailable(ctx context.Context, licenseID snowflake.ID) (int64, error) {
	return s.repo.CountAvailable(ctx, s.db, licenseID)
}

func (s *service) AssignmentsForOrderLine(ctx context.Context, orderLineID snowflake.ID) ([]domain.LicenseAccount, error) {
	return s.repo.FindByOrderLine(ctx, s.db, orderLineID)
}

// Reserve assigns exactly input.Quantity accounts or none. Selection locks
// candidate rows with SKIP LOCKED so concurrent reservations for the same
// license never block on, or double-assign, each other.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, input domain.ReserveInput) ([]domain.Assignment, error) {
	if input.Quantity <= 0 || input.Quantity > s.policy.Get().ReserveBatchCap {
		return nil, domain.ErrInvalidQuantity
	}
	if input.StartDate.IsZero() || input.DurationDays <= 0 {
		return nil, domain.ErrInvalidDate
	}

	started := time.Now()
	assignments, err := s.reserveIn(ctx, tx, input)
	outcome := "ok"
	switch {
	case err == domain.ErrOutOfStock:
		outcome = "out_of_stock"
	case err != nil:
		outcome = metrics.ClassifyError(err)
		if outcome == metrics.ErrorTypeDB {
			outcome = metrics.ClassifyDBError(err)
		}
	}
	metrics.Fulfillment().RecordReservation(outcome, time.Since(started))
	return assignments, err
}

func (s *service) reserveIn(ctx context.Context, tx *gorm.DB, input domain.ReserveInput) ([]domain.Assignment, error) {
	run := func(tx *gorm.DB) ([]domain.Assignment, error) {
		ids, err := s.repo.SelectEligibleForUpdate(ctx, tx, input.LicenseID, input.Quantity)
		if err != nil {
			return nil, err
		}
		if len(ids) < input.Quantity {
			return nil, domain.ErrOutOfStock
		}

		end := input.StartDate.AddDate(0, 0, input.DurationDays)
		affected, err := s.repo.MarkReserved(ctx, tx, ids, input.OrderLineID, input.StartDate, end)
		if err != nil {
			return nil, err
		}
		if affected != int64(input.Quantity) {
			// A locked row was consumed between select and update; the
			// surrounding transaction rolls everything back.
			s.log.Warn("reservation lost race",
				zap.String("license_id", input.LicenseID.String()),
				zap.Int("requested", input.Quantity),
				zap.Int64("marked", affected),
			)
			return nil, domain.ErrOutOfStock
		}

		assignments := make([]domain.Assignment, 0, len(ids))
		for _, id := range ids {
			assignments = append(assignments, domain.Assignment{
				AccountID:   id,
				LicenseID:   input.LicenseID,
				OrderLineID: input.OrderLineID,
				StartDate:   input.StartDate,
				EndDate:     end,
			})
		}
		return assignments, nil
	}

	if tx != nil {
		return run(tx)
	}

	var assignments []domain.Assignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		assignments, err = run(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, status domain.AccountStatus) error {
	db := tx
	if db == nil {
		db = s.db
	}
	affected, err := s.repo.Release(ctx, db, accountID, status)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrAccountNotAssigned
	}
	s.log.Info("license account released",
		zap.String("account_id", accountID.String()),
		zap.String("status", string(status)),
	)
	return nil
}

// RenewAssignment extends the validity of an assigned account. The new end
// date must be strictly later than the current one; renewing an EXPIRED
// account reactivates it. A non-nil credential swaps the stored secret, for
// vendors that rotate it on renewal.
func (s *service) RenewAssignment(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, newEndDate time.Time, credential domain.Credential) (*domain.LicenseAccount, error) {
	run := func(tx *gorm.DB) (*domain.LicenseAccount, error) {
		account, err := s.repo.FindByIDForUpdate(ctx, tx, accountID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, domain.ErrAccountNotFound
			}
			return nil, err
		}
		if !account.Used || !account.EndDate.Valid {
			return nil, domain.ErrAccountNotAssigned
		}
		if !newEndDate.After(account.EndDate.Time) {
			return nil, domain.ErrInvalidDate
		}
		if credential != nil {
			if err := s.validateCredential(ctx, account.LicenseID, credential); err != nil {
				return nil, err
			}
		}

		if err := s.repo.UpdateEndDate(ctx, tx, accountID, newEndDate); err != nil {
			return nil, err
		}
		if credential != nil {
			if err := s.repo.UpdateCredential(ctx, tx, accountID, credential); err != nil {
				return nil, err
			}
			switch cred := credential.(type) {
			case domain.TokenCredential:
				account.Token = sql.NullString{String: cred.Token, Valid: true}
				account.Username = sql.NullString{}
				account.Password = sql.NullString{}
			case domain.PasswordCredential:
				account.Token = sql.NullString{}
				account.Username = sql.NullString{String: cred.Username, Valid: true}
				account.Password = sql.NullString{String: cred.Password, Valid: true}
			}
		}
		if account.Status == domain.AccountStatusExpired {
			res := tx.WithContext(ctx).Exec(
				`UPDATE license_accounts SET status = ? WHERE id = ?`,
				domain.AccountStatusActive, accountID,
			)
			if res.Error != nil {
				return nil, res.Error
			}
			account.Status = domain.AccountStatusActive
		}
		account.EndDate = sql.NullTime{Time: newEndDate, Valid: true}
		return account, nil
	}

	if tx != nil {
		return run(tx)
	}

	var account *domain.LicenseAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		account, err = run(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}
