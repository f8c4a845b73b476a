package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/smallbiznis/toolvault/internal/audit/domain"
	cartdomain "github.com/smallbiznis/toolvault/internal/cart/domain"
	"github.com/smallbiznis/toolvault/internal/clock"
	pooldomain "github.com/smallbiznis/toolvault/internal/licensepool/domain"
	"github.com/smallbiznis/toolvault/internal/observability/metrics"
	"github.com/smallbiznis/toolvault/internal/order/domain"
	"github.com/smallbiznis/toolvault/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Node  *snowflake.Node
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
	Cart  cartdomain.Service
	Pool  pooldomain.Service
	Audit auditdomain.Service
}

type service struct {
	db    *gorm.DB
	node  *snowflake.Node
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
	cart  cartdomain.Service
	pool  pooldomain.Service
	audit auditdomain.Service
}

// NewService builds the order fulfillment service.
func NewService(p Params) domain.Service {
	return &service{
		db:    p.DB,
		node:  p.Node,
		log:   p.Log.Named("order.service"),
		clock: p.Clock,
		repo:  p.Repo,
		cart:  p.Cart,
		pool:  p.Pool,
		audit: p.Audit,
	}
}

func (s *service) Checkout(ctx context.Context, accountID snowflake.ID) (*domain.Detail, error) {
	cartView, err := s.cart.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(cartView.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	for _, item := range cartView.Items {
		if item.Currency != cartView.Currency {
			return nil, domain.ErrCurrencyMismatch
		}
	}

	order := &domain.CustomerOrder{
		ID:         s.node.Generate(),
		Reference:  ulid.Make().String(),
		AccountID:  accountID,
		Status:     domain.OrderStatusPendingPayment,
		TotalCents: cartView.TotalCents,
		Currency:   cartView.Currency,
	}

	lines := make([]domain.OrderLine, 0, len(cartView.Items))
	for _, item := range cartView.Items {
		lines = append(lines, domain.OrderLine{
			ID:             s.node.Generate(),
			OrderID:        order.ID,
			ToolID:         item.ToolID,
			LicenseID:      item.LicenseID,
			ToolName:       item.ToolName,
			LicenseName:    item.LicenseName,
			UnitPriceCents: item.PriceCents,
			Currency:       item.Currency,
			DurationDays:   item.DurationDays,
			Quantity:       item.Quantity,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CreateOrder(ctx, tx, order); err != nil {
			return err
		}
		if err := s.repo.CreateLines(ctx, tx, lines); err != nil {
			return err
		}
		return s.cart.Clear(ctx, tx, accountID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("reference", order.Reference),
		zap.String("account_id", accountID.String()),
		zap.Int64("total_cents", order.TotalCents),
	)
	s.audit.Record(ctx, auditdomain.ActorCustomer, accountID.String(),
		"order.checkout", "order", order.ID.String(),
		map[string]any{"reference": order.Reference, "total_cents": order.TotalCents})

	return s.detail(ctx, order)
}

func (s *service) GetByID(ctx context.Context, accountID, orderID snowflake.ID) (*domain.Detail, error) {
	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	if order.AccountID != accountID {
		return nil, domain.ErrOrderNotFound
	}
	return s.detail(ctx, order)
}

func (s *service) GetByReference(ctx context.Context, reference string) (*domain.Detail, error) {
	order, err := s.repo.FindByReference(ctx, s.db, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return s.detail(ctx, order)
}

func (s *service) List(ctx context.Context, filter domain.ListFilter, page pagination.Pagination) ([]domain.CustomerOrder, pagination.PageInfo, error) {
	return s.repo.List(ctx, s.db, filter, page)
}

func (s *service) Cancel(ctx context.Context, accountID, orderID snowflake.ID) (*domain.CustomerOrder, error) {
	var order *domain.CustomerOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrOrderNotFound
			}
			return err
		}
		if o.AccountID != accountID {
			return domain.ErrOrderNotFound
		}
		order = o

		if o.Status == domain.OrderStatusCancelled {
			return nil
		}
		if !o.Status.CanTransition(domain.OrderStatusCancelled) {
			return domain.ErrInvalidTransition
		}
		affected, err := s.repo.UpdateStatus(ctx, tx, o.ID, o.Status, domain.OrderStatusCancelled)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrInvalidTransition
		}
		order.Status = domain.OrderStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Fulfillment().RecordOrderTransition(string(domain.OrderStatusPendingPayment), string(domain.OrderStatusCancelled))
	s.audit.Record(ctx, auditdomain.ActorCustomer, accountID.String(),
		"order.cancel", "order", order.ID.String(), nil)
	return order, nil
}

func (s *service) OnPaymentConfirmed(ctx context.Context, input domain.ConfirmationInput) error {
	var (
		order     *domain.CustomerOrder
		duplicate bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := s.repo.FindByReferenceForUpdate(ctx, tx, input.OrderRef)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrOrderNotFound
			}
			return err
		}
		order = o

		if o.Status != domain.OrderStatusPendingPayment {
			duplicate = true
			return nil
		}

		if err := s.repo.CreateTransaction(ctx, tx, &domain.Transaction{
			ID:                   s.node.Generate(),
			OrderID:              o.ID,
			Provider:             input.Provider,
			GatewayTransactionID: input.GatewayTransactionID,
			ResponseCode:         input.ResponseCode,
			ResponseMessage:      input.ResponseMessage,
			AmountCents:          input.AmountCents,
			OccurredAt:           input.OccurredAt,
		}); err != nil {
			return err
		}

		affected, err := s.repo.UpdateStatus(ctx, tx, o.ID, domain.OrderStatusPendingPayment, domain.OrderStatusPaid)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return err
	}

	if duplicate {
		s.log.Info("payment confirmation ignored, order already settled",
			zap.String("reference", input.OrderRef),
			zap.String("status", string(order.Status)),
			zap.String("provider", input.Provider),
		)
		return nil
	}

	if input.AmountCents != order.TotalCents {
		s.log.Warn("confirmed amount differs from order total",
			zap.String("reference", input.OrderRef),
			zap.Int64("order_total_cents", order.TotalCents),
			zap.Int64("paid_cents", input.AmountCents),
		)
	}

	metrics.Fulfillment().RecordOrderTransition(string(domain.OrderStatusPendingPayment), string(domain.OrderStatusPaid))
	s.audit.Record(ctx, auditdomain.ActorGateway, input.Provider,
		"payment.confirmed", "order", order.ID.String(),
		map[string]any{"gateway_transaction_id": input.GatewayTransactionID, "amount_cents": input.AmountCents})

	return s.Allocate(ctx, order.ID)
}

// Allocate reserves accounts for every line or rolls the whole attempt back.
// An ErrOutOfStock on any line fails the order instead of propagating.
func (s *service) Allocate(ctx context.Context, orderID snowflake.ID) error {
	startDate := startOfDay(s.clock.Now())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrOrderNotFound
			}
			return err
		}
		if o.Status != domain.OrderStatusPaid {
			return domain.ErrInvalidTransition
		}

		lines, err := s.repo.ListLines(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if _, err := s.pool.Reserve(ctx, tx, pooldomain.ReserveInput{
				LicenseID:    line.LicenseID,
				OrderLineID:  line.ID,
				Quantity:     line.Quantity,
				StartDate:    startDate,
				DurationDays: line.DurationDays,
			}); err != nil {
				return err
			}
		}

		affected, err := s.repo.UpdateStatus(ctx, tx, o.ID, domain.OrderStatusPaid, domain.OrderStatusFulfilled)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrInvalidTransition
		}
		return nil
	})

	switch {
	case err == nil:
		metrics.Fulfillment().RecordOrderTransition(string(domain.OrderStatusPaid), string(domain.OrderStatusFulfilled))
		s.audit.Record(ctx, auditdomain.ActorSystem, "",
			"order.fulfilled", "order", orderID.String(), nil)
		s.log.Info("order fulfilled", zap.String("order_id", orderID.String()))
		return nil

	case errors.Is(err, pooldomain.ErrOutOfStock):
		// Reservation rollback already returned every sibling account to
		// the pool. Record the terminal outcome outside that transaction.
		if _, failErr := s.repo.UpdateStatus(ctx, s.db, orderID, domain.OrderStatusPaid, domain.OrderStatusFailed); failErr != nil {
			s.log.Error("could not mark order failed",
				zap.String("order_id", orderID.String()),
				zap.Error(failErr),
			)
			return failErr
		}
		metrics.Fulfillment().RecordOrderTransition(string(domain.OrderStatusPaid), string(domain.OrderStatusFailed))
		s.audit.Record(ctx, auditdomain.ActorSystem, "",
			"order.failed", "order", orderID.String(),
			map[string]any{"reason": "out_of_stock"})
		s.log.Warn("order failed, pool could not cover all lines",
			zap.String("order_id", orderID.String()),
		)
		return nil

	default:
		return err
	}
}

func (s *service) OnPaymentFailed(ctx context.Context, input domain.FailureInput) error {
	var (
		order   *domain.CustomerOrder
		ignored bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := s.repo.FindByReferenceForUpdate(ctx, tx, input.OrderRef)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrOrderNotFound
			}
			return err
		}
		order = o

		if !o.Status.CanTransition(domain.OrderStatusFailed) {
			ignored = true
			return nil
		}

		if err := s.repo.CreateTransaction(ctx, tx, &domain.Transaction{
			ID:                   s.node.Generate(),
			OrderID:              o.ID,
			Provider:             input.Provider,
			GatewayTransactionID: input.GatewayTransactionID,
			ResponseCode:         input.ResponseCode,
			ResponseMessage:      input.ResponseMessage,
			OccurredAt:           input.OccurredAt,
		}); err != nil {
			return err
		}

		affected, err := s.repo.UpdateStatus(ctx, tx, o.ID, o.Status, domain.OrderStatusFailed)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return err
	}

	if ignored {
		s.log.Info("payment failure ignored, order already terminal",
			zap.String("reference", input.OrderRef),
			zap.String("status", string(order.Status)),
		)
		return nil
	}

	metrics.Fulfillment().RecordOrderTransition(string(order.Status), string(domain.OrderStatusFailed))
	s.audit.Record(ctx, auditdomain.ActorGateway, input.Provider,
		"payment.failed", "order", order.ID.String(),
		map[string]any{"response_code": input.ResponseCode})
	return nil
}

func (s *service) detail(ctx context.Context, order *domain.CustomerOrder) (*domain.Detail, error) {
	lines, err := s.repo.ListLines(ctx, s.db, order.ID)
	if err != nil {
		return nil, err
	}
	txns, err := s.repo.ListTransactions(ctx, s.db, order.ID)
	if err != nil {
		return nil, err
	}

	detail := &domain.Detail{CustomerOrder: *order, Transactions: txns}
	for _, line := range lines {
		ld := domain.LineDetail{OrderLine: line}
		if order.Status == domain.OrderStatusFulfilled {
			accounts, err := s.pool.AssignmentsForOrderLine(ctx, line.ID)
			if err != nil {
				return nil, err
			}
			for _, account := range accounts {
				view := domain.AssignmentView{
					AccountID: account.ID,
					StartDate: account.StartDate.Time,
					EndDate:   account.EndDate.Time,
				}
				switch cred := account.Credential().(type) {
				case pooldomain.TokenCredential:
					view.Token = cred.Token
				case pooldomain.PasswordCredential:
					view.Username = cred.Username
					view.Password = cred.Password
				}
				ld.Assignments = append(ld.Assignments, view)
			}
		}
		detail.Lines = append(detail.Lines, ld)
	}
	return detail, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
