package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/toolvault/internal/cart/domain"
	catalogdomain "github.com/smallbiznis/toolvault/internal/catalog/domain"
	pkgdb "github.com/smallbiznis/toolvault/pkg/db"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Node    *snowflake.Node
	Log     *zap.Logger
	Repo    domain.Repository
	Catalog catalogdomain.Service
}

type service struct {
	db      *gorm.DB
	node    *snowflake.Node
	log     *zap.Logger
	repo    domain.Repository
	catalog catalogdomain.Service
}

// NewService builds the cart service.
func NewService(p Params) domain.Service {
	return &service{
		db:      p.DB,
		node:    p.Node,
		log:     p.Log.Named("cart.service"),
		repo:    p.Repo,
		catalog: p.Catalog,
	}
}

func (s *service) Get(ctx context.Context, accountID snowflake.ID) (*domain.View, error) {
	cart, err := s.getOrCreate(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *service) AddItem(ctx context.Context, accountID snowflake.ID, input domain.AddItemInput) (*domain.View, error) {
	if input.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	license, err := s.catalog.GetLicense(ctx, input.LicenseID)
	if err != nil {
		return nil, err
	}

	cart, err := s.getOrCreate(ctx, accountID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindItem(ctx, tx, cart.ID, license.ID)
		if err == nil {
			return s.repo.UpdateItemQuantity(ctx, tx, existing.ID, existing.Quantity+input.Quantity)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return s.repo.CreateItem(ctx, tx, &domain.CartItem{
			ID:        s.node.Generate(),
			CartID:    cart.ID,
			ToolID:    license.ToolID,
			LicenseID: license.ID,
			Quantity:  input.Quantity,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("cart item added",
		zap.String("account_id", accountID.String()),
		zap.String("license_id", license.ID.String()),
		zap.Int("quantity", input.Quantity),
	)
	return s.view(ctx, cart)
}

func (s *service) UpdateQuantity(ctx context.Context, accountID, itemID snowflake.ID, quantity int) (*domain.View, error) {
	cart, err := s.repo.FindCartByAccount(ctx, s.db, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}

	if quantity <= 0 {
		return s.RemoveItem(ctx, accountID, itemID)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ownsItem(ctx, tx, cart.ID, itemID); err != nil {
			return err
		}
		return s.repo.UpdateItemQuantity(ctx, tx, itemID, quantity)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *service) RemoveItem(ctx context.Context, accountID, itemID snowflake.ID) (*domain.View, error) {
	cart, err := s.repo.FindCartByAccount(ctx, s.db, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ownsItem(ctx, tx, cart.ID, itemID); err != nil {
			return err
		}
		affected, err := s.repo.DeleteItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrItemNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *service) ItemCount(ctx context.Context, accountID snowflake.ID) (int, error) {
	cart, err := s.repo.FindCartByAccount(ctx, s.db, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return s.repo.CountItems(ctx, s.db, cart.ID)
}

func (s *service) Clear(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) error {
	db := tx
	if db == nil {
		db = s.db
	}
	cart, err := s.repo.FindCartByAccount(ctx, db, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return s.repo.DeleteItems(ctx, db, cart.ID)
}

func (s *service) getOrCreate(ctx context.Context, accountID snowflake.ID) (*domain.Cart, error) {
	cart, err := s.repo.FindCartByAccount(ctx, s.db, accountID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = &domain.Cart{ID: s.node.Generate(), AccountID: accountID}
	if err := s.repo.CreateCart(ctx, s.db, cart); err != nil {
		// Another request created it first.
		if pkgdb.IsDuplicateKeyErr(err) {
			return s.repo.FindCartByAccount(ctx, s.db, accountID)
		}
		return nil, err
	}
	return cart, nil
}

func (s *service) ownsItem(ctx context.Context, db *gorm.DB, cartID, itemID snowflake.ID) error {
	var owner snowflake.ID
	err := db.WithContext(ctx).
		Raw(`SELECT cart_id FROM cart_items WHERE id = ? LIMIT 1`, itemID).
		Scan(&owner).Error
	if err != nil {
		return err
	}
	if owner != cartID {
		return domain.ErrItemNotFound
	}
	return nil
}

func (s *service) view(ctx context.Context, cart *domain.Cart) (*domain.View, error) {
	items, err := s.repo.ListItems(ctx, s.db, cart.ID)
	if err != nil {
		return nil, err
	}

	view := &domain.View{
		CartID:    cart.ID,
		AccountID: cart.AccountID,
		Items:     items,
	}
	for _, item := range items {
		view.ItemCount += item.Quantity
		view.TotalCents += item.PriceCents * int64(item.Quantity)
		if view.Currency == "" {
			view.Currency = item.Currency
		}
	}
	return view, nil
}
