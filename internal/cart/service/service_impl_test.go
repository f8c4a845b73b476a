package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/toolvault/internal/cart/domain"
	"github.com/smallbiznis/toolvault/internal/cart/repository"
	catalogdomain "github.com/smallbiznis/toolvault/internal/catalog/domain"
)

var testDBSeq int

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testDBSeq++
	dsn := fmt.Sprintf("file:carttest_%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	schema := []string{
		`CREATE TABLE carts (
			id INTEGER PRIMARY KEY,
			account_id INTEGER NOT NULL UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE cart_items (
			id INTEGER PRIMARY KEY,
			cart_id INTEGER NOT NULL,
			tool_id INTEGER NOT NULL,
			license_id INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE tools (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL,
			login_method TEXT NOT NULL,
			description TEXT
		)`,
		`CREATE TABLE licenses (
			id INTEGER PRIMARY KEY,
			tool_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			duration_days INTEGER NOT NULL,
			price_cents INTEGER NOT NULL,
			currency TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

type stubCatalog struct {
	licenses map[snowflake.ID]*catalogdomain.License
}

func (s *stubCatalog) CreateTool(context.Context, catalogdomain.CreateToolInput) (*catalogdomain.Tool, error) {
	return nil, nil
}
func (s *stubCatalog) GetTool(context.Context, snowflake.ID) (*catalogdomain.ToolWithLicenses, error) {
	return nil, nil
}
func (s *stubCatalog) GetToolBySlug(context.Context, string) (*catalogdomain.ToolWithLicenses, error) {
	return nil, nil
}
func (s *stubCatalog) ListTools(context.Context) ([]catalogdomain.ToolWithLicenses, error) {
	return nil, nil
}
func (s *stubCatalog) CreateLicense(context.Context, catalogdomain.CreateLicenseInput) (*catalogdomain.License, error) {
	return nil, nil
}
func (s *stubCatalog) GetLicense(_ context.Context, id snowflake.ID) (*catalogdomain.License, error) {
	license, ok := s.licenses[id]
	if !ok {
		return nil, catalogdomain.ErrLicenseNotFound
	}
	return license, nil
}
func (s *stubCatalog) UpdateLicense(context.Context, snowflake.ID, catalogdomain.UpdateLicenseInput) (*catalogdomain.License, error) {
	return nil, nil
}

type fixture struct {
	svc       domain.Service
	node      *snowflake.Node
	accountID snowflake.ID
	licenseID snowflake.ID
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	db := openTestDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	toolID := node.Generate()
	licenseID := node.Generate()
	if err := db.Exec(`INSERT INTO tools (id, name, slug, login_method) VALUES (?, 'Figma', 'figma', 'USER_PASSWORD')`, toolID).Error; err != nil {
		t.Fatalf("seed tool: %v", err)
	}
	if err := db.Exec(`INSERT INTO licenses (id, tool_id, name, duration_days, price_cents, currency) VALUES (?, ?, 'Pro Monthly', 30, 1500, 'USD')`, licenseID, toolID).Error; err != nil {
		t.Fatalf("seed license: %v", err)
	}

	catalog := &stubCatalog{licenses: map[snowflake.ID]*catalogdomain.License{
		licenseID: {ID: licenseID, ToolID: toolID, Name: "Pro Monthly", DurationDays: 30, PriceCents: 1500, Currency: "USD"},
	}}

	svc := NewService(Params{
		DB:      db,
		Node:    node,
		Log:     zap.NewNop(),
		Repo:    repository.New(),
		Catalog: catalog,
	})
	return fixture{svc: svc, node: node, accountID: node.Generate(), licenseID: licenseID}
}

func TestAddItem_CreatesCartAndMergesQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.AddItem(ctx, f.accountID, domain.AddItemInput{LicenseID: f.licenseID, Quantity: 2})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if len(view.Items) != 1 || view.ItemCount != 2 {
		t.Fatalf("expected 1 row with quantity 2, got %d rows, count %d", len(view.Items), view.ItemCount)
	}

	view, err = f.svc.AddItem(ctx, f.accountID, domain.AddItemInput{LicenseID: f.licenseID, Quantity: 3})
	if err != nil {
		t.Fatalf("add item again: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("same plan must merge into one row, got %d rows", len(view.Items))
	}
	if view.ItemCount != 5 {
		t.Errorf("expected merged quantity 5, got %d", view.ItemCount)
	}
	if view.TotalCents != 5*1500 {
		t.Errorf("expected total %d, got %d", 5*1500, view.TotalCents)
	}
	if view.Currency != "USD" {
		t.Errorf("expected USD, got %s", view.Currency)
	}
}

func TestAddItem_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddItem(ctx, f.accountID, domain.AddItemInput{LicenseID: f.licenseID, Quantity: 0}); err != domain.ErrInvalidQuantity {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := f.svc.AddItem(ctx, f.accountID, domain.AddItemInput{LicenseID: f.node.Generate(), Quantity: 1}); err != catalogdomain.ErrLicenseNotFound {
		t.Fatalf("expected ErrLicenseNotFound, got %v", err)
	}
}

func TestUpdateQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.AddItem(ctx, f.accountID, domain.AddItemInput{LicenseID: f.licenseID, Quantity: 2})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	itemID := view.Items[0].ID

	view, err = f.svc.UpdateQuantity(ctx, f.accountID, itemID, 7)
	if err != nil {
		t.Fatalf("update quantity: %v", err)
	}
	if view.ItemCount != 7 {
		t.Errorf("expected quantity 7, got %d", view.ItemCount)
	}

	// Zero removes the item.
	view, err = f.svc.UpdateQuantity(ctx, f.accountID, itemID, 0)
	if err != nil {
		t.Fatalf("update to zero: %v", err)
	}
	if len(view.Items) != 0 {
		t.Errorf("expected empty cart after zero quantity, got %d items", len(view.Items))
	}

	if _, err := f.svc.UpdateQuantity(ctx, f.accountID, f.node.Generate(), 1); err != domain.ErrItemNotFound {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestRemoveItem_OtherAccountCannotTouchIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.AddItem(ctx, f.accountID, domain.AddItemInput{LicenseID: f.licenseID, Quantity: 1})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	itemID := view.Items[0].ID

	otherAccount := f.node.Generate()
	if _, err := f.svc.AddItem(ctx, otherAccount, domain.AddItemInput{LicenseID: f.licenseID, Quantity: 1}); err != nil {
		t.Fatalf("seed other cart: %v", err)
	}
	if _, err := f.svc.RemoveItem(ctx, otherAccount, itemID); err != domain.ErrItemNotFound {
		t.Fatalf("foreign item removal should fail, got %v", err)
	}

	view, err = f.svc.RemoveItem(ctx, f.accountID, itemID)
	if err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if len(view.Items) != 0 {
		t.Errorf("expected empty cart, got %d items", len(view.Items))
	}
}

func TestItemCountAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	count, err := f.svc.ItemCount(ctx, f.accountID)
	if err != nil {
		t.Fatalf("item count without cart: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 for missing cart, got %d", count)
	}

	if _, err := f.svc.AddItem(ctx, f.accountID, domain.AddItemInput{LicenseID: f.licenseID, Quantity: 4}); err != nil {
		t.Fatalf("add item: %v", err)
	}

	count, err = f.svc.ItemCount(ctx, f.accountID)
	if err != nil {
		t.Fatalf("item count: %v", err)
	}
	if count != 4 {
		t.Errorf("expected 4, got %d", count)
	}

	if err := f.svc.Clear(ctx, nil, f.accountID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	count, err = f.svc.ItemCount(ctx, f.accountID)
	if err != nil {
		t.Fatalf("item count after clear: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 after clear, got %d", count)
	}
}
