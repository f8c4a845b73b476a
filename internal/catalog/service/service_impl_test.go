package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/toolvault/internal/catalog/domain"
	"github.com/smallbiznis/toolvault/internal/catalog/repository"
)

var testDBSeq int

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testDBSeq++
	dsn := fmt.Sprintf("file:catalogtest_%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	schema := []string{
		`CREATE TABLE tools (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			login_method TEXT NOT NULL,
			description TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE licenses (
			id INTEGER PRIMARY KEY,
			tool_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			duration_days INTEGER NOT NULL,
			price_cents INTEGER NOT NULL,
			currency TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE order_lines (
			id INTEGER PRIMARY KEY,
			order_id INTEGER NOT NULL,
			tool_id INTEGER NOT NULL,
			license_id INTEGER NOT NULL,
			tool_name TEXT NOT NULL,
			license_name TEXT NOT NULL,
			unit_price_cents INTEGER NOT NULL,
			currency TEXT NOT NULL,
			duration_days INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db := openTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:   db,
		Node: node,
		Log:  zap.NewNop(),
		Repo: repository.New(),
	})
	return svc, db, node
}

func TestCreateTool_SlugsAndDuplicates(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	tool, err := svc.CreateTool(ctx, domain.CreateToolInput{
		Name:        "DesignKit Pro",
		LoginMethod: domain.LoginMethodUserPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, "designkit-pro", tool.Slug)

	_, err = svc.CreateTool(ctx, domain.CreateToolInput{
		Name:        "DesignKit Pro",
		LoginMethod: domain.LoginMethodToken,
	})
	assert.ErrorIs(t, err, domain.ErrSlugAlreadyExists)

	_, err = svc.CreateTool(ctx, domain.CreateToolInput{
		Name:        "Other",
		LoginMethod: domain.LoginMethod("BIOMETRIC"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidLogin)

	_, err = svc.CreateTool(ctx, domain.CreateToolInput{
		Name:        "   ",
		LoginMethod: domain.LoginMethodToken,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestCreateLicense_Validation(t *testing.T) {
	svc, _, node := newService(t)
	ctx := context.Background()

	tool, err := svc.CreateTool(ctx, domain.CreateToolInput{
		Name:        "CodeScan API",
		LoginMethod: domain.LoginMethodToken,
	})
	require.NoError(t, err)

	license, err := svc.CreateLicense(ctx, domain.CreateLicenseInput{
		ToolID:       tool.ID,
		Name:         "Annual",
		DurationDays: 365,
		PriceCents:   120000,
		Currency:     "usd",
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", license.Currency)

	_, err = svc.CreateLicense(ctx, domain.CreateLicenseInput{
		ToolID: tool.ID, Name: "Bad", DurationDays: 0, Currency: "USD",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)

	_, err = svc.CreateLicense(ctx, domain.CreateLicenseInput{
		ToolID: tool.ID, Name: "Bad", DurationDays: 30, PriceCents: -1, Currency: "USD",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = svc.CreateLicense(ctx, domain.CreateLicenseInput{
		ToolID: node.Generate(), Name: "Orphan", DurationDays: 30, Currency: "USD",
	})
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
}

func TestUpdateLicense_PricingLockedOnceSold(t *testing.T) {
	svc, db, node := newService(t)
	ctx := context.Background()

	tool, err := svc.CreateTool(ctx, domain.CreateToolInput{
		Name:        "DesignKit Pro",
		LoginMethod: domain.LoginMethodUserPassword,
	})
	require.NoError(t, err)

	license, err := svc.CreateLicense(ctx, domain.CreateLicenseInput{
		ToolID:       tool.ID,
		Name:         "Pro Monthly",
		DurationDays: 30,
		PriceCents:   1500,
		Currency:     "USD",
	})
	require.NoError(t, err)

	newPrice := int64(1800)
	updated, err := svc.UpdateLicense(ctx, license.ID, domain.UpdateLicenseInput{PriceCents: &newPrice})
	require.NoError(t, err)
	assert.Equal(t, int64(1800), updated.PriceCents)

	err = db.Exec(
		`INSERT INTO order_lines (id, order_id, tool_id, license_id, tool_name, license_name, unit_price_cents, currency, duration_days, quantity)
		 VALUES (?, ?, ?, ?, 'DesignKit Pro', 'Pro Monthly', 1800, 'USD', 30, 1)`,
		node.Generate(), node.Generate(), tool.ID, license.ID,
	).Error
	require.NoError(t, err)

	newPrice = 2000
	_, err = svc.UpdateLicense(ctx, license.ID, domain.UpdateLicenseInput{PriceCents: &newPrice})
	assert.ErrorIs(t, err, domain.ErrLicenseReferenced)

	newDuration := 60
	_, err = svc.UpdateLicense(ctx, license.ID, domain.UpdateLicenseInput{DurationDays: &newDuration})
	assert.ErrorIs(t, err, domain.ErrLicenseReferenced)

	name := "Pro Monthly (Legacy)"
	updated, err = svc.UpdateLicense(ctx, license.ID, domain.UpdateLicenseInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Pro Monthly (Legacy)", updated.Name)
	assert.Equal(t, int64(1800), updated.PriceCents)
}

func TestGetToolBySlug_IncludesPlans(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	tool, err := svc.CreateTool(ctx, domain.CreateToolInput{
		Name:        "CodeScan API",
		LoginMethod: domain.LoginMethodToken,
	})
	require.NoError(t, err)

	for _, plan := range []struct {
		name  string
		days  int
		price int64
	}{
		{"Monthly", 30, 4900},
		{"Annual", 365, 49000},
	} {
		_, err := svc.CreateLicense(ctx, domain.CreateLicenseInput{
			ToolID:       tool.ID,
			Name:         plan.name,
			DurationDays: plan.days,
			PriceCents:   plan.price,
			Currency:     "USD",
		})
		require.NoError(t, err)
	}

	got, err := svc.GetToolBySlug(ctx, "codescan-api")
	require.NoError(t, err)
	require.Len(t, got.Licenses, 2)
	assert.Equal(t, "Monthly", got.Licenses[0].Name)
	assert.Equal(t, "Annual", got.Licenses[1].Name)

	_, err = svc.GetToolBySlug(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
}
