package scheduler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/smallbiznis/toolvault/internal/audit/domain"
	"github.com/smallbiznis/toolvault/internal/clock"
	"github.com/smallbiznis/toolvault/internal/config"
	pooldomain "github.com/smallbiznis/toolvault/internal/licensepool/domain"
	poolrepository "github.com/smallbiznis/toolvault/internal/licensepool/repository"
	poolservice "github.com/smallbiznis/toolvault/internal/licensepool/service"
)

var testDBSeq int

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testDBSeq++
	dsn := fmt.Sprintf("file:sweeptest_%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	stripForUpdate := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", stripForUpdate)
	db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", stripForUpdate)

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec(`
		CREATE TABLE license_accounts (
			id INTEGER PRIMARY KEY,
			license_id INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			used BOOLEAN NOT NULL DEFAULT FALSE,
			token TEXT,
			username TEXT,
			password TEXT,
			order_line_id INTEGER,
			start_date DATETIME,
			end_date DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`).Error; err != nil {
		t.Fatalf("create license_accounts table: %v", err)
	}
	return db
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, string, string, string, string, string, map[string]any) {}
func (noopAudit) List(context.Context, auditdomain.ListFilter) ([]auditdomain.AuditLog, error) {
	return nil, nil
}

func newSweeperFixture(t *testing.T) (*Sweeper, pooldomain.Service, *gorm.DB, *snowflake.Node, *clock.FakeClock) {
	t.Helper()

	db := openTestDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	policy, err := config.NewFulfillmentPolicyHolder(config.Config{})
	if err != nil {
		t.Fatalf("policy holder: %v", err)
	}

	repo := poolrepository.New()
	pool := poolservice.NewService(poolservice.Params{
		DB: db, Node: node, Log: zap.NewNop(), Repo: repo, Catalog: nil, Policy: policy,
	})
	sweeper := NewSweeper(Params{
		DB: db, Log: zap.NewNop(), Clock: fakeClock,
		Policy: policy, Repo: repo, Audit: noopAudit{},
	})
	return sweeper, pool, db, node, fakeClock
}

func seedAssigned(t *testing.T, db *gorm.DB, pool pooldomain.Service, node *snowflake.Node, start time.Time, days int) snowflake.ID {
	t.Helper()

	licenseID := node.Generate()
	accountID := node.Generate()
	if err := db.Exec(`INSERT INTO license_accounts (id, license_id, status, used, token) VALUES (?, ?, 'PENDING', FALSE, 'tok')`,
		accountID, licenseID).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	if _, err := pool.Reserve(context.Background(), nil, pooldomain.ReserveInput{
		LicenseID: licenseID, OrderLineID: node.Generate(), Quantity: 1,
		StartDate: start, DurationDays: days,
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	return accountID
}

func accountStatus(t *testing.T, db *gorm.DB, id snowflake.ID) string {
	t.Helper()
	var status string
	if err := db.Raw(`SELECT status FROM license_accounts WHERE id = ?`, id).Scan(&status).Error; err != nil {
		t.Fatalf("read status: %v", err)
	}
	return status
}

func TestSweeper_ExpiresOverdueAssignments(t *testing.T) {
	sweeper, pool, db, node, fakeClock := newSweeperFixture(t)
	start := fakeClock.Now()

	shortID := seedAssigned(t, db, pool, node, start, 30)
	longID := seedAssigned(t, db, pool, node, start, 90)

	// Nothing is due yet.
	expired, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if expired != 0 {
		t.Fatalf("expected no expiries on day 0, got %d", expired)
	}

	// Day 31: the 30-day assignment is past its end date but still
	// inside the 7-day renewal grace window.
	fakeClock.Advance(31 * 24 * time.Hour)
	expired, err = sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if expired != 0 {
		t.Fatalf("expected no expiries inside the grace window, got %d", expired)
	}
	if got := accountStatus(t, db, shortID); got != "ACTIVE" {
		t.Errorf("account must stay ACTIVE through the grace window, got %s", got)
	}

	// Day 38: the grace window has run out for the 30-day assignment,
	// the 90-day one survives.
	fakeClock.Advance(7 * 24 * time.Hour)
	expired, err = sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expiry, got %d", expired)
	}
	if got := accountStatus(t, db, shortID); got != "EXPIRED" {
		t.Errorf("expected EXPIRED, got %s", got)
	}
	if got := accountStatus(t, db, longID); got != "ACTIVE" {
		t.Errorf("90-day assignment should stay ACTIVE, got %s", got)
	}

	// Sweeping again is a no-op.
	expired, err = sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("repeat sweep: %v", err)
	}
	if expired != 0 {
		t.Errorf("expected idempotent sweep, got %d", expired)
	}
}

func TestSweeper_ExpiredAccountsAreNotSellable(t *testing.T) {
	sweeper, pool, db, node, fakeClock := newSweeperFixture(t)
	start := fakeClock.Now()

	accountID := seedAssigned(t, db, pool, node, start, 30)

	// The order line is torn down and the account returned, then it sits
	// unsold past its window.
	if err := pool.Release(context.Background(), nil, accountID, pooldomain.AccountStatusPending); err != nil {
		t.Fatalf("release: %v", err)
	}

	var licenseID snowflake.ID
	if err := db.Raw(`SELECT license_id FROM license_accounts WHERE id = ?`, accountID).Scan(&licenseID).Error; err != nil {
		t.Fatalf("read license: %v", err)
	}

	// Reassign and let it lapse.
	if _, err := pool.Reserve(context.Background(), nil, pooldomain.ReserveInput{
		LicenseID: licenseID, OrderLineID: node.Generate(), Quantity: 1,
		StartDate: start, DurationDays: 30,
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	fakeClock.Advance(40 * 24 * time.Hour)
	if _, err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	available, err := pool.CountAvailable(context.Background(), licenseID)
	if err != nil {
		t.Fatalf("count available: %v", err)
	}
	if available != 0 {
		t.Errorf("expired account must not count as sellable, got %d", available)
	}
}

func TestSweeper_BatchesLargeBacklogs(t *testing.T) {
	sweeper, pool, db, node, fakeClock := newSweeperFixture(t)
	start := fakeClock.Now()

	// More overdue accounts than one sweep batch.
	batch := sweeper.policy.Get().SweepBatchSize
	total := batch + 3
	for i := 0; i < total; i++ {
		seedAssigned(t, db, pool, node, start, 1)
	}

	fakeClock.Advance(9 * 24 * time.Hour)
	expired, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if expired != int64(total) {
		t.Fatalf("expected %d expiries across batches, got %d", total, expired)
	}
}
