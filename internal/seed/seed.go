// Package seed provisions a demo catalog so a fresh install has something
// to sell. Used outside production only.
package seed

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	catalogdomain "github.com/smallbiznis/toolvault/internal/catalog/domain"
)

type demoTool struct {
	name        string
	loginMethod catalogdomain.LoginMethod
	description string
	plans       []demoPlan
}

type demoPlan struct {
	name         string
	durationDays int
	priceCents   int64
	stock        int
}

var demoCatalog = []demoTool{
	{
		name:        "DesignKit Pro",
		loginMethod: catalogdomain.LoginMethodUserPassword,
		description: "Collaborative interface design suite.",
		plans: []demoPlan{
			{name: "Monthly", durationDays: 30, priceCents: 1500, stock: 10},
			{name: "Annual", durationDays: 365, priceCents: 14400, stock: 5},
		},
	},
	{
		name:        "CodeScan API",
		loginMethod: catalogdomain.LoginMethodToken,
		description: "Static analysis as a service.",
		plans: []demoPlan{
			{name: "Starter", durationDays: 30, priceCents: 900, stock: 20},
		},
	},
}

// EnsureDemoCatalog inserts the demo tools, plans and pool stock once.
// Re-running against a populated catalog is a no-op.
func EnsureDemoCatalog(db *gorm.DB) error {
	var count int64
	if err := db.Raw(`SELECT COUNT(1) FROM tools`).Scan(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	node, err := snowflake.NewNode(1023)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, tool := range demoCatalog {
			toolID := node.Generate()
			if err := tx.Exec(
				`INSERT INTO tools (id, name, slug, login_method, description) VALUES (?, ?, ?, ?, ?)`,
				toolID, tool.name, slug.Make(tool.name), tool.loginMethod, tool.description,
			).Error; err != nil {
				return err
			}

			for _, plan := range tool.plans {
				licenseID := node.Generate()
				if err := tx.Exec(
					`INSERT INTO licenses (id, tool_id, name, duration_days, price_cents, currency) VALUES (?, ?, ?, ?, ?, 'USD')`,
					licenseID, toolID, plan.name, plan.durationDays, plan.priceCents,
				).Error; err != nil {
					return err
				}

				for i := 0; i < plan.stock; i++ {
					accountID := node.Generate()
					var insertErr error
					switch tool.loginMethod {
					case catalogdomain.LoginMethodToken:
						insertErr = tx.Exec(
							`INSERT INTO license_accounts (id, license_id, status, used, token) VALUES (?, ?, 'PENDING', FALSE, ?)`,
							accountID, licenseID, "demo-"+accountID.String(),
						).Error
					default:
						insertErr = tx.Exec(
							`INSERT INTO license_accounts (id, license_id, status, used, username, password) VALUES (?, ?, 'PENDING', FALSE, ?, ?)`,
							accountID, licenseID, "demo+"+accountID.String()+"@example.com", "demo-"+accountID.String(),
						).Error
					}
					if insertErr != nil {
						return insertErr
					}
				}
			}
		}
		return nil
	})
}
