// Package domain defines the pool of provisioned license accounts and the
// reservation contract over it.
package domain

import (
	"database/sql"
	"time"

	"github.com/bwmarrin/snowflake"
)

// AccountStatus is the lifecycle state of a provisioned credential.
type AccountStatus string

const (
	// AccountStatusPending marks a credential provisioned but not yet sold,
	// or returned to the pool after a failed order, awaiting
	// re-verification.
	AccountStatusPending AccountStatus = "PENDING"
	// AccountStatusActive marks a credential assigned to a fulfilled order
	// line with a running validity window.
	AccountStatusActive AccountStatus = "ACTIVE"
	// AccountStatusExpired marks a credential whose validity window has
	// passed. Expired accounts are never reserved.
	AccountStatusExpired AccountStatus = "EXPIRED"
)

// LicenseAccount is one sellable credential for a license plan. Exactly one
// of Token or Username/Password is populated depending on the tool's login
// method.
type LicenseAccount struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey"`
	LicenseID   snowflake.ID   `json:"license_id" gorm:"not null;index"`
	Status      AccountStatus  `json:"status" gorm:"type:text;not null;default:PENDING"`
	Used        bool           `json:"used" gorm:"not null;default:false"`
	Token       sql.NullString `json:"-" gorm:"type:text"`
	Username    sql.NullString `json:"-" gorm:"type:text"`
	Password    sql.NullString `json:"-" gorm:"type:text"`
	OrderLineID sql.NullInt64  `json:"order_line_id,omitempty"`
	StartDate   sql.NullTime   `json:"start_date,omitempty"`
	EndDate     sql.NullTime   `json:"end_date,omitempty"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LicenseAccount) TableName() string { return "license_accounts" }

// Credential returns the typed credential stored on the account.
func (a *LicenseAccount) Credential() Credential {
	if a.Token.Valid {
		return TokenCredential{Token: a.Token.String}
	}
	return PasswordCredential{Username: a.Username.String, Password: a.Password.String}
}

// Credential is the sealed union of supported credential shapes.
type Credential interface {
	credential()
}

// TokenCredential is an API-key style secret.
type TokenCredential struct {
	Token string `json:"token"`
}

func (TokenCredential) credential() {}

// PasswordCredential is a username and password pair.
type PasswordCredential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (PasswordCredential) credential() {}

// Assignment is the result of reserving one account for an order line,
// including the computed validity window.
type Assignment struct {
	AccountID   snowflake.ID `json:"account_id"`
	LicenseID   snowflake.ID `json:"license_id"`
	OrderLineID snowflake.ID `json:"order_line_id"`
	StartDate   time.Time    `json:"start_date"`
	EndDate     time.Time    `json:"end_date"`
}
