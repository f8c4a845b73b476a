// Package domain records paid extensions of assigned license accounts.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrInvalidAmount = errors.New("invalid_amount")

// Renewal is one paid extension of an assignment's validity window.
type Renewal struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	AccountID       snowflake.ID `json:"account_id" gorm:"not null;index"`
	PreviousEndDate time.Time    `json:"previous_end_date" gorm:"not null"`
	NewEndDate      time.Time    `json:"new_end_date" gorm:"not null"`
	AmountPaidCents int64        `json:"amount_paid_cents" gorm:"not null"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Renewal) TableName() string { return "renewals" }

// RenewInput extends one assignment. NewEndDate must be strictly after the
// account's current end date; AmountPaidCents may be zero for goodwill
// extensions but never negative. The credential fields are optional and
// rotate the stored secret alongside the extension; when supplied they must
// match the tool's login method.
type RenewInput struct {
	AccountID       snowflake.ID `json:"account_id,string" binding:"required"`
	NewEndDate      time.Time    `json:"new_end_date" binding:"required"`
	AmountPaidCents int64        `json:"amount_paid_cents"`
	Token           string       `json:"token"`
	Username        string       `json:"username"`
	Password        string       `json:"password"`
}

type Service interface {
	Renew(ctx context.Context, actorID string, input RenewInput) (*Renewal, error)
	ListByAccount(ctx context.Context, accountID snowflake.ID) ([]Renewal, error)
}
