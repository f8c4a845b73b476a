// Package domain contains persistence models for the tool catalog.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// LoginMethod determines which credential fields a tool's license accounts
// carry.
type LoginMethod string

const (
	LoginMethodToken        LoginMethod = "TOKEN"
	LoginMethodUserPassword LoginMethod = "USER_PASSWORD"
)

func (m LoginMethod) Valid() bool {
	switch m {
	case LoginMethodToken, LoginMethodUserPassword:
		return true
	default:
		return false
	}
}

// Tool is a catalog entry for a third-party product whose licenses are sold.
type Tool struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"type:text;not null"`
	Slug        string       `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	LoginMethod LoginMethod  `json:"login_method" gorm:"type:text;not null"`
	Description string       `json:"description" gorm:"type:text"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Tool) TableName() string { return "tools" }

// License is a purchasable time-boxed plan for a tool. Price and duration are
// snapshotted onto order lines at checkout; a plan referenced by an order
// line must not be repriced in place.
type License struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	ToolID       snowflake.ID `json:"tool_id" gorm:"not null;index"`
	Name         string       `json:"name" gorm:"type:text;not null"`
	DurationDays int          `json:"duration_days" gorm:"not null"`
	PriceCents   int64        `json:"price_cents" gorm:"not null"`
	Currency     string       `json:"currency" gorm:"type:text;not null"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (License) TableName() string { return "licenses" }
