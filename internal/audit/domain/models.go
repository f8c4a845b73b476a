// Package domain contains the append-only audit trail.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog is one immutable record of a state-changing action.
type AuditLog struct {
	ID         snowflake.ID   `json:"id" gorm:"primaryKey"`
	ActorType  string         `json:"actor_type" gorm:"type:text;not null"`
	ActorID    string         `json:"actor_id" gorm:"type:text"`
	Action     string         `json:"action" gorm:"type:text;not null"`
	TargetType string         `json:"target_type" gorm:"type:text;not null"`
	TargetID   string         `json:"target_id" gorm:"type:text"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }

// Actor types.
const (
	ActorCustomer = "customer"
	ActorAdmin    = "admin"
	ActorGateway  = "gateway"
	ActorSystem   = "system"
)

// ListFilter narrows audit queries.
type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	Limit      int
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]AuditLog, error)
}

// Service records audit entries. Record never fails the caller's operation;
// write errors are logged and dropped.
type Service interface {
	Record(ctx context.Context, actorType, actorID, action, targetType, targetID string, metadata map[string]any)
	List(ctx context.Context, filter ListFilter) ([]AuditLog, error)
}
