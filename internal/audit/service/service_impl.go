package service

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/toolvault/internal/audit/domain"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
	Log  *zap.Logger
	Repo domain.Repository
}

type service struct {
	db   *gorm.DB
	node *snowflake.Node
	log  *zap.Logger
	repo domain.Repository
}

// NewService builds the audit service.
func NewService(p Params) domain.Service {
	return &service{
		db:   p.DB,
		node: p.Node,
		log:  p.Log.Named("audit.service"),
		repo: p.Repo,
	}
}

func (s *service) Record(ctx context.Context, actorType, actorID, action, targetType, targetID string, metadata map[string]any) {
	entry := &domain.AuditLog{
		ID:         s.node.Generate(),
		ActorType:  actorType,
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
	}
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			s.log.Warn("audit metadata not serializable", zap.String("action", action), zap.Error(err))
		} else {
			entry.Metadata = raw
		}
	}

	if err := s.repo.Create(ctx, s.db, entry); err != nil {
		s.log.Error("audit write failed",
			zap.String("action", action),
			zap.String("target_type", targetType),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
	}
}

func (s *service) List(ctx context.Context, filter domain.ListFilter) ([]domain.AuditLog, error) {
	return s.repo.List(ctx, s.db, filter)
}
