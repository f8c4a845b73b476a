// Package scheduler runs the expiry sweeper: a periodic scan that flips
// ACTIVE license accounts past their renewal grace window to EXPIRED so
// they can never be resold.
package scheduler

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/smallbiznis/toolvault/internal/audit/domain"
	"github.com/smallbiznis/toolvault/internal/clock"
	"github.com/smallbiznis/toolvault/internal/config"
	pooldomain "github.com/smallbiznis/toolvault/internal/licensepool/domain"
	"github.com/smallbiznis/toolvault/internal/observability/metrics"
	"github.com/smallbiznis/toolvault/internal/ratelimit"
)

const sweepLockKey = "toolvault:expiry_sweep"

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Policy *config.FulfillmentPolicyHolder
	Repo   pooldomain.Repository
	Audit  auditdomain.Service
	Locker *ratelimit.Locker `optional:"true"`
}

type Sweeper struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	policy *config.FulfillmentPolicyHolder
	repo   pooldomain.Repository
	audit  auditdomain.Service
	locker *ratelimit.Locker

	stop chan struct{}
	done chan struct{}
}

func NewSweeper(p Params) *Sweeper {
	return &Sweeper{
		db:     p.DB,
		log:    p.Log.Named("scheduler.sweeper"),
		clock:  p.Clock,
		policy: p.Policy,
		repo:   p.Repo,
		audit:  p.Audit,
		locker: p.Locker,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// RunOnce executes a single sweep and returns how many accounts expired.
// Batches keep each transaction short so reservations are not starved.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	policy := s.policy.Get()
	runID := ulid.Make().String()
	// Accounts stay usable for the grace window past their end date, so
	// the cutoff trails the clock by RenewalGraceDays.
	cutoff := s.clock.Now().AddDate(0, 0, -policy.RenewalGraceDays)

	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, sweepLockKey, 2*policy.SweepInterval)
		if err != nil {
			metrics.Fulfillment().RecordSweepRun("lock_error", 0)
			return 0, err
		}
		if !ok {
			s.log.Debug("sweep skipped, another replica holds the lock", zap.String("run_id", runID))
			metrics.Fulfillment().RecordSweepRun("skipped", 0)
			return 0, nil
		}
		defer func() {
			if err := s.locker.Release(ctx, sweepLockKey, token); err != nil {
				s.log.Warn("sweep lock release failed", zap.String("run_id", runID), zap.Error(err))
			}
		}()
	}

	var total int64
	for {
		var batch int
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ids, err := s.repo.ExpireBatch(ctx, tx, cutoff, policy.SweepBatchSize)
			if err != nil {
				return err
			}
			batch = len(ids)
			return nil
		})
		if err != nil {
			metrics.Fulfillment().RecordSweepRun("error", total)
			return total, err
		}
		total += int64(batch)
		if batch < policy.SweepBatchSize {
			break
		}
	}

	metrics.Fulfillment().RecordSweepRun("ok", total)
	if total > 0 {
		s.log.Info("expiry sweep completed",
			zap.String("run_id", runID),
			zap.Int64("expired", total),
		)
		s.audit.Record(ctx, auditdomain.ActorSystem, "", "pool.sweep", "sweep_run", runID,
			map[string]any{"expired": total})
	}
	return total, nil
}

func (s *Sweeper) loop() {
	defer close(s.done)
	for {
		interval := s.policy.Get().SweepInterval
		select {
		case <-s.stop:
			return
		case <-time.After(interval):
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Error("expiry sweep failed", zap.Error(err))
		}
		cancel()
	}
}

// Module starts the sweeper with the application lifecycle.
var Module = fx.Module("scheduler",
	fx.Provide(NewSweeper),
	fx.Invoke(func(lc fx.Lifecycle, s *Sweeper) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go s.loop()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				close(s.stop)
				select {
				case <-s.done:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		})
	}),
)
