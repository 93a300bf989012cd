package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetentionSweeper periodically deletes engagement events older than the
// retention window.
type RetentionSweeper struct {
	store     EngagementStore
	retention time.Duration
	every     time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewRetentionSweeper(store EngagementStore, retention, every time.Duration, logger *zap.Logger) *RetentionSweeper {
	return &RetentionSweeper{
		store:     store,
		retention: retention,
		every:     every,
		logger:    logger,
		now:       time.Now,
	}
}

// Sweep deletes everything recorded before now minus the retention window.
func (s *RetentionSweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.retention)
	n, err := s.store.DeleteEngagementsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Retention sweep finished", zap.Time("cutoff", cutoff), zap.Int64("deleted", n))
	return n, nil
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *RetentionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("Retention sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
