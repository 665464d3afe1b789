package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/postpilot-io/postpilot/internal/config"
	"github.com/postpilot-io/postpilot/internal/reconcile"
)

const sweepBatchSize = 20

// Scheduler runs the periodic background work: a reconciliation sweep over
// stale LinkedIn publications and the analytics task drain. Publish
// retries are deliberately not here; the engine only classifies
// retryability and leaves retry timing to whoever schedules publishes.
type Scheduler struct {
	config     *config.SchedulerConfig
	logger     *zap.Logger
	reconciler *reconcile.Reconciler
	collector  *AnalyticsCollector
	store      *Store
	stopCh     chan struct{}
}

func NewScheduler(cfg *config.SchedulerConfig, logger *zap.Logger, reconciler *reconcile.Reconciler, collector *AnalyticsCollector, store *Store) *Scheduler {
	return &Scheduler{
		config:     cfg,
		logger:     logger,
		reconciler: reconciler,
		collector:  collector,
		store:      store,
		stopCh:     make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	reconcileInterval, err := time.ParseDuration(s.config.ReconcileInterval)
	if err != nil {
		s.logger.Error("Invalid reconcile interval", zap.String("interval", s.config.ReconcileInterval), zap.Error(err))
		return err
	}
	analyticsInterval, err := time.ParseDuration(s.config.AnalyticsInterval)
	if err != nil {
		s.logger.Error("Invalid analytics interval", zap.String("interval", s.config.AnalyticsInterval), zap.Error(err))
		return err
	}

	s.logger.Info("Starting scheduler",
		zap.String("reconcile_interval", s.config.ReconcileInterval),
		zap.String("analytics_interval", s.config.AnalyticsInterval))

	go s.loop(ctx, reconcileInterval, s.runReconcileSweep, "reconcile sweep")
	go s.loop(ctx, analyticsInterval, s.runAnalyticsDrain, "analytics drain")

	return nil
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.logger.Info("Scheduler shutdown completed")
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, run func(context.Context), name string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			run(ctx)
			s.logger.Debug("Scheduled run completed",
				zap.String("task", name),
				zap.Duration("duration", time.Since(start)))
		case <-s.stopCh:
			s.logger.Info("Scheduler loop stopped", zap.String("task", name))
			return
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled", zap.String("task", name))
			return
		}
	}
}

// runReconcileSweep re-verifies the publications most in need of it.
// LinkedIn is the only platform without a trustworthy deletion signal, so
// the sweep targets it; other platforms are reconciled on demand.
func (s *Scheduler) runReconcileSweep(ctx context.Context) {
	pubs, err := s.store.StalePublications(ctx, "linkedin", sweepBatchSize)
	if err != nil {
		s.logger.Error("Reconcile sweep failed to list publications", zap.Error(err))
		return
	}

	for i := range pubs {
		pub := &pubs[i]
		outcome, err := s.reconciler.Reconcile(ctx, pub.PostID, pub.ID)
		if errors.Is(err, reconcile.ErrUncertain) {
			// Inconclusive sweeps wait for an operator; the API surfaces
			// the pending confirmation.
			s.logger.Warn("Sweep left publication unresolved",
				zap.String("publication_id", pub.ID),
				zap.Float64("exists_percentage", outcome.ExistsPercentage))
			continue
		}
		if err != nil {
			s.logger.Error("Sweep reconciliation failed",
				zap.String("publication_id", pub.ID),
				zap.Error(err))
		}
	}
}

func (s *Scheduler) runAnalyticsDrain(ctx context.Context) {
	if err := s.collector.Collect(ctx); err != nil {
		s.logger.Error("Analytics drain failed", zap.Error(err))
	}
}
