package service

import (
	"context"
	"sync"
	"time"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"go.uber.org/zap"
)

const defaultExpireInterval = 10 * time.Minute

// PauseExpirer sweeps paused interventions whose pause has outlived the
// timeout and abandons them through the orchestrator, so the pattern
// re-queues exactly as it would on an explicit abandon.
type PauseExpirer struct {
	interventions domain.InterventionStore
	orchestrator  *OrchestratorService
	timeout       time.Duration
	logger        *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewPauseExpirer(is domain.InterventionStore, orch *OrchestratorService, cfg Config, logger *zap.Logger) *PauseExpirer {
	return &PauseExpirer{
		interventions: is,
		orchestrator:  orch,
		timeout:       cfg.PauseTimeout,
		logger:        logger,
		interval:      defaultExpireInterval,
		stopCh:        make(chan struct{}),
	}
}

func (e *PauseExpirer) SetInterval(d time.Duration) {
	e.interval = d
}

func (e *PauseExpirer) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		e.logger.Info("pause expirer started", zap.Duration("interval", e.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				e.RunSweep(ctx)
				cancel()
			case <-e.stopCh:
				e.logger.Info("pause expirer stopped")
				return
			}
		}
	}()
}

func (e *PauseExpirer) Stop() {
	close(e.stopCh)
	e.wg.Wait()
}

// RunSweep abandons every intervention paused longer than the timeout.
// Returns the number abandoned.
func (e *PauseExpirer) RunSweep(ctx context.Context) int {
	cutoff := time.Now().Add(-e.timeout)
	expired, err := e.interventions.ListPausedBefore(ctx, cutoff)
	if err != nil {
		e.logger.Error("pause sweep failed", zap.Error(err))
		return 0
	}

	abandoned := 0
	for i := range expired {
		if err := e.orchestrator.Abandon(ctx, expired[i].ID); err != nil {
			e.logger.Warn("failed to abandon expired intervention",
				zap.String("intervention_id", expired[i].ID.String()),
				zap.Error(err))
			continue
		}
		abandoned++
	}

	if abandoned > 0 {
		e.logger.Info("expired paused interventions abandoned", zap.Int("count", abandoned))
	}
	return abandoned
}
