package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/Harshitk-cp/reframe/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInterventionDeferred means the subject is in crisis-level distress and
// the interruption must wait; it is a refusal, not a failure.
var ErrInterventionDeferred = errors.New("intervention deferred")

// keyedMutex hands out one mutex per entity id. Entries are never evicted;
// the map is bounded by the number of live entities.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func (k *keyedMutex) get(id uuid.UUID) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	return m
}

// OrchestratorService drives the five-phase intervention state machine. It is
// the only writer of intervention phase and status; every entity that rides a
// transition commits in the same transaction as the transition itself.
type OrchestratorService struct {
	stores domain.Stores
	uow    domain.UnitOfWork

	captures      *CaptureService
	recon         *ReconsolidationService
	rewrites      *RewriteService
	verification  *VerificationService
	consolidation *ConsolidationService

	cfg    Config
	logger *zap.Logger

	patternLocks      keyedMutex
	interventionLocks keyedMutex
	now               func() time.Time
}

func NewOrchestratorService(
	stores domain.Stores,
	uow domain.UnitOfWork,
	captures *CaptureService,
	recon *ReconsolidationService,
	rewrites *RewriteService,
	verification *VerificationService,
	consolidation *ConsolidationService,
	cfg Config,
	logger *zap.Logger,
) *OrchestratorService {
	return &OrchestratorService{
		stores:        stores,
		uow:           uow,
		captures:      captures,
		recon:         recon,
		rewrites:      rewrites,
		verification:  verification,
		consolidation: consolidation,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// Start opens a new intervention for the pattern at the interrupt phase and
// activates the pattern. Refuses when another run is already in flight for
// the same pattern, or when the latest capture signals crisis-level
// intensity.
func (s *OrchestratorService) Start(ctx context.Context, patternID uuid.UUID) (*domain.Intervention, error) {
	lock := s.patternLocks.get(patternID)
	lock.Lock()
	defer lock.Unlock()

	pattern, err := s.stores.Patterns.GetByID(ctx, patternID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPatternNotFound
		}
		return nil, err
	}

	if _, err := s.stores.Interventions.GetActiveByPattern(ctx, patternID); err == nil {
		return nil, &domain.StateConflictError{Reason: "pattern already has an intervention in flight"}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	latest, err := s.stores.Captures.LatestByPattern(ctx, patternID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if latest != nil && latest.EmotionalIntensity >= CrisisIntensity {
		return nil, ErrInterventionDeferred
	}

	if !pattern.Status.CanTransitionTo(domain.PatternActive) {
		return nil, &domain.StateConflictError{Reason: "pattern status " + string(pattern.Status) + " cannot activate"}
	}

	intervention := &domain.Intervention{
		PatternID: patternID,
		Phase:     domain.PhaseInterrupt,
		Status:    domain.InterventionActive,
	}
	err = s.uow.InTx(ctx, func(tx domain.Stores) error {
		if err := tx.Interventions.Create(ctx, intervention); err != nil {
			return err
		}
		return tx.Patterns.UpdateStatus(ctx, patternID, domain.PatternActive)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("intervention started",
		zap.String("intervention_id", intervention.ID.String()),
		zap.String("pattern_id", patternID.String()))
	return intervention, nil
}

// AdvanceToCapture acknowledges the interrupt and moves to guided capture,
// stamping the moment engagement actually began.
func (s *OrchestratorService) AdvanceToCapture(ctx context.Context, id uuid.UUID) (*domain.Intervention, error) {
	lock := s.interventionLocks.get(id)
	lock.Lock()
	defer lock.Unlock()

	iv, err := s.activeAtPhase(ctx, id, domain.PhaseInterrupt)
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.uow.InTx(ctx, func(tx domain.Stores) error {
		if err := tx.Interventions.AdvancePhase(ctx, id, domain.PhaseInterrupt, domain.PhaseCapture); err != nil {
			return err
		}
		return tx.Interventions.MarkStarted(ctx, id, now)
	})
	if err != nil {
		return nil, s.conflictOr(err, iv.Phase)
	}
	return s.stores.Interventions.GetByID(ctx, id)
}

// SubmitCapture validates the five-window capture and commits it together
// with the capture → mismatch advance.
func (s *OrchestratorService) SubmitCapture(ctx context.Context, in CaptureInput) (*domain.FiveWindowCapture, error) {
	lock := s.interventionLocks.get(in.InterventionID)
	lock.Lock()
	defer lock.Unlock()

	iv, err := s.activeAtPhase(ctx, in.InterventionID, domain.PhaseCapture)
	if err != nil {
		return nil, err
	}

	capture, err := s.captures.Build(in)
	if err != nil {
		return nil, err
	}

	err = s.uow.InTx(ctx, func(tx domain.Stores) error {
		if err := tx.Captures.Create(ctx, capture); err != nil {
			return err
		}
		return tx.Interventions.AdvancePhase(ctx, in.InterventionID, domain.PhaseCapture, domain.PhaseMismatch)
	})
	if err != nil {
		return nil, s.conflictOr(err, iv.Phase)
	}

	s.logger.Info("capture committed",
		zap.String("intervention_id", in.InterventionID.String()),
		zap.String("capture_id", capture.ID.String()),
		zap.Bool("turning_point", capture.TurningPoint))
	return capture, nil
}

// ComputeMismatch scores the prediction error for the latest capture. A
// significant error opens the reconsolidation window and advances to the
// rewrite phase; an insignificant one burns a retry and abandons the run at
// the retry ceiling.
func (s *OrchestratorService) ComputeMismatch(ctx context.Context, id uuid.UUID) (*domain.PredictionError, error) {
	lock := s.interventionLocks.get(id)
	lock.Lock()
	defer lock.Unlock()

	iv, err := s.activeAtPhase(ctx, id, domain.PhaseMismatch)
	if err != nil {
		return nil, err
	}

	capture, err := s.stores.Captures.LatestByIntervention(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCaptureNotFound
		}
		return nil, err
	}

	pe, err := s.recon.Compute(capture)
	if err != nil {
		return nil, err
	}

	if pe.Significant(s.cfg.SignificanceThreshold) {
		err = s.uow.InTx(ctx, func(tx domain.Stores) error {
			if err := tx.Predictions.Create(ctx, pe); err != nil {
				return err
			}
			return tx.Interventions.AdvancePhase(ctx, id, domain.PhaseMismatch, domain.PhaseRewrite)
		})
		if err != nil {
			return nil, s.conflictOr(err, iv.Phase)
		}
		s.logger.Info("reconsolidation window opened",
			zap.String("intervention_id", id.String()),
			zap.Float64("error_magnitude", pe.ErrorMagnitude),
			zap.Time("window_expires_at", pe.WindowExpiresAt))
		return pe, nil
	}

	if err := s.stores.Predictions.Create(ctx, pe); err != nil {
		return nil, err
	}
	retries, err := s.stores.Interventions.IncrementMismatchRetries(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("mismatch below significance",
		zap.String("intervention_id", id.String()),
		zap.Float64("error_magnitude", pe.ErrorMagnitude),
		zap.Int("retries", retries))

	if retries >= s.cfg.MismatchRetryLimit {
		if err := s.abandonTx(ctx, iv); err != nil {
			return nil, err
		}
		s.logger.Warn("intervention abandoned at mismatch retry ceiling",
			zap.String("intervention_id", id.String()))
	}
	return pe, nil
}

// SubmitRewrite commits a belief rewrite together with the rewrite →
// verification advance. When the reconsolidation window has already expired
// the rewrite is refused outright and the run is sent back to the capture
// phase; the window is never quietly extended.
func (s *OrchestratorService) SubmitRewrite(ctx context.Context, in RewriteInput) (*domain.BeliefRewrite, error) {
	lock := s.interventionLocks.get(in.InterventionID)
	lock.Lock()
	defer lock.Unlock()

	iv, err := s.activeAtPhase(ctx, in.InterventionID, domain.PhaseRewrite)
	if err != nil {
		return nil, err
	}

	pe, err := s.stores.Predictions.LatestByIntervention(ctx, in.InterventionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPredictionNotFound
		}
		return nil, err
	}
	if !pe.WindowOpen(s.now()) {
		if err := s.uow.InTx(ctx, func(tx domain.Stores) error {
			return tx.Interventions.AdvancePhase(ctx, in.InterventionID, domain.PhaseRewrite, domain.PhaseCapture)
		}); err != nil {
			return nil, s.conflictOr(err, iv.Phase)
		}
		s.logger.Warn("reconsolidation window expired, replaying capture",
			zap.String("intervention_id", in.InterventionID.String()),
			zap.Time("window_expired_at", pe.WindowExpiresAt))
		return nil, &domain.StateConflictError{
			CurrentPhase: domain.PhaseCapture,
			Reason:       "reconsolidation window expired",
		}
	}

	rewrite, err := s.rewrites.Build(in)
	if err != nil {
		return nil, err
	}

	err = s.uow.InTx(ctx, func(tx domain.Stores) error {
		if _, err := tx.Patterns.GetByID(ctx, in.OldBeliefID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrPatternNotFound
			}
			return err
		}
		if err := tx.Rewrites.Create(ctx, rewrite); err != nil {
			return err
		}
		return tx.Interventions.AdvancePhase(ctx, in.InterventionID, domain.PhaseRewrite, domain.PhaseVerification)
	})
	if err != nil {
		if errors.Is(err, ErrPatternNotFound) {
			return nil, err
		}
		return nil, s.conflictOr(err, iv.Phase)
	}

	s.logger.Info("belief rewrite committed",
		zap.String("intervention_id", in.InterventionID.String()),
		zap.String("rewrite_id", rewrite.ID.String()),
		zap.Float64("adaptiveness", rewrite.AdaptivenessScore),
		zap.Bool("usable", rewrite.Usable()))
	return rewrite, nil
}

// EncounterResult reports what one verification encounter did to the run.
type EncounterResult struct {
	Encounter      *domain.VerificationEncounter `json:"encounter"`
	SuccessRate    *float64                      `json:"success_rate,omitempty"`
	Completed      bool                          `json:"completed"`
	Resolved       bool                          `json:"resolved"`
	FollowUpQueued bool                          `json:"follow_up_queued"`
}

// RecordEncounter logs a verification encounter and, once enough encounters
// have accumulated, closes the run: the pattern resolves and consolidates
// into the belief graph when the new belief is winning, or re-queues for a
// follow-up intervention when it is not.
func (s *OrchestratorService) RecordEncounter(ctx context.Context, in EncounterInput) (*EncounterResult, error) {
	lock := s.interventionLocks.get(in.InterventionID)
	lock.Lock()
	defer lock.Unlock()

	iv, err := s.activeAtPhase(ctx, in.InterventionID, domain.PhaseVerification)
	if err != nil {
		return nil, err
	}

	if _, err := s.stores.Rewrites.GetByID(ctx, in.BeliefID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRewriteNotFound
		}
		return nil, err
	}

	encounter, outcome, err := s.verification.Build(in)
	if err != nil {
		return nil, err
	}

	err = s.uow.InTx(ctx, func(tx domain.Stores) error {
		if err := tx.Encounters.Create(ctx, encounter); err != nil {
			return err
		}
		return tx.Rewrites.RecordPrediction(ctx, in.BeliefID, outcome)
	})
	if err != nil {
		return nil, err
	}

	result := &EncounterResult{Encounter: encounter}

	rewrite, err := s.stores.Rewrites.GetByID(ctx, in.BeliefID)
	if err != nil {
		return nil, err
	}
	count, err := s.stores.Encounters.CountByBelief(ctx, in.BeliefID)
	if err != nil {
		return nil, err
	}
	rate, ok := rewrite.SuccessRate()
	if ok {
		result.SuccessRate = &rate
	}

	if count < s.cfg.MinVerificationEncounters || !ok {
		return result, nil
	}

	pattern, err := s.stores.Patterns.GetByID(ctx, iv.PatternID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	if rate >= s.cfg.SuccessRateTarget {
		err = s.uow.InTx(ctx, func(tx domain.Stores) error {
			if err := tx.Interventions.Complete(ctx, in.InterventionID, now); err != nil {
				return err
			}
			if err := tx.Patterns.UpdateStatus(ctx, iv.PatternID, domain.PatternResolved); err != nil {
				return err
			}
			return s.consolidation.Consolidate(ctx, tx, pattern, rewrite)
		})
		if err != nil {
			return nil, err
		}
		result.Completed = true
		result.Resolved = true
		s.logger.Info("intervention completed, pattern resolved",
			zap.String("intervention_id", in.InterventionID.String()),
			zap.String("pattern_id", iv.PatternID.String()),
			zap.Float64("success_rate", rate))
		return result, nil
	}

	err = s.uow.InTx(ctx, func(tx domain.Stores) error {
		if err := tx.Interventions.Complete(ctx, in.InterventionID, now); err != nil {
			return err
		}
		return tx.Patterns.UpdateStatus(ctx, iv.PatternID, domain.PatternQueued)
	})
	if err != nil {
		return nil, err
	}
	result.Completed = true
	result.FollowUpQueued = true
	s.logger.Info("intervention completed, follow-up queued",
		zap.String("intervention_id", in.InterventionID.String()),
		zap.String("pattern_id", iv.PatternID.String()),
		zap.Float64("success_rate", rate))
	return result, nil
}

// Pause suspends an active run on user disengagement. Only phases 2 through
// 4 pause; the interrupt is instantaneous and verification runs on its own
// clock.
func (s *OrchestratorService) Pause(ctx context.Context, id uuid.UUID) (*domain.Intervention, error) {
	lock := s.interventionLocks.get(id)
	lock.Lock()
	defer lock.Unlock()

	iv, err := s.getIntervention(ctx, id)
	if err != nil {
		return nil, err
	}
	if iv.Status != domain.InterventionActive {
		return nil, &domain.StateConflictError{CurrentPhase: iv.Phase, Reason: "only an active intervention can pause"}
	}
	if !domain.PausablePhase(iv.Phase) {
		return nil, &domain.StateConflictError{CurrentPhase: iv.Phase, Reason: "phase does not pause"}
	}

	if err := s.stores.Interventions.Pause(ctx, id, s.now()); err != nil {
		return nil, s.conflictOr(err, iv.Phase)
	}
	return s.stores.Interventions.GetByID(ctx, id)
}

// Resume reactivates a paused run at the phase it paused in. A pause older
// than the timeout abandons instead; stale state must not resume.
func (s *OrchestratorService) Resume(ctx context.Context, id uuid.UUID) (*domain.Intervention, error) {
	lock := s.interventionLocks.get(id)
	lock.Lock()
	defer lock.Unlock()

	iv, err := s.getIntervention(ctx, id)
	if err != nil {
		return nil, err
	}
	if iv.Status != domain.InterventionPaused {
		return nil, &domain.StateConflictError{CurrentPhase: iv.Phase, Reason: "only a paused intervention can resume"}
	}

	if iv.PausedAt != nil && s.now().Sub(*iv.PausedAt) > s.cfg.PauseTimeout {
		if err := s.abandonTx(ctx, iv); err != nil {
			return nil, err
		}
		return nil, &domain.StateConflictError{CurrentPhase: iv.Phase, Reason: "pause timeout exceeded, intervention abandoned"}
	}

	if err := s.stores.Interventions.Resume(ctx, id); err != nil {
		return nil, s.conflictOr(err, iv.Phase)
	}
	return s.stores.Interventions.GetByID(ctx, id)
}

// Abandon closes the run without completion and re-queues the pattern so a
// later intervention can pick it up.
func (s *OrchestratorService) Abandon(ctx context.Context, id uuid.UUID) error {
	lock := s.interventionLocks.get(id)
	lock.Lock()
	defer lock.Unlock()

	iv, err := s.getIntervention(ctx, id)
	if err != nil {
		return err
	}
	if iv.Status.Terminal() {
		return &domain.StateConflictError{CurrentPhase: iv.Phase, Reason: "intervention already " + string(iv.Status)}
	}
	return s.abandonTx(ctx, iv)
}

func (s *OrchestratorService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Intervention, error) {
	return s.getIntervention(ctx, id)
}

func (s *OrchestratorService) getIntervention(ctx context.Context, id uuid.UUID) (*domain.Intervention, error) {
	iv, err := s.stores.Interventions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInterventionNotFound
		}
		return nil, err
	}
	return iv, nil
}

// activeAtPhase loads the intervention and checks it is active at exactly the
// expected phase. Anything else is a state conflict carrying the phase the
// run is actually in.
func (s *OrchestratorService) activeAtPhase(ctx context.Context, id uuid.UUID, want domain.Phase) (*domain.Intervention, error) {
	iv, err := s.getIntervention(ctx, id)
	if err != nil {
		return nil, err
	}
	if iv.Status != domain.InterventionActive {
		return nil, &domain.StateConflictError{CurrentPhase: iv.Phase, Reason: "intervention is " + string(iv.Status)}
	}
	if iv.Phase != want {
		return nil, &domain.StateConflictError{CurrentPhase: iv.Phase, Reason: "expected phase " + want.String()}
	}
	return iv, nil
}

// abandonTx abandons the run and re-queues its pattern in one transaction.
func (s *OrchestratorService) abandonTx(ctx context.Context, iv *domain.Intervention) error {
	now := s.now()
	return s.uow.InTx(ctx, func(tx domain.Stores) error {
		if err := tx.Interventions.Abandon(ctx, iv.ID, now); err != nil {
			return err
		}
		pattern, err := tx.Patterns.GetByID(ctx, iv.PatternID)
		if err != nil {
			return err
		}
		if pattern.Status == domain.PatternActive {
			return tx.Patterns.UpdateStatus(ctx, iv.PatternID, domain.PatternQueued)
		}
		return nil
	})
}

// conflictOr maps a store-level CAS failure to a state conflict at the given
// phase; other errors pass through.
func (s *OrchestratorService) conflictOr(err error, phase domain.Phase) error {
	if errors.Is(err, store.ErrConflict) {
		return &domain.StateConflictError{CurrentPhase: phase, Reason: "concurrent transition"}
	}
	return err
}
