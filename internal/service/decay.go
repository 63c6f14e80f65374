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

const (
	defaultDecayInterval = 1 * time.Hour
	decayScanPageSize    = 100
)

// DecayScanResult reports one pass of the background scan.
type DecayScanResult struct {
	Scanned  int `json:"scanned"`
	Archived int `json:"archived"`
}

// DecayService runs the periodic decay scan. Decay itself is a pure function
// of elapsed time (domain.WindowConfidenceAt); this service only reads and
// annotates confidence, so it never blocks or is blocked by phase
// transitions.
type DecayService struct {
	captures domain.CaptureStore
	logger   *zap.Logger
	floor    float64

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewDecayService(cs domain.CaptureStore, floor float64, logger *zap.Logger) *DecayService {
	return &DecayService{
		captures: cs,
		logger:   logger,
		floor:    floor,
		interval: defaultDecayInterval,
		stopCh:   make(chan struct{}),
	}
}

func (s *DecayService) SetInterval(d time.Duration) {
	s.interval = d
}

func (s *DecayService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("decay scanner started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				s.RunScan(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("decay scanner stopped")
				return
			}
		}
	}()
}

func (s *DecayService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// Candidates returns a lazy iterator over captures whose confidence has
// fallen below the floor as of asOf, excluding turning points and
// preserve-indefinitely captures. The iterator pages by id, so a scan
// interrupted mid-way restarts from its cursor, not from the beginning.
func (s *DecayService) Candidates(asOf time.Time) *DecayCandidates {
	return &DecayCandidates{
		captures: s.captures,
		cutoff:   asOf.Add(-domain.AgeAtFloor(s.floor)),
	}
}

// DecayCandidates pages through decay candidates.
type DecayCandidates struct {
	captures domain.CaptureStore
	cutoff   time.Time
	cursor   uuid.UUID
	buf      []domain.FiveWindowCapture
	pos      int
	done     bool
}

// Next returns the next candidate, or nil when the sequence is exhausted.
func (it *DecayCandidates) Next(ctx context.Context) (*domain.FiveWindowCapture, error) {
	if it.pos >= len(it.buf) && !it.done {
		batch, err := it.captures.ListDecayCandidates(ctx, it.cutoff, it.cursor, decayScanPageSize)
		if err != nil {
			return nil, err
		}
		if len(batch) < decayScanPageSize {
			it.done = true
		}
		if len(batch) > 0 {
			it.cursor = batch[len(batch)-1].ID
		}
		it.buf = batch
		it.pos = 0
	}
	if it.pos >= len(it.buf) {
		return nil, nil
	}
	c := &it.buf[it.pos]
	it.pos++
	return c, nil
}

// Cursor exposes the resume point for a scan restarted after downtime.
func (it *DecayCandidates) Cursor() uuid.UUID {
	return it.cursor
}

// RunScan walks the candidate sequence and persists recomputed confidence
// for each capture.
func (s *DecayService) RunScan(ctx context.Context) *DecayScanResult {
	result := &DecayScanResult{}
	now := time.Now()

	it := s.Candidates(now)
	for {
		c, err := it.Next(ctx)
		if err != nil {
			s.logger.Error("decay scan failed", zap.Error(err))
			return result
		}
		if c == nil {
			break
		}

		result.Scanned++
		eligible, err := s.ApplyDecay(ctx, c, now)
		if err != nil {
			s.logger.Warn("failed to apply decay",
				zap.String("capture_id", c.ID.String()),
				zap.Error(err))
			continue
		}
		if eligible {
			result.Archived++
		}
	}

	if result.Scanned > 0 {
		s.logger.Info("decay scan complete",
			zap.Int("scanned", result.Scanned),
			zap.Int("archive_eligible", result.Archived))
	}
	return result
}

// ApplyDecay recomputes and persists the capture's confidence as of asOf.
// The payload is untouched; a capture below the floor is only marked
// eligible for archival by downstream consumers. Returns whether the capture
// is now archive-eligible.
func (s *DecayService) ApplyDecay(ctx context.Context, c *domain.FiveWindowCapture, asOf time.Time) (bool, error) {
	if c.DecayExempt() {
		return false, nil
	}

	confidence := c.ConfidenceAt(asOf)
	windows := c.WindowConfidencesAt(asOf)
	eligible := confidence < s.floor

	if err := s.captures.UpdateDecay(ctx, c.ID, confidence, windows, eligible); err != nil {
		return false, err
	}

	c.Confidence = confidence
	c.WindowConfidence = windows
	c.ArchiveEligible = eligible
	return eligible, nil
}

// ApplyDecayByID loads and decays a single capture.
func (s *DecayService) ApplyDecayByID(ctx context.Context, id uuid.UUID, asOf time.Time) (*domain.FiveWindowCapture, error) {
	c, err := s.captures.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCaptureNotFound
		}
		return nil, err
	}
	if _, err := s.ApplyDecay(ctx, c, asOf); err != nil {
		return nil, err
	}
	return c, nil
}
