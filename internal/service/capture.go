package service

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/Harshitk-cp/reframe/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrCaptureNotFound      = errors.New("capture not found")
	ErrInterventionNotFound = errors.New("intervention not found")
)

// CaptureService validates and reads five-window captures. Persistence of
// new captures happens inside the orchestrator's phase transition so a
// capture is never left created-but-unlinked.
type CaptureService struct {
	captures domain.CaptureStore
	logger   *zap.Logger
}

func NewCaptureService(cs domain.CaptureStore, logger *zap.Logger) *CaptureService {
	return &CaptureService{captures: cs, logger: logger}
}

// CaptureInput is the inbound capture request.
type CaptureInput struct {
	InterventionID       uuid.UUID
	Senses               domain.WindowPayload
	Actions              domain.WindowPayload
	Emotions             domain.WindowPayload
	Impulses             domain.WindowPayload
	Cognitions           domain.WindowPayload
	Context              map[string]string
	EmotionalIntensity   float64
	PreserveIndefinitely bool
}

func (in *CaptureInput) payload(w domain.Window) domain.WindowPayload {
	switch w {
	case domain.WindowSenses:
		return in.Senses
	case domain.WindowActions:
		return in.Actions
	case domain.WindowEmotions:
		return in.Emotions
	case domain.WindowImpulses:
		return in.Impulses
	case domain.WindowCognitions:
		return in.Cognitions
	}
	return nil
}

// Build validates the input and constructs an unsaved capture. All five
// windows must carry content and intensity must lie in [0,10]; nothing is
// ever partially accepted. Intensity above the turning-point threshold
// exempts the capture from decay.
func (s *CaptureService) Build(in CaptureInput) (*domain.FiveWindowCapture, error) {
	for _, w := range domain.Windows {
		if in.payload(w).Empty() {
			return nil, domain.Validationf(string(w), "window is required and must not be empty")
		}
	}
	if in.EmotionalIntensity < 0 || in.EmotionalIntensity > 10 {
		return nil, domain.Validationf("emotional_intensity", "must be in [0,10], got %v", in.EmotionalIntensity)
	}

	return &domain.FiveWindowCapture{
		InterventionID:       in.InterventionID,
		Senses:               in.Senses,
		Actions:              in.Actions,
		Emotions:             in.Emotions,
		Impulses:             in.Impulses,
		Cognitions:           in.Cognitions,
		Context:              in.Context,
		EmotionalIntensity:   in.EmotionalIntensity,
		TurningPoint:         in.EmotionalIntensity > domain.TurningPointIntensity,
		PreserveIndefinitely: in.PreserveIndefinitely,
		Confidence:           1.0,
	}, nil
}

func (s *CaptureService) GetByID(ctx context.Context, id uuid.UUID) (*domain.FiveWindowCapture, error) {
	c, err := s.captures.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCaptureNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *CaptureService) GetByIntervention(ctx context.Context, interventionID uuid.UUID) ([]domain.FiveWindowCapture, error) {
	return s.captures.GetByIntervention(ctx, interventionID)
}
