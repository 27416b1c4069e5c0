package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"hotelsync/internal/domain"
	"hotelsync/internal/events"
	"hotelsync/internal/models"

	"github.com/rs/zerolog"
)

var (
	ErrMissingField    = errors.New("required field is missing")
	ErrInvalidStatus   = errors.New("invalid task status")
	ErrPhotoNotAllowed = errors.New("completion photo requires status done")
	ErrTooManyPhotos   = errors.New("too many photos")
	ErrNothingToSubmit = errors.New("notes update has neither notes nor photos")
)

// MutationService accepts local edits, persists them as pending mutations and announces
// them so the scheduler can start a pass right away.
type MutationService struct {
	repo        domain.MutationRepository
	eventBus    domain.EventPublisher
	maxAttempts int
	logger      *zerolog.Logger
}

func NewMutationService(repo domain.MutationRepository, eventBus domain.EventPublisher, maxAttempts int, logger *zerolog.Logger) *MutationService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &MutationService{
		repo:        repo,
		eventBus:    eventBus,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

func (s *MutationService) EnqueueWorkOrder(ctx context.Context, p models.WorkOrderPayload, photos []string) (int64, error) {
	if err := required(map[string]string{"property_id": p.PropertyID, "department": p.Department, "job": p.Job}); err != nil {
		return 0, err
	}
	return s.enqueue(ctx, models.KindWorkOrder, models.RequestCreate, p, photos)
}

func (s *MutationService) EnqueueProject(ctx context.Context, p models.ProjectPayload, photos []string) (int64, error) {
	if err := required(map[string]string{"property_id": p.PropertyID, "name": p.Name}); err != nil {
		return 0, err
	}
	return s.enqueue(ctx, models.KindProject, models.RequestCreate, p, photos)
}

func (s *MutationService) EnqueueTaskStatus(ctx context.Context, p models.TaskStatusPayload) (int64, error) {
	if err := required(map[string]string{"task_id": p.TaskID, "status": p.Status}); err != nil {
		return 0, err
	}
	if !models.IsValidStatus(p.Status) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, p.Status)
	}
	return s.enqueue(ctx, models.KindMaintenanceTask, models.RequestUpdateStatus, p, nil)
}

// EnqueueTaskPendingDone records a status change that carries completion data. A photo is
// accepted only for the done transition.
func (s *MutationService) EnqueueTaskPendingDone(ctx context.Context, p models.TaskPendingDonePayload, photo string) (int64, error) {
	if err := required(map[string]string{"task_id": p.TaskID, "status": p.Status}); err != nil {
		return 0, err
	}
	if !models.IsValidStatus(p.Status) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, p.Status)
	}
	var photos []string
	if photo != "" {
		if !models.IsTerminalStatus(p.Status) {
			return 0, ErrPhotoNotAllowed
		}
		photos = []string{photo}
	}
	return s.enqueue(ctx, models.KindMaintenanceTask, models.RequestUpdatePendingDone, p, photos)
}

func (s *MutationService) EnqueueTaskNotesPhotos(ctx context.Context, p models.TaskNotesPayload, photos []string) (int64, error) {
	if err := required(map[string]string{"task_id": p.TaskID}); err != nil {
		return 0, err
	}
	if len(photos) > models.MaxNotesPhotos {
		return 0, fmt.Errorf("%w: %d > %d", ErrTooManyPhotos, len(photos), models.MaxNotesPhotos)
	}
	if strings.TrimSpace(p.Notes) == "" && len(photos) == 0 {
		return 0, ErrNothingToSubmit
	}
	return s.enqueue(ctx, models.KindMaintenanceTask, models.RequestUpdateNotesPhotos, p, photos)
}

// PendingCounts returns per-kind totals for a badge; stuck is non-zero only when a retry cap is set.
func (s *MutationService) PendingCounts(ctx context.Context) (counts map[models.Kind]int, stuck int, err error) {
	counts, err = s.repo.Counts(ctx)
	if err != nil {
		return nil, 0, err
	}
	if s.maxAttempts <= 0 {
		return counts, 0, nil
	}
	for _, kind := range models.AllKinds() {
		n, err := s.repo.CountStuck(ctx, kind, s.maxAttempts)
		if err != nil {
			return nil, 0, err
		}
		stuck += n
	}
	return counts, stuck, nil
}

func (s *MutationService) Pending(ctx context.Context) ([]models.PendingMutation, error) {
	return s.repo.ListAll(ctx)
}

func (s *MutationService) enqueue(ctx context.Context, kind models.Kind, rt models.RequestType, payload any, photos []string) (int64, error) {
	m, err := models.NewPendingMutation(kind, rt, payload, photos)
	if err != nil {
		return 0, err
	}
	id, err := s.repo.Enqueue(ctx, m)
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Int64("mutation_id", id).
		Str("kind", string(kind)).
		Str("request_type", string(rt)).
		Int("artifacts", len(m.ArtifactPaths)).
		Msg("mutation enqueued")

	if s.eventBus != nil {
		if err := s.eventBus.PublishJSON(events.EventMutationEnqueued, events.MutationEventPayload{
			MutationID:  id,
			Kind:        string(kind),
			RequestType: string(rt),
		}); err != nil {
			s.logger.Error().Err(err).Int64("mutation_id", id).Msg("failed to publish enqueue event")
		}
	}
	return id, nil
}

func required(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
}
