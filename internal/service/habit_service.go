package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"habittracker/internal/access"
	"habittracker/internal/database"
	"habittracker/internal/domain"
	"habittracker/internal/events"
	"habittracker/internal/metrics"
	"habittracker/internal/models"

	"github.com/rs/zerolog"
)

type HabitService struct {
	repo      domain.HabitRepository
	eventBus  domain.EventPublisher
	paginator Paginator
	logger    *zerolog.Logger
}

func NewHabitService(repo domain.HabitRepository, eventBus domain.EventPublisher, paginator Paginator, logger *zerolog.Logger) *HabitService {
	return &HabitService{
		repo:      repo,
		eventBus:  eventBus,
		paginator: paginator,
		logger:    logger,
	}
}

// Create stores a new habit owned by the caller. A client-supplied owner is ignored.
func (s *HabitService) Create(ctx context.Context, id access.Identity, in *models.HabitInput) (*models.Habit, error) {
	verr := validateInput(in, false)

	habit := models.NewHabit()
	in.ApplyTo(habit)
	owner := id.UserID
	habit.UserID = &owner

	validateHabit(habit, verr)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateHabit(ctx, habit); err != nil {
		return nil, mapStoreError(err)
	}

	metrics.IncHabitCreated()
	s.logger.Info().Int64("habit_id", habit.ID).Int64("user_id", owner).Bool("published", habit.IsPublished).Msg("habit created")
	s.publishEvent(events.EventHabitCreated, habit, id.UserID)

	return habit, nil
}

// Get returns a habit the caller may read. Invisible rows are reported as not found.
func (s *HabitService) Get(ctx context.Context, id access.Identity, habitID int64) (*models.Habit, error) {
	habit, err := s.load(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if !access.CanRead(id, habit) {
		return nil, ErrNotFound
	}
	return habit, nil
}

// GetPublic returns a habit from the public feed.
func (s *HabitService) GetPublic(ctx context.Context, habitID int64) (*models.Habit, error) {
	habit, err := s.load(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if !access.PublicFeed().Matches(habit) {
		return nil, ErrNotFound
	}
	return habit, nil
}

// Update merges in into the stored habit. partial=false requires every mandatory field.
func (s *HabitService) Update(ctx context.Context, id access.Identity, habitID int64, in *models.HabitInput, partial bool) (*models.Habit, error) {
	habit, err := s.loadMutable(ctx, id, habitID)
	if err != nil {
		return nil, err
	}

	verr := validateInput(in, partial)
	in.ApplyTo(habit)
	validateHabit(habit, verr)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateHabit(ctx, habit); err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info().Int64("habit_id", habit.ID).Int64("changed_by", id.UserID).Msg("habit updated")
	s.publishEvent(events.EventHabitUpdated, habit, id.UserID)

	return habit, nil
}

func (s *HabitService) Delete(ctx context.Context, id access.Identity, habitID int64) error {
	habit, err := s.loadMutable(ctx, id, habitID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteHabit(ctx, habitID); err != nil {
		return mapStoreError(err)
	}

	s.logger.Info().Int64("habit_id", habitID).Int64("changed_by", id.UserID).Msg("habit deleted")
	s.publishEvent(events.EventHabitDeleted, habit, id.UserID)
	return nil
}

// List returns the caller's collection view: everything for staff, otherwise own pleasant published habits.
func (s *HabitService) List(ctx context.Context, id access.Identity, page, pageSize int) (*models.Page[models.Habit], error) {
	return s.list(ctx, access.HabitScope(id), page, pageSize)
}

// ListPublic returns the public feed.
func (s *HabitService) ListPublic(ctx context.Context, page, pageSize int) (*models.Page[models.Habit], error) {
	return s.list(ctx, access.PublicFeed(), page, pageSize)
}

// ExportAll returns every habit. Staff only.
func (s *HabitService) ExportAll(ctx context.Context, id access.Identity) ([]models.Habit, error) {
	if !id.IsStaff {
		return nil, ErrForbidden
	}
	habits, _, err := s.repo.ListHabits(ctx, models.HabitFilter{}, -1, 0)
	if err != nil {
		return nil, err
	}
	return habits, nil
}

func (s *HabitService) list(ctx context.Context, filter models.HabitFilter, page, pageSize int) (*models.Page[models.Habit], error) {
	w := s.paginator.Normalize(page, pageSize)

	limit, offset := w.Limit, w.Offset
	if w.OutOfRange {
		// Только общее количество
		limit, offset = 0, 0
	}

	habits, total, err := s.repo.ListHabits(ctx, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	if w.OutOfRange {
		habits = nil
	}
	return newPage(habits, total, w), nil
}

func (s *HabitService) load(ctx context.Context, habitID int64) (*models.Habit, error) {
	habit, err := s.repo.GetHabit(ctx, habitID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return habit, nil
}

// loadMutable: invisible → not found, visible but foreign → forbidden.
func (s *HabitService) loadMutable(ctx context.Context, id access.Identity, habitID int64) (*models.Habit, error) {
	habit, err := s.Get(ctx, id, habitID)
	if err != nil {
		return nil, err
	}
	if !access.CanMutate(id, habit) {
		return nil, ErrForbidden
	}
	return habit, nil
}

func (s *HabitService) publishEvent(eventType string, habit *models.Habit, changedByID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.HabitEventPayload{
		HabitID:         habit.ID,
		UserID:          habit.UserID,
		Action:          habit.Action,
		IsPleasantHabit: habit.IsPleasantHabit,
		IsPublished:     habit.IsPublished,
		ChangedByID:     changedByID,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("habit_id", habit.ID).Msg("publish event error")
	}
}

// validateInput checks presence and nullability of submitted keys.
func validateInput(in *models.HabitInput, partial bool) *ValidationError {
	verr := NewValidationError()

	requireText := func(field string, o models.Optional[string]) {
		switch {
		case !o.Set:
			if !partial {
				verr.Add(field, "This field is required.")
			}
		case !o.Valid:
			verr.Add(field, "This field may not be null.")
		case strings.TrimSpace(o.Value) == "":
			verr.Add(field, "This field may not be blank.")
		}
	}
	requireText("place", in.Place)
	requireText("action", in.Action)

	switch {
	case !in.Time.Set:
		if !partial {
			verr.Add("time", "This field is required.")
		}
	case !in.Time.Valid:
		verr.Add("time", "This field may not be null.")
	}

	notNull := map[string]bool{
		"is_pleasant_habit":  in.IsPleasantHabit.Set && !in.IsPleasantHabit.Valid,
		"is_published":       in.IsPublished.Set && !in.IsPublished.Valid,
		"periodicity":        in.Periodicity.Set && !in.Periodicity.Valid,
		"estimated_duration": in.EstimatedDuration.Set && !in.EstimatedDuration.Valid,
	}
	for field, isNull := range notNull {
		if isNull {
			verr.Add(field, "This field may not be null.")
		}
	}

	return verr
}

// validateHabit enforces the record rules on the merged habit.
// The pleasant_habit target flag is checked by the store inside its transaction.
func validateHabit(h *models.Habit, verr *ValidationError) {
	if h.HasReward() && h.PleasantHabitID != nil {
		verr.Add(NonFieldKey, "A habit cannot have both a reward and a pleasant habit.")
	}

	if h.IsPleasantHabit {
		if h.HasReward() {
			verr.Add("reward", "A pleasant habit cannot have a reward.")
		}
		if h.PleasantHabitID != nil {
			verr.Add("pleasant_habit", "A pleasant habit cannot have a related pleasant habit.")
		}
	}

	if h.PleasantHabitID != nil && h.ID != 0 && *h.PleasantHabitID == h.ID {
		verr.Add("pleasant_habit", "A habit cannot reference itself.")
	}

	if !verr.Has("estimated_duration") {
		switch {
		case h.EstimatedDuration > models.MaxEstimatedDuration:
			verr.Add("estimated_duration", fmt.Sprintf("Ensure this value is less than or equal to %d.", models.MaxEstimatedDuration))
		case h.EstimatedDuration <= 0:
			verr.Add("estimated_duration", "Ensure this value is greater than 0.")
		}
	}

	if !verr.Has("periodicity") && h.Periodicity < models.MinPeriodicity {
		verr.Add("periodicity", "The periodicity must be at least 1 day.")
	}
}

// mapStoreError converts storage sentinels to the service taxonomy.
func mapStoreError(err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, database.ErrPleasantHabitNotFound):
		return NewFieldError("pleasant_habit", "The referenced habit does not exist.")
	case errors.Is(err, database.ErrNotPleasantHabit):
		return NewFieldError("pleasant_habit", "The referenced habit must be a pleasant habit.")
	case errors.Is(err, database.ErrPleasantHabitInUse):
		return NewFieldError("is_pleasant_habit", "This habit is used as a pleasant habit by other habits.")
	case errors.Is(err, database.ErrLinkedHabitNotFound):
		return NewFieldError("linked_to", "The linked habit does not exist.")
	case errors.Is(err, database.ErrDuplicateEmail):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, database.ErrDuplicateTgUsername):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
