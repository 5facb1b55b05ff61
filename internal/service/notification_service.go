package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"habittracker/internal/config"
	"habittracker/internal/database"
	"habittracker/internal/domain"
	"habittracker/internal/events"
	"habittracker/internal/metrics"
	"habittracker/internal/models"
	"habittracker/internal/scheduler"
	"habittracker/internal/worker"

	"github.com/rs/zerolog"
)

const (
	kindReminder     = "reminder"
	kindConfirmation = "confirmation"
)

// NotificationService keeps reminder jobs in sync with published habits and
// delivers Telegram messages. Event handlers only enqueue work, so a slow or
// failing Telegram never reaches the API request that published the event.
type NotificationService struct {
	repo      domain.Repository
	sender    domain.MessageSender
	scheduler domain.ReminderScheduler
	pool      *worker.Pool
	logger    *zerolog.Logger

	mu  sync.RWMutex
	ctx context.Context
}

// NewNotificationService builds the dispatcher. A nil sender disables delivery; jobs are still kept.
func NewNotificationService(
	repo domain.Repository,
	sender domain.MessageSender,
	sched domain.ReminderScheduler,
	cfg config.NotificationsConfig,
	logger *zerolog.Logger,
) *NotificationService {
	l := logger.With().Str("component", "notifications").Logger()
	return &NotificationService{
		repo:      repo,
		sender:    sender,
		scheduler: sched,
		pool:      worker.NewPool(cfg.Workers, cfg.QueueSize, &l),
		logger:    &l,
		ctx:       context.Background(),
	}
}

func jobID(habitID int64) string {
	return fmt.Sprintf("habit:%d", habitID)
}

// Subscribe wires the dispatcher to the bus.
func (s *NotificationService) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventHabitCreated, s.enqueueHabit(s.OnHabitCreated))
	bus.Subscribe(events.EventHabitUpdated, s.enqueueHabit(s.OnHabitUpdated))
	bus.Subscribe(events.EventHabitDeleted, s.enqueueHabit(s.OnHabitDeleted))
	bus.Subscribe(events.EventUserTelegramLinked, func(event *events.Event) error {
		var payload events.UserLinkedPayload
		if err := event.Decode(&payload); err != nil {
			return err
		}
		return s.submit(event.Type, func(ctx context.Context) error {
			return s.OnTelegramLinked(ctx, payload.UserID)
		})
	})
}

// Start runs the delivery workers until ctx is done.
func (s *NotificationService) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.pool.Start(ctx)
}

// Wait blocks until the workers exit after the Start context is cancelled.
func (s *NotificationService) Wait() {
	s.pool.Wait()
}

func (s *NotificationService) baseContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

func (s *NotificationService) enqueueHabit(fn func(ctx context.Context, habitID int64) error) events.EventHandler {
	return func(event *events.Event) error {
		var payload events.HabitEventPayload
		if err := event.Decode(&payload); err != nil {
			return err
		}
		return s.submit(fmt.Sprintf("%s:%d", event.Type, payload.HabitID), func(ctx context.Context) error {
			return fn(ctx, payload.HabitID)
		})
	}
}

func (s *NotificationService) submit(name string, run func(ctx context.Context) error) error {
	if !s.pool.Submit(worker.Task{Name: name, Run: run}) {
		return fmt.Errorf("notification queue full, %s dropped", name)
	}
	return nil
}

// OnHabitCreated schedules reminders for a published habit and sends one confirmation.
func (s *NotificationService) OnHabitCreated(ctx context.Context, habitID int64) error {
	habit, owner, err := s.loadRemindable(ctx, habitID)
	if err != nil || habit == nil {
		return err
	}
	if owner == nil {
		metrics.IncNotification(kindConfirmation, "skipped")
		return nil
	}

	s.schedule(habit)
	return s.send(ctx, kindConfirmation, *owner.TgChatID, confirmationText(owner.Locale(), habit))
}

// OnHabitUpdated replaces the job while the habit stays published with a linked owner, otherwise drops it.
func (s *NotificationService) OnHabitUpdated(ctx context.Context, habitID int64) error {
	habit, owner, err := s.loadRemindable(ctx, habitID)
	if err != nil {
		return err
	}
	if habit == nil || owner == nil {
		s.unschedule(habitID)
		return nil
	}
	s.schedule(habit)
	return nil
}

func (s *NotificationService) OnHabitDeleted(_ context.Context, habitID int64) error {
	s.unschedule(habitID)
	return nil
}

// OnTelegramLinked schedules the user's published habits once a chat is known.
func (s *NotificationService) OnTelegramLinked(ctx context.Context, userID int64) error {
	habits, err := s.repo.ListRemindable(ctx, &userID)
	if err != nil {
		return err
	}
	for i := range habits {
		s.schedule(&habits[i])
	}
	s.logger.Info().Int64("user_id", userID).Int("habits", len(habits)).Msg("reminders scheduled after telegram link")
	return nil
}

// RestoreReminders registers jobs for every published habit with a linked owner.
func (s *NotificationService) RestoreReminders(ctx context.Context) (int, error) {
	habits, err := s.repo.ListRemindable(ctx, nil)
	if err != nil {
		return 0, err
	}
	for i := range habits {
		s.schedule(&habits[i])
	}
	s.logger.Info().Int("jobs", len(habits)).Msg("reminders restored")
	return len(habits), nil
}

// loadRemindable returns (nil, nil, nil) for a missing or unpublished habit and a nil owner
// when nobody can receive messages for it.
func (s *NotificationService) loadRemindable(ctx context.Context, habitID int64) (*models.Habit, *models.User, error) {
	habit, err := s.repo.GetHabit(ctx, habitID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if !habit.IsPublished {
		return nil, nil, nil
	}
	if habit.UserID == nil {
		return habit, nil, nil
	}

	owner, err := s.repo.GetUserByID(ctx, *habit.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return habit, nil, nil
		}
		return nil, nil, err
	}
	if !owner.HasChat() || !owner.IsActive {
		return habit, nil, nil
	}
	return habit, owner, nil
}

func (s *NotificationService) schedule(h *models.Habit) {
	habitID := h.ID
	sched := scheduler.EveryNDaysAt(h.CreatedAt, h.Time, h.Periodicity.Duration())
	if err := s.scheduler.Register(jobID(habitID), sched, func() { s.runReminder(habitID) }); err != nil {
		s.logger.Error().Err(err).Int64("habit_id", habitID).Msg("failed to register reminder")
		return
	}
	metrics.SetReminderJobs(s.scheduler.Len())
}

func (s *NotificationService) unschedule(habitID int64) {
	if s.scheduler.Remove(jobID(habitID)) {
		metrics.SetReminderJobs(s.scheduler.Len())
	}
}

// runReminder is the job body. It reloads the habit so edits made since scheduling are honoured.
func (s *NotificationService) runReminder(habitID int64) {
	ctx, cancel := context.WithTimeout(s.baseContext(), time.Minute)
	defer cancel()

	habit, owner, err := s.loadRemindable(ctx, habitID)
	if err != nil {
		s.logger.Error().Err(err).Int64("habit_id", habitID).Msg("failed to load habit for reminder")
		return
	}
	if habit == nil || owner == nil {
		s.unschedule(habitID)
		return
	}

	var pleasant *models.Habit
	if habit.PleasantHabitID != nil {
		if p, err := s.repo.GetHabit(ctx, *habit.PleasantHabitID); err == nil {
			pleasant = p
		}
	}

	if err := s.send(ctx, kindReminder, *owner.TgChatID, reminderText(owner.Locale(), habit, pleasant)); err != nil {
		s.logger.Error().Err(err).Int64("habit_id", habitID).Msg("failed to send reminder")
	}
}

func (s *NotificationService) send(ctx context.Context, kind string, chatID int64, text string) error {
	if s.sender == nil {
		metrics.IncNotification(kind, "skipped")
		return nil
	}
	if err := s.sender.SendText(ctx, chatID, text); err != nil {
		metrics.IncNotification(kind, "failed")
		return err
	}
	metrics.IncNotification(kind, "sent")
	return nil
}
