package service

import (
	"context"
	"io"
	"sync"

	"habittracker/internal/models"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockRepo) GetUserByTgUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockRepo) UpdateUserProfile(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockRepo) UpdateTgChatID(ctx context.Context, userID, chatID int64, lang string) error {
	return m.Called(ctx, userID, chatID, lang).Error(0)
}
func (m *mockRepo) SetUserStaff(ctx context.Context, userID int64, isStaff bool) error {
	return m.Called(ctx, userID, isStaff).Error(0)
}
func (m *mockRepo) CreateHabit(ctx context.Context, h *models.Habit) error {
	return m.Called(ctx, h).Error(0)
}
func (m *mockRepo) UpdateHabit(ctx context.Context, h *models.Habit) error {
	return m.Called(ctx, h).Error(0)
}
func (m *mockRepo) GetHabit(ctx context.Context, id int64) (*models.Habit, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Habit), args.Error(1)
}
func (m *mockRepo) DeleteHabit(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockRepo) ListHabits(ctx context.Context, f models.HabitFilter, limit, offset int) ([]models.Habit, int, error) {
	args := m.Called(ctx, f, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.Habit), args.Int(1), args.Error(2)
}
func (m *mockRepo) ListRemindable(ctx context.Context, userID *int64) ([]models.Habit, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Habit), args.Error(1)
}
func (m *mockRepo) Ready(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type mockMessageSender struct {
	mock.Mock
}

func (m *mockMessageSender) SendText(ctx context.Context, chatID int64, text string) error {
	return m.Called(ctx, chatID, text).Error(0)
}

// fakeScheduler records registrations without running anything.
type fakeScheduler struct {
	mu   sync.Mutex
	jobs map[string]fakeJob
}

type fakeJob struct {
	schedule cron.Schedule
	run      func()
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: make(map[string]fakeJob)}
}

func (f *fakeScheduler) Register(jobID string, schedule cron.Schedule, job func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[jobID] = fakeJob{schedule: schedule, run: job}
	return nil
}

func (f *fakeScheduler) Remove(jobID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jobs[jobID]
	delete(f.jobs, jobID)
	return ok
}

func (f *fakeScheduler) Has(jobID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jobs[jobID]
	return ok
}

func (f *fakeScheduler) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

func (f *fakeScheduler) job(jobID string) (fakeJob, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	return j, ok
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func ptr[T any](v T) *T {
	return &v
}
