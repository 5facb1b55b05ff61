package domain

import (
	"context"
	"time"

	"habittracker/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByTgUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUserProfile(ctx context.Context, user *models.User) error
	UpdateTgChatID(ctx context.Context, userID, chatID int64, languageCode string) error
	SetUserStaff(ctx context.Context, userID int64, isStaff bool) error
}

type HabitRepository interface {
	CreateHabit(ctx context.Context, habit *models.Habit) error
	UpdateHabit(ctx context.Context, habit *models.Habit) error
	GetHabit(ctx context.Context, id int64) (*models.Habit, error)
	DeleteHabit(ctx context.Context, id int64) error
	ListHabits(ctx context.Context, filter models.HabitFilter, limit, offset int) ([]models.Habit, int, error)
	ListRemindable(ctx context.Context, userID *int64) ([]models.Habit, error)
}

type Repository interface {
	UserRepository
	HabitRepository
	Ready(ctx context.Context) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// TelegramService is what the bot loop needs from Telegram.
type TelegramService interface {
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// MessageSender delivers a text message to a chat.
type MessageSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type ReminderScheduler interface {
	Register(jobID string, schedule cron.Schedule, job func()) error
	Remove(jobID string) bool
	Has(jobID string) bool
	Len() int
}
