package bot

import (
	"context"
	"fmt"
	"os"
	"time"

	"habittracker/internal/config"
	"habittracker/internal/domain"
	"habittracker/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Linker binds a Telegram chat to the account registered with a username.
type Linker interface {
	LinkTelegram(ctx context.Context, username string, chatID int64, languageCode string) (*models.User, error)
}

type Bot struct {
	tgService domain.TelegramService
	config    config.TelegramConfig
	users     Linker
	limiter   domain.RateLimiter
	metrics   *Metrics
	logger    *zerolog.Logger
}

// NewBot builds the bot. limiter and metrics may be nil.
func NewBot(
	tgService domain.TelegramService,
	cfg config.TelegramConfig,
	users Linker,
	limiter domain.RateLimiter,
	metrics *Metrics,
	logger *zerolog.Logger,
) (*Bot, error) {
	if tgService == nil {
		return nil, fmt.Errorf("telegram service is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user linker is required")
	}

	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	return &Bot{
		tgService: tgService,
		config:    cfg,
		users:     users,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// Start consumes updates until ctx is done or the updates channel closes.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

// Stop stops receiving Telegram updates (best-effort).
func (b *Bot) Stop() {
	if b == nil || b.tgService == nil {
		return
	}
	b.tgService.StopReceivingUpdates()
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	// Создаем контекст для обработки каждого обновления
	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		if b.metrics != nil {
			b.metrics.MessagesProcessed.Inc()
		}

		userID := update.Message.From.ID
		if !b.allow(updateCtx, userID) {
			l.Warn().Int64("user_id", userID).Msg("Rate limit exceeded")
			b.sendMessage(update.Message.Chat.ID, textsFor(update.Message.From.LanguageCode).rateLimited)
			return
		}

		b.handleMessage(updateCtx, update)
	})
}

func (b *Bot) allow(ctx context.Context, userID int64) bool {
	if b.limiter == nil || b.config.RateLimitMessages <= 0 {
		return true
	}
	window := time.Duration(b.config.RateLimitWindow) * time.Second
	allowed, err := b.limiter.Allow(ctx, fmt.Sprintf("tg:%d", userID), b.config.RateLimitMessages, window)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Rate limit check failed")
		return true
	}
	return allowed
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.tgService.SendMessage(chatID, text); err != nil {
		if b.metrics != nil {
			b.metrics.ErrorsTotal.Inc()
		}
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}
