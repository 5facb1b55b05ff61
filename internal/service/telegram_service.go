package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"habittracker/internal/config"
	"habittracker/internal/domain"
	"habittracker/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

type TelegramService struct {
	bot     domain.TelegramSender
	limiter *rate.Limiter
	retry   worker.RetryPolicy
}

func NewTelegramService(bot domain.TelegramSender, cfg config.NotificationsConfig) *TelegramService {
	limit := rate.Inf
	if cfg.SendRPS > 0 {
		limit = rate.Limit(cfg.SendRPS)
	}
	burst := cfg.SendBurst
	if burst <= 0 {
		burst = 1
	}

	return &TelegramService{
		bot:     bot,
		limiter: rate.NewLimiter(limit, burst),
		retry: worker.RetryPolicy{
			MaxRetries:   cfg.Retry.MaxRetries,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
		},
	}
}

func (s *TelegramService) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return s.bot.Send(c)
}

func (s *TelegramService) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	return s.bot.Send(msg)
}

// SendText delivers a plain message, waiting for the send limiter and retrying transient failures.
// Rejections by Telegram (blocked bot, bad chat) are not retried.
func (s *TelegramService) SendText(ctx context.Context, chatID int64, text string) error {
	return s.retry.Do(ctx, func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return &worker.Permanent{Err: err}
		}

		_, err := s.SendMessage(chatID, text)
		if err == nil {
			return nil
		}

		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			switch apiErr.Code {
			case http.StatusBadRequest, http.StatusForbidden, http.StatusUnauthorized:
				return &worker.Permanent{Err: fmt.Errorf("telegram rejected message: %w", err)}
			}
		}
		return err
	})
}

func (s *TelegramService) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return s.bot.GetUpdatesChan(config)
}

func (s *TelegramService) GetSelf() tgbotapi.User {
	return s.bot.GetSelf()
}

func (s *TelegramService) StopReceivingUpdates() {
	s.bot.StopReceivingUpdates()
}
