package bot

import (
	"context"
	"errors"
	"strings"

	"habittracker/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	l := zerolog.Ctx(ctx)

	l.Debug().
		Int64("user_id", msg.From.ID).
		Str("username", msg.From.UserName).
		Str("text", msg.Text).
		Msg("Handling message")

	t := textsFor(msg.From.LanguageCode)
	command := msg.Command()
	if command != "" && b.metrics != nil {
		b.metrics.CommandsProcessed.WithLabelValues(command).Inc()
	}

	switch command {
	case "start":
		b.handleStart(ctx, msg)
	case "help":
		b.sendMessage(msg.Chat.ID, t.help)
	default:
		b.sendMessage(msg.Chat.ID, t.unknown)
	}
}

// handleStart links the chat to the account whose tg_username matches the sender.
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	t := textsFor(msg.From.LanguageCode)
	username := strings.TrimSpace(msg.From.UserName)
	if username == "" {
		b.sendMessage(msg.Chat.ID, t.noUsername)
		return
	}

	user, err := b.users.LinkTelegram(ctx, username, msg.Chat.ID, msg.From.LanguageCode)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			b.sendMessage(msg.Chat.ID, t.format(t.notRegistered, username))
			return
		}
		if b.metrics != nil {
			b.metrics.ErrorsTotal.Inc()
		}
		zerolog.Ctx(ctx).Error().Err(err).Str("username", username).Msg("Failed to link telegram chat")
		b.sendMessage(msg.Chat.ID, t.failed)
		return
	}

	if b.metrics != nil {
		b.metrics.ChatsLinked.Inc()
	}
	zerolog.Ctx(ctx).Info().Int64("user_id", user.ID).Int64("chat_id", msg.Chat.ID).Msg("Telegram chat linked")
	b.sendMessage(msg.Chat.ID, t.format(t.linked, user.Email))
}
