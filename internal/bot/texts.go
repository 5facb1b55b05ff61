package bot

import (
	"fmt"
	"strings"
)

type texts struct {
	linked        string
	notRegistered string
	noUsername    string
	failed        string
	help          string
	unknown       string
	rateLimited   string
}

func (texts) format(tpl string, args ...any) string {
	return fmt.Sprintf(tpl, args...)
}

var textsRU = texts{
	linked:        "✅ Чат привязан к аккаунту %s. Напоминания об опубликованных привычках будут приходить сюда.",
	notRegistered: "⚠️ Аккаунт с Telegram-именем @%s не найден. Зарегистрируйтесь в приложении, указав это имя, и снова отправьте /start.",
	noUsername:    "⚠️ У вас не задано имя пользователя Telegram. Укажите его в настройках Telegram и отправьте /start.",
	failed:        "❌ Не удалось привязать чат. Попробуйте позже.",
	help:          "Команды:\n/start — привязать этот чат к аккаунту\n/help — справка\n\nПривычки создаются через приложение. Опубликованные привычки присылают напоминания в этот чат.",
	unknown:       "Не понимаю эту команду. Отправьте /help.",
	rateLimited:   "⚠️ Вы отправляете сообщения слишком часто. Пожалуйста, подождите немного.",
}

var textsEN = texts{
	linked:        "✅ This chat is now linked to %s. Reminders for your published habits will arrive here.",
	notRegistered: "⚠️ No account uses the Telegram username @%s. Register in the app with this username and send /start again.",
	noUsername:    "⚠️ Your Telegram account has no username. Set one in Telegram settings and send /start.",
	failed:        "❌ Could not link this chat. Please try again later.",
	help:          "Commands:\n/start - link this chat to your account\n/help - show this help\n\nHabits are created in the app. Published habits send reminders to this chat.",
	unknown:       "I don't know that command. Send /help.",
	rateLimited:   "⚠️ You are sending messages too often. Please wait a little.",
}

func textsFor(languageCode string) texts {
	if strings.HasPrefix(strings.ToLower(languageCode), "en") {
		return textsEN
	}
	return textsRU
}
