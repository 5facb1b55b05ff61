package service

import (
	"fmt"
	"strings"

	"habittracker/internal/models"
)

type messageSet struct {
	reminder     string
	confirmation string
	reward       string
	pleasant     string
	duration     string
}

var messages = map[string]messageSet{
	models.LocaleRU: {
		reminder:     "⏰ Пора: %s\n📍 Где: %s\n🕒 Когда: %s",
		confirmation: "✅ Привычка добавлена: %s\n📍 Где: %s\n🕒 Когда: %s\nНапоминания будут приходить каждые %d дн.",
		reward:       "🎁 Награда: %s",
		pleasant:     "😊 После этого: %s",
		duration:     "⏱ Не дольше %d сек.",
	},
	models.LocaleEN: {
		reminder:     "⏰ Time to: %s\n📍 Where: %s\n🕒 When: %s",
		confirmation: "✅ Habit added: %s\n📍 Where: %s\n🕒 When: %s\nReminders will arrive every %d day(s).",
		reward:       "🎁 Reward: %s",
		pleasant:     "😊 Afterwards: %s",
		duration:     "⏱ No longer than %d sec.",
	},
}

func messagesFor(locale string) messageSet {
	if m, ok := messages[locale]; ok {
		return m
	}
	return messages[models.LocaleRU]
}

// reminderText renders the periodic reminder. pleasant may be nil.
func reminderText(locale string, h *models.Habit, pleasant *models.Habit) string {
	m := messagesFor(locale)

	lines := []string{
		fmt.Sprintf(m.reminder, h.Action, h.Place, h.Time),
		fmt.Sprintf(m.duration, h.EstimatedDuration),
	}
	switch {
	case h.HasReward():
		lines = append(lines, fmt.Sprintf(m.reward, *h.Reward))
	case pleasant != nil:
		lines = append(lines, fmt.Sprintf(m.pleasant, pleasant.Action))
	}
	return strings.Join(lines, "\n")
}

func confirmationText(locale string, h *models.Habit) string {
	m := messagesFor(locale)
	days := h.Periodicity.Days()
	if days < 1 {
		days = 1
	}
	return fmt.Sprintf(m.confirmation, h.Action, h.Place, h.Time, days)
}
