package models

import "time"

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

const (
	LocaleRU = "ru"
	LocaleEN = "en"
)

const (
	// MaxEstimatedDuration максимальное время выполнения привычки в секундах
	MaxEstimatedDuration = 120

	// DefaultEstimatedDuration время выполнения по умолчанию
	DefaultEstimatedDuration = 120

	// MinPeriodicity минимальный интервал между повторениями
	MinPeriodicity = Periodicity(24 * time.Hour)

	// DefaultPeriodicity периодичность по умолчанию (ежедневно)
	DefaultPeriodicity = Periodicity(24 * time.Hour)

	// DefaultPageSize размер страницы списка по умолчанию
	DefaultPageSize = 10

	// MaxPageSize максимальный размер страницы, который может запросить клиент
	MaxPageSize = 50

	// MinPasswordLength минимальная длина пароля
	MinPasswordLength = 8

	// NotificationQueueSize размер очереди уведомлений
	NotificationQueueSize = 256

	// RateLimitRequests количество запросов к API в окне
	RateLimitRequests = 120

	// RateLimitWindow окно ограничения частоты запросов
	RateLimitWindow = 60 // 1 минута в секундах
)
