package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	EventHabitCreated       = "habit.created"
	EventHabitUpdated       = "habit.updated"
	EventHabitDeleted       = "habit.deleted"
	EventUserTelegramLinked = "user.telegram_linked"
)

// HabitEventPayload describes the minimal habit snapshot for event consumers.
type HabitEventPayload struct {
	HabitID         int64  `json:"habit_id"`
	UserID          *int64 `json:"user_id,omitempty"`
	Action          string `json:"action,omitempty"`
	IsPleasantHabit bool   `json:"is_pleasant_habit"`
	IsPublished     bool   `json:"is_published"`
	ChangedByID     int64  `json:"changed_by_id,omitempty"`
}

// UserLinkedPayload is published once a Telegram chat is bound to an account.
type UserLinkedPayload struct {
	UserID int64 `json:"user_id"`
	ChatID int64 `json:"chat_id"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewEventBus constructs an empty bus. A nil logger discards handler errors.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "events").Logger()
	}
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: l}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
// Handler errors and panics are logged and never reach the publisher.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		b.dispatch(handler, event)
	}
}

func (b *EventBus) dispatch(handler EventHandler, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("event", event.Type).Msg("event handler panicked")
		}
	}()
	if err := handler(event); err != nil {
		b.logger.Warn().Err(err).Str("event", event.Type).Msg("event handler failed")
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
