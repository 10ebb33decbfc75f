package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTelegramLoggedIn EventType = "telegram_logged_in"
	EventTelegramSignedUp EventType = "telegram_signed_up"
	EventTelegramLinked   EventType = "telegram_linked"
	EventTelegramUnlinked EventType = "telegram_unlinked"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	UserID     int64       `json:"user_id"`
	TelegramID int64       `json:"telegram_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// SignedUpPayload accompanies EventTelegramSignedUp. WelcomeMessage is empty
// when no welcome message should be delivered.
type SignedUpPayload struct {
	Email          string `json:"email"`
	WelcomeMessage string `json:"welcome_message,omitempty"`
}
