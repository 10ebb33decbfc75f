package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/telegram-auth-service/internal/domain"
	"github.com/spec-kit/telegram-auth-service/internal/events"
	"github.com/spec-kit/telegram-auth-service/internal/repository"
)

// WelcomeQueue accepts welcome messages for asynchronous delivery.
type WelcomeQueue interface {
	Enqueue(chatID int64, text string) bool
}

// BotMessenger sends a chat message on behalf of a bot.
type BotMessenger interface {
	SendMessage(ctx context.Context, token string, chatID int64, text string) error
}

// NotificationService reacts to Telegram account events.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      WelcomeQueue
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, queue WelcomeQueue, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTelegramSignedUp, n.handleSignedUp)
	n.dispatcher.Subscribe(events.EventTelegramLoggedIn, n.handleAudit)
	n.dispatcher.Subscribe(events.EventTelegramLinked, n.handleAudit)
	n.dispatcher.Subscribe(events.EventTelegramUnlinked, n.handleAudit)
}

func (n *NotificationService) handleSignedUp(ctx context.Context, event events.Event) error {
	n.handleAudit(ctx, event)

	payload, ok := event.Payload.(events.SignedUpPayload)
	if !ok || payload.WelcomeMessage == "" || n.queue == nil {
		return nil
	}
	if !n.queue.Enqueue(event.TelegramID, payload.WelcomeMessage) {
		return fmt.Errorf("welcome for telegram user %d not queued", event.TelegramID)
	}
	return nil
}

func (n *NotificationService) handleAudit(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.Int64("user_id", event.UserID),
		zap.Int64("telegram_id", event.TelegramID))
	return nil
}

// WelcomeSender delivers welcome messages with the bot token current at send
// time.
type WelcomeSender struct {
	settings repository.SettingsRepository
	bot      BotMessenger
}

// NewWelcomeSender builds a sender backed by the settings store.
func NewWelcomeSender(settings repository.SettingsRepository, bot BotMessenger) *WelcomeSender {
	return &WelcomeSender{settings: settings, bot: bot}
}

// SendWelcome sends text to the Telegram chat.
func (s *WelcomeSender) SendWelcome(ctx context.Context, chatID int64, text string) error {
	settings, err := s.settings.Current(ctx)
	if err != nil {
		return fmt.Errorf("load telegram settings: %w", err)
	}
	if !settings.IsConfigured() {
		return domain.ErrNotConfigured
	}
	return s.bot.SendMessage(ctx, settings.BotToken, chatID, text)
}
