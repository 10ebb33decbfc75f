package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/telegram-auth-service/internal/domain"
	"github.com/spec-kit/telegram-auth-service/internal/repository"
	"github.com/spec-kit/telegram-auth-service/internal/telegram/botapi"
	apperrors "github.com/spec-kit/telegram-auth-service/pkg/util"
)

const (
	maxWelcomeLength  = 4096
	minSessionTimeout = 300
	maxSessionTimeout = 86400
	minAuthMaxAge     = 60
	maxAuthMaxAge     = 86400
)

var (
	botTokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)
	alphaDash       = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// BotAPI is the subset of the Telegram Bot API used by the admin surface.
type BotAPI interface {
	GetMe(ctx context.Context, token string) (*botapi.BotInfo, error)
	SetWebhook(ctx context.Context, token, url string) error
	GetWebhookInfo(ctx context.Context, token string) (*botapi.WebhookInfo, error)
	DeleteWebhook(ctx context.Context, token string) error
}

// SettingsView is the admin representation of the settings; BotToken is
// always cleared.
type SettingsView struct {
	Settings       domain.BotSettings
	BotTokenMasked string
	HasBotToken    bool
}

// TelegramStatsView aggregates adoption figures for the admin panel.
type TelegramStatsView struct {
	Configured           bool
	LoginEnabled         bool
	SignupEnabled        bool
	NotificationsEnabled bool
	BotUsername          string
	TotalUsers           int64
	TelegramUsers        int64
	TelegramPercentage   float64
	LinkedToday          int64
	LinkedThisWeek       int64
}

// WidgetConfig configures the login widget rendered by the frontend.
type WidgetConfig struct {
	Enabled       bool
	BotUsername   string
	AuthURL       string
	RequestAccess string
	Size          string
	CornerRadius  int
	Lang          string
}

// TelegramSettingsService manages the bot configuration.
type TelegramSettingsService struct {
	settings repository.SettingsRepository
	users    repository.UserRepository
	bot      BotAPI
	logger   *zap.Logger
	now      func() time.Time
}

// NewTelegramSettingsService builds the service.
func NewTelegramSettingsService(settings repository.SettingsRepository, users repository.UserRepository, bot BotAPI, logger *zap.Logger) *TelegramSettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramSettingsService{
		settings: settings,
		users:    users,
		bot:      bot,
		logger:   logger,
		now:      time.Now,
	}
}

// View returns the settings with the bot token masked.
func (s *TelegramSettingsService) View(ctx context.Context) (*SettingsView, error) {
	settings, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	view := &SettingsView{
		Settings:       *settings,
		BotTokenMasked: settings.MaskedToken(),
		HasBotToken:    settings.BotToken != "",
	}
	view.Settings.BotToken = ""
	return view, nil
}

// Update validates and applies the patch. An empty bot token keeps the stored
// one.
func (s *TelegramSettingsService) Update(ctx context.Context, patch domain.SettingsPatch) (*SettingsView, error) {
	if patch.BotToken != nil && *patch.BotToken == "" {
		patch.BotToken = nil
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	if err := s.settings.Update(ctx, patch); err != nil {
		return nil, err
	}
	s.logger.Info("telegram settings updated")
	return s.View(ctx)
}

func validatePatch(p domain.SettingsPatch) error {
	details := map[string]any{}
	if p.BotToken != nil && !botTokenPattern.MatchString(*p.BotToken) {
		details["bot_token"] = "must look like <digits>:<secret>"
	}
	if p.BotUsername != nil && *p.BotUsername != "" && !alphaDash.MatchString(*p.BotUsername) {
		details["bot_username"] = "may only contain letters, numbers, dashes and underscores"
	}
	if p.WebhookURL != nil && *p.WebhookURL != "" && !isAbsoluteURL(*p.WebhookURL) {
		details["webhook_url"] = "must be an absolute URL"
	}
	if p.WelcomeMessage != nil && utf8.RuneCountInString(*p.WelcomeMessage) > maxWelcomeLength {
		details["welcome_message"] = fmt.Sprintf("may not exceed %d characters", maxWelcomeLength)
	}
	if p.SessionTimeout != nil && (*p.SessionTimeout < minSessionTimeout || *p.SessionTimeout > maxSessionTimeout) {
		details["session_timeout"] = fmt.Sprintf("must be between %d and %d", minSessionTimeout, maxSessionTimeout)
	}
	if p.AuthMaxAge != nil && (*p.AuthMaxAge < minAuthMaxAge || *p.AuthMaxAge > maxAuthMaxAge) {
		details["auth_max_age"] = fmt.Sprintf("must be between %d and %d", minAuthMaxAge, maxAuthMaxAge)
	}
	if p.AllowedDomains != nil {
		for _, d := range *p.AllowedDomains {
			if strings.TrimSpace(d) == "" {
				details["allowed_domains"] = "must not contain empty entries"
				break
			}
		}
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid telegram settings", details)
	}
	return nil
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// TestBotToken validates token against the Bot API without storing it.
func (s *TelegramSettingsService) TestBotToken(ctx context.Context, token string) (*botapi.BotInfo, error) {
	if !botTokenPattern.MatchString(token) {
		return nil, apperrors.NewValidationError("invalid bot token", map[string]any{
			"bot_token": "must look like <digits>:<secret>",
		})
	}
	info, err := s.bot.GetMe(ctx, token)
	if err != nil {
		return nil, apperrors.NewBadRequest("INVALID_BOT_TOKEN", err.Error())
	}
	return info, nil
}

// SetupWebhook registers webhookURL with Telegram and stores it.
func (s *TelegramSettingsService) SetupWebhook(ctx context.Context, webhookURL string) (*botapi.WebhookInfo, error) {
	if !isAbsoluteURL(webhookURL) {
		return nil, apperrors.NewValidationError("invalid webhook url", map[string]any{
			"webhook_url": "must be an absolute URL",
		})
	}
	token, err := s.botToken(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.bot.SetWebhook(ctx, token, webhookURL); err != nil {
		s.logger.Error("failed to setup telegram webhook", zap.Error(err))
		return nil, apperrors.NewBadGateway("failed to setup webhook", err)
	}
	if err := s.settings.Update(ctx, domain.SettingsPatch{WebhookURL: &webhookURL}); err != nil {
		return nil, err
	}
	info, err := s.bot.GetWebhookInfo(ctx, token)
	if err != nil {
		return nil, apperrors.NewBadGateway("webhook set but info unavailable", err)
	}
	return info, nil
}

// WebhookInfo returns the webhook state reported by Telegram.
func (s *TelegramSettingsService) WebhookInfo(ctx context.Context) (*botapi.WebhookInfo, error) {
	token, err := s.botToken(ctx)
	if err != nil {
		return nil, err
	}
	info, err := s.bot.GetWebhookInfo(ctx, token)
	if err != nil {
		return nil, apperrors.NewBadGateway("failed to get webhook info", err)
	}
	return info, nil
}

// DeleteWebhook removes the webhook from Telegram and clears the stored URL.
func (s *TelegramSettingsService) DeleteWebhook(ctx context.Context) error {
	token, err := s.botToken(ctx)
	if err != nil {
		return err
	}
	if err := s.bot.DeleteWebhook(ctx, token); err != nil {
		s.logger.Error("failed to delete telegram webhook", zap.Error(err))
		return apperrors.NewBadGateway("failed to delete webhook", err)
	}
	empty := ""
	return s.settings.Update(ctx, domain.SettingsPatch{WebhookURL: &empty})
}

func (s *TelegramSettingsService) botToken(ctx context.Context) (string, error) {
	settings, err := s.settings.Current(ctx)
	if err != nil {
		return "", err
	}
	if settings.BotToken == "" {
		return "", domain.ErrNotConfigured
	}
	return settings.BotToken, nil
}

// Stats reports how many users signed in through Telegram. "Today" starts at
// local midnight of now.
func (s *TelegramSettingsService) Stats(ctx context.Context) (*TelegramStatsView, error) {
	settings, err := s.settings.Current(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if !settings.IsConfigured() {
		return &TelegramStatsView{Configured: false}, nil
	}

	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	counts, err := s.users.TelegramStats(ctx, startOfDay, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}

	view := &TelegramStatsView{
		Configured:           true,
		LoginEnabled:         settings.LoginEnabled,
		SignupEnabled:        settings.SignupEnabled,
		NotificationsEnabled: settings.NotificationsEnabled,
		BotUsername:          settings.BotUsername,
		TotalUsers:           counts.TotalUsers,
		TelegramUsers:        counts.TelegramUsers,
		LinkedToday:          counts.LinkedToday,
		LinkedThisWeek:       counts.LinkedThisWeek,
	}
	if counts.TotalUsers > 0 {
		pct := float64(counts.TelegramUsers) / float64(counts.TotalUsers) * 100
		view.TelegramPercentage = math.Round(pct*100) / 100
	}
	return view, nil
}

// WidgetConfig returns the widget parameters, or a disabled config when
// Telegram login is off.
func (s *TelegramSettingsService) WidgetConfig(ctx context.Context, authURL, lang string) (WidgetConfig, error) {
	settings, err := s.settings.Current(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return WidgetConfig{}, err
	}
	if !settings.IsLoginEnabled() {
		return WidgetConfig{Enabled: false}, nil
	}
	return WidgetConfig{
		Enabled:       true,
		BotUsername:   settings.BotUsername,
		AuthURL:       authURL,
		RequestAccess: "write",
		Size:          "large",
		CornerRadius:  10,
		Lang:          lang,
	}, nil
}
