package dto

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/telegram-auth-service/internal/domain"
	"github.com/spec-kit/telegram-auth-service/internal/service"
	"github.com/spec-kit/telegram-auth-service/internal/telegram/botapi"
)

// ErrMissingClaimFields is returned when id or hash is absent.
var ErrMissingClaimFields = errors.New("missing required telegram data")

// TelegramAuthRequest is the login widget payload. Numeric fields accept
// JSON numbers and numeric strings.
type TelegramAuthRequest struct {
	ID        json.Number `json:"id" form:"id"`
	FirstName *string     `json:"first_name" form:"first_name"`
	LastName  *string     `json:"last_name" form:"last_name"`
	Username  *string     `json:"username" form:"username"`
	PhotoURL  *string     `json:"photo_url" form:"photo_url"`
	AuthDate  json.Number `json:"auth_date" form:"auth_date"`
	Hash      string      `json:"hash" form:"hash"`
}

// Claim converts the payload. Fields left nil were not transmitted.
func (r TelegramAuthRequest) Claim() (domain.IdentityClaim, error) {
	if r.ID == "" || strings.TrimSpace(r.Hash) == "" {
		return domain.IdentityClaim{}, ErrMissingClaimFields
	}
	id, err := strconv.ParseInt(string(r.ID), 10, 64)
	if err != nil {
		return domain.IdentityClaim{}, errors.New("id must be an integer")
	}
	var authDate int64
	if r.AuthDate != "" {
		authDate, err = strconv.ParseInt(string(r.AuthDate), 10, 64)
		if err != nil {
			return domain.IdentityClaim{}, errors.New("auth_date must be an integer")
		}
	}
	return domain.IdentityClaim{
		ID:        id,
		Username:  r.Username,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		PhotoURL:  r.PhotoURL,
		AuthDate:  authDate,
		Hash:      r.Hash,
	}, nil
}

// TelegramAuthResponse is returned after a successful callback.
type TelegramAuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
	Action    string       `json:"action"`
	Message   string       `json:"message"`
}

// TelegramLinkResponse is returned after linking.
type TelegramLinkResponse struct {
	Message           string  `json:"message"`
	TelegramUsername  *string `json:"telegram_username"`
	TelegramFirstName *string `json:"telegram_first_name"`
}

// WidgetConfigResponse configures the frontend widget.
type WidgetConfigResponse struct {
	Enabled       bool   `json:"enabled"`
	BotUsername   string `json:"bot_username,omitempty"`
	AuthURL       string `json:"auth_url,omitempty"`
	RequestAccess string `json:"request_access,omitempty"`
	Size          string `json:"size,omitempty"`
	CornerRadius  string `json:"corner_radius,omitempty"`
	Lang          string `json:"lang,omitempty"`
}

func NewWidgetConfigResponse(cfg service.WidgetConfig) WidgetConfigResponse {
	if !cfg.Enabled {
		return WidgetConfigResponse{Enabled: false}
	}
	return WidgetConfigResponse{
		Enabled:       true,
		BotUsername:   cfg.BotUsername,
		AuthURL:       cfg.AuthURL,
		RequestAccess: cfg.RequestAccess,
		Size:          cfg.Size,
		CornerRadius:  strconv.Itoa(cfg.CornerRadius),
		Lang:          cfg.Lang,
	}
}

// TelegramSettingsResponse is the admin view of the bot settings.
type TelegramSettingsResponse struct {
	ID                       int64     `json:"id"`
	BotTokenMasked           string    `json:"bot_token_masked,omitempty"`
	HasBotToken              bool      `json:"has_bot_token"`
	BotUsername              string    `json:"bot_username"`
	WebhookURL               string    `json:"webhook_url"`
	LoginEnabled             bool      `json:"login_enabled"`
	SignupEnabled            bool      `json:"signup_enabled"`
	NotificationsEnabled     bool      `json:"notifications_enabled"`
	WelcomeMessage           string    `json:"welcome_message"`
	AllowedDomains           []string  `json:"allowed_domains"`
	RequireEmailVerification bool      `json:"require_email_verification"`
	AutoCreateAccount        bool      `json:"auto_create_account"`
	SessionTimeout           int       `json:"session_timeout"`
	AuthMaxAge               int       `json:"auth_max_age"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

func NewTelegramSettingsResponse(v *service.SettingsView) TelegramSettingsResponse {
	s := v.Settings
	domains := s.AllowedDomains
	if domains == nil {
		domains = []string{}
	}
	return TelegramSettingsResponse{
		ID:                       s.ID,
		BotTokenMasked:           v.BotTokenMasked,
		HasBotToken:              v.HasBotToken,
		BotUsername:              s.BotUsername,
		WebhookURL:               s.WebhookURL,
		LoginEnabled:             s.LoginEnabled,
		SignupEnabled:            s.SignupEnabled,
		NotificationsEnabled:     s.NotificationsEnabled,
		WelcomeMessage:           s.WelcomeMessage,
		AllowedDomains:           domains,
		RequireEmailVerification: s.RequireEmailVerification,
		AutoCreateAccount:        s.AutoCreateAccount,
		SessionTimeout:           s.SessionTimeout,
		AuthMaxAge:               s.AuthMaxAge,
		CreatedAt:                s.CreatedAt,
		UpdatedAt:                s.UpdatedAt,
	}
}

// TestBotRequest carries the token to validate.
type TestBotRequest struct {
	BotToken string `json:"bot_token"`
}

// TestBotResponse reports the token check.
type TestBotResponse struct {
	Valid   bool            `json:"valid"`
	BotInfo *botapi.BotInfo `json:"bot_info,omitempty"`
	Message string          `json:"message"`
}

// WebhookSetupRequest carries the webhook endpoint to register.
type WebhookSetupRequest struct {
	WebhookURL string `json:"webhook_url"`
}

// TelegramStatsResponse reports Telegram adoption.
type TelegramStatsResponse struct {
	Configured           bool    `json:"configured"`
	Message              string  `json:"message,omitempty"`
	LoginEnabled         bool    `json:"login_enabled"`
	SignupEnabled        bool    `json:"signup_enabled"`
	NotificationsEnabled bool    `json:"notifications_enabled"`
	TotalUsers           int64   `json:"total_users"`
	TelegramUsers        int64   `json:"telegram_users"`
	TelegramPercentage   float64 `json:"telegram_percentage"`
	LinkedToday          int64   `json:"linked_today"`
	LinkedThisWeek       int64   `json:"linked_this_week"`
	BotUsername          string  `json:"bot_username,omitempty"`
}

func NewTelegramStatsResponse(v *service.TelegramStatsView) TelegramStatsResponse {
	if !v.Configured {
		return TelegramStatsResponse{Configured: false, Message: "Telegram bot is not configured"}
	}
	return TelegramStatsResponse{
		Configured:           true,
		LoginEnabled:         v.LoginEnabled,
		SignupEnabled:        v.SignupEnabled,
		NotificationsEnabled: v.NotificationsEnabled,
		TotalUsers:           v.TotalUsers,
		TelegramUsers:        v.TelegramUsers,
		TelegramPercentage:   v.TelegramPercentage,
		LinkedToday:          v.LinkedToday,
		LinkedThisWeek:       v.LinkedThisWeek,
		BotUsername:          v.BotUsername,
	}
}
