package domain

import (
	"slices"
	"strings"
	"time"
)

const (
	DefaultSessionTimeout = 3600
	DefaultAuthMaxAge     = 3600
)

// BotSettings is an immutable snapshot of the Telegram bot configuration as
// seen at decision time.
type BotSettings struct {
	ID                       int64     `json:"id"`
	BotToken                 string    `json:"bot_token"`
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

// IsConfigured reports whether both the bot token and username are set.
func (s *BotSettings) IsConfigured() bool {
	return s != nil && s.BotToken != "" && s.BotUsername != ""
}

func (s *BotSettings) IsLoginEnabled() bool {
	return s.IsConfigured() && s.LoginEnabled
}

func (s *BotSettings) IsSignupEnabled() bool {
	return s.IsConfigured() && s.SignupEnabled
}

// IsDomainAllowed reports whether signups are accepted from domain. An empty
// allow-list means no restriction.
func (s *BotSettings) IsDomainAllowed(domain string) bool {
	if s == nil || len(s.AllowedDomains) == 0 {
		return true
	}
	return slices.Contains(s.AllowedDomains, domain)
}

// WantsWelcome reports whether new accounts should receive the welcome message.
func (s *BotSettings) WantsWelcome() bool {
	return s != nil && s.NotificationsEnabled && strings.TrimSpace(s.WelcomeMessage) != ""
}

// MaxAuthAge returns the freshness window for widget data in seconds.
func (s *BotSettings) MaxAuthAge() int64 {
	if s == nil || s.AuthMaxAge <= 0 {
		return DefaultAuthMaxAge
	}
	return int64(s.AuthMaxAge)
}

// SessionTTL returns the lifetime of sessions issued after Telegram login.
func (s *BotSettings) SessionTTL() time.Duration {
	if s == nil || s.SessionTimeout <= 0 {
		return DefaultSessionTimeout * time.Second
	}
	return time.Duration(s.SessionTimeout) * time.Second
}

// MaskedToken renders the bot token for display: "bot" followed by stars and
// the last three characters.
func (s *BotSettings) MaskedToken() string {
	if s == nil || s.BotToken == "" {
		return ""
	}
	stars := len(s.BotToken) - 6
	if stars < 0 {
		stars = 0
	}
	tail := s.BotToken
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}
	return "bot" + strings.Repeat("*", stars) + tail
}

// SettingsPatch carries a partial settings update; nil fields are untouched.
type SettingsPatch struct {
	BotToken                 *string   `json:"bot_token"`
	BotUsername              *string   `json:"bot_username"`
	WebhookURL               *string   `json:"webhook_url"`
	LoginEnabled             *bool     `json:"login_enabled"`
	SignupEnabled            *bool     `json:"signup_enabled"`
	NotificationsEnabled     *bool     `json:"notifications_enabled"`
	WelcomeMessage           *string   `json:"welcome_message"`
	AllowedDomains           *[]string `json:"allowed_domains"`
	RequireEmailVerification *bool     `json:"require_email_verification"`
	AutoCreateAccount        *bool     `json:"auto_create_account"`
	SessionTimeout           *int      `json:"session_timeout"`
	AuthMaxAge               *int      `json:"auth_max_age"`
}

// Apply returns a copy of s with the patch applied.
func (p SettingsPatch) Apply(s BotSettings) BotSettings {
	if p.BotToken != nil {
		s.BotToken = *p.BotToken
	}
	if p.BotUsername != nil {
		s.BotUsername = *p.BotUsername
	}
	if p.WebhookURL != nil {
		s.WebhookURL = *p.WebhookURL
	}
	if p.LoginEnabled != nil {
		s.LoginEnabled = *p.LoginEnabled
	}
	if p.SignupEnabled != nil {
		s.SignupEnabled = *p.SignupEnabled
	}
	if p.NotificationsEnabled != nil {
		s.NotificationsEnabled = *p.NotificationsEnabled
	}
	if p.WelcomeMessage != nil {
		s.WelcomeMessage = *p.WelcomeMessage
	}
	if p.AllowedDomains != nil {
		s.AllowedDomains = slices.Clone(*p.AllowedDomains)
	}
	if p.RequireEmailVerification != nil {
		s.RequireEmailVerification = *p.RequireEmailVerification
	}
	if p.AutoCreateAccount != nil {
		s.AutoCreateAccount = *p.AutoCreateAccount
	}
	if p.SessionTimeout != nil {
		s.SessionTimeout = *p.SessionTimeout
	}
	if p.AuthMaxAge != nil {
		s.AuthMaxAge = *p.AuthMaxAge
	}
	return s
}
