package repository

import (
	"context"
	"fmt"

	"github.com/spec-kit/telegram-auth-service/internal/domain"
)

// SettingsRepository reads and writes the Telegram bot settings singleton.
type SettingsRepository interface {
	// Current returns the first settings row or domain.ErrNotFound.
	Current(ctx context.Context) (*domain.BotSettings, error)
	// Update applies the patch to the current row.
	Update(ctx context.Context, patch domain.SettingsPatch) error
}

type settingsRepository struct {
	db DBTX
}

// NewSettingsRepository returns a Postgres-backed implementation.
func NewSettingsRepository(db DBTX) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Current(ctx context.Context) (*domain.BotSettings, error) {
	const query = `
        SELECT id, COALESCE(bot_token, ''), COALESCE(bot_username, ''), COALESCE(webhook_url, ''),
            login_enabled, signup_enabled, notifications_enabled, COALESCE(welcome_message, ''),
            COALESCE(allowed_domains, '{}'), require_email_verification, auto_create_account,
            session_timeout, auth_max_age, created_at, updated_at
        FROM telegram_bot_settings ORDER BY id LIMIT 1`

	var s domain.BotSettings
	if err := r.db.QueryRow(ctx, query).Scan(
		&s.ID,
		&s.BotToken,
		&s.BotUsername,
		&s.WebhookURL,
		&s.LoginEnabled,
		&s.SignupEnabled,
		&s.NotificationsEnabled,
		&s.WelcomeMessage,
		&s.AllowedDomains,
		&s.RequireEmailVerification,
		&s.AutoCreateAccount,
		&s.SessionTimeout,
		&s.AuthMaxAge,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, mapNoRows(err)
	}
	return &s, nil
}

// Update reads the current row, applies the patch and writes every column
// back. Empty strings are stored as NULL.
func (r *settingsRepository) Update(ctx context.Context, patch domain.SettingsPatch) error {
	current, err := r.Current(ctx)
	if err != nil {
		return err
	}
	next := patch.Apply(*current)

	const query = `
        UPDATE telegram_bot_settings SET bot_token=$1, bot_username=$2, webhook_url=$3,
            login_enabled=$4, signup_enabled=$5, notifications_enabled=$6, welcome_message=$7,
            allowed_domains=$8, require_email_verification=$9, auto_create_account=$10,
            session_timeout=$11, auth_max_age=$12, updated_at=NOW()
        WHERE id=$13`

	domains := next.AllowedDomains
	if domains == nil {
		domains = []string{}
	}
	cmd, err := r.db.Exec(ctx, query,
		nullIfEmpty(next.BotToken),
		nullIfEmpty(next.BotUsername),
		nullIfEmpty(next.WebhookURL),
		next.LoginEnabled,
		next.SignupEnabled,
		next.NotificationsEnabled,
		nullIfEmpty(next.WelcomeMessage),
		domains,
		next.RequireEmailVerification,
		next.AutoCreateAccount,
		next.SessionTimeout,
		next.AuthMaxAge,
		current.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("update settings %d: %w", current.ID, domain.ErrNotFound)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
