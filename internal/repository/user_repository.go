package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/telegram-auth-service/internal/domain"
)

const telegramIDConstraint = "users_telegram_id_key"

const userColumns = `id, uuid, email, password_hash, token, banned, is_admin,
        plan_id, group_id, transfer_enable, speed_limit, expired_at,
        remind_expire, remind_traffic,
        telegram_id, telegram_username, telegram_first_name, telegram_last_name,
        telegram_photo_url, telegram_linked_at,
        last_login_at, created_at, updated_at`

// UserRepository defines persistence access for subscribers.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	FindByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
	LinkTelegram(ctx context.Context, userID int64, link *domain.TelegramLink) error
	UnlinkTelegram(ctx context.Context, userID int64) error
	TelegramStats(ctx context.Context, startOfDay, weekAgo time.Time) (domain.TelegramStats, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

// Create inserts the user. A taken telegram_id yields domain.ErrIdentifierTaken,
// any other unique violation (email, uuid, token) domain.ErrAlreadyExists.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (uuid, email, password_hash, token, banned, is_admin,
            plan_id, group_id, transfer_enable, speed_limit, expired_at,
            remind_expire, remind_traffic,
            telegram_id, telegram_username, telegram_first_name, telegram_last_name,
            telegram_photo_url, telegram_linked_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
        RETURNING id, created_at, updated_at`

	tg := telegramArgs(user.Telegram)
	err := r.db.QueryRow(ctx, query,
		user.UUID,
		user.Email,
		user.PasswordHash,
		user.Token,
		user.Banned,
		user.IsAdmin,
		user.PlanID,
		user.GroupID,
		user.TransferEnable,
		user.SpeedLimit,
		user.ExpiredAt,
		user.RemindExpire,
		user.RemindTraffic,
		tg.id,
		tg.username,
		tg.firstName,
		tg.lastName,
		tg.photoURL,
		tg.linkedAt,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return mapWriteError(err)
}

// Update persists the mutable profile fields, including the Telegram display
// fields and last login stamp. The Telegram identifier itself only changes
// through LinkTelegram and UnlinkTelegram.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET email=$1, password_hash=$2, banned=$3,
            telegram_username=$4, telegram_first_name=$5, telegram_last_name=$6,
            telegram_photo_url=$7, last_login_at=$8, updated_at=NOW()
        WHERE id=$9`

	tg := telegramArgs(user.Telegram)
	cmd, err := r.db.Exec(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Banned,
		tg.username,
		tg.firstName,
		tg.lastName,
		tg.photoURL,
		user.LastLoginAt,
		user.ID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("update user %d: %w", user.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *userRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id=$1`
	return scanUser(r.db.QueryRow(ctx, query, telegramID))
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE email=$1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// LinkTelegram binds a Telegram account to a user that has none. The guard on
// telegram_id makes a concurrent link observable as domain.ErrAlreadyLinked.
func (r *userRepository) LinkTelegram(ctx context.Context, userID int64, link *domain.TelegramLink) error {
	const query = `
        UPDATE users SET telegram_id=$1, telegram_username=$2, telegram_first_name=$3,
            telegram_last_name=$4, telegram_photo_url=$5, telegram_linked_at=$6, updated_at=NOW()
        WHERE id=$7 AND telegram_id IS NULL`

	tg := telegramArgs(link)
	cmd, err := r.db.Exec(ctx, query,
		tg.id,
		tg.username,
		tg.firstName,
		tg.lastName,
		tg.photoURL,
		tg.linkedAt,
		userID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("link user %d: %w", userID, domain.ErrAlreadyLinked)
	}
	return nil
}

// UnlinkTelegram clears the identifier and every derived field in one statement.
func (r *userRepository) UnlinkTelegram(ctx context.Context, userID int64) error {
	const query = `
        UPDATE users SET telegram_id=NULL, telegram_username=NULL, telegram_first_name=NULL,
            telegram_last_name=NULL, telegram_photo_url=NULL, telegram_linked_at=NULL, updated_at=NOW()
        WHERE id=$1 AND telegram_id IS NOT NULL`

	cmd, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("unlink user %d: %w", userID, domain.ErrNotLinked)
	}
	return nil
}

func (r *userRepository) TelegramStats(ctx context.Context, startOfDay, weekAgo time.Time) (domain.TelegramStats, error) {
	const query = `
        SELECT COUNT(*),
            COUNT(telegram_id),
            COUNT(telegram_id) FILTER (WHERE telegram_linked_at >= $1),
            COUNT(telegram_id) FILTER (WHERE telegram_linked_at >= $2)
        FROM users`

	var stats domain.TelegramStats
	if err := r.db.QueryRow(ctx, query, startOfDay, weekAgo).Scan(
		&stats.TotalUsers,
		&stats.TelegramUsers,
		&stats.LinkedToday,
		&stats.LinkedThisWeek,
	); err != nil {
		return domain.TelegramStats{}, err
	}
	return stats, nil
}

type telegramColumns struct {
	id        *int64
	username  *string
	firstName *string
	lastName  *string
	photoURL  *string
	linkedAt  *time.Time
}

func telegramArgs(link *domain.TelegramLink) telegramColumns {
	if link == nil || link.ID == 0 {
		return telegramColumns{}
	}
	id := link.ID
	linkedAt := link.LinkedAt
	return telegramColumns{
		id:        &id,
		username:  link.Username,
		firstName: link.FirstName,
		lastName:  link.LastName,
		photoURL:  link.PhotoURL,
		linkedAt:  &linkedAt,
	}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user domain.User
		tg   telegramColumns
	)
	if err := row.Scan(
		&user.ID,
		&user.UUID,
		&user.Email,
		&user.PasswordHash,
		&user.Token,
		&user.Banned,
		&user.IsAdmin,
		&user.PlanID,
		&user.GroupID,
		&user.TransferEnable,
		&user.SpeedLimit,
		&user.ExpiredAt,
		&user.RemindExpire,
		&user.RemindTraffic,
		&tg.id,
		&tg.username,
		&tg.firstName,
		&tg.lastName,
		&tg.photoURL,
		&tg.linkedAt,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, mapNoRows(err)
	}

	if tg.id != nil {
		user.Telegram = &domain.TelegramLink{
			ID:        *tg.id,
			Username:  tg.username,
			FirstName: tg.firstName,
			LastName:  tg.lastName,
			PhotoURL:  tg.photoURL,
		}
		if tg.linkedAt != nil {
			user.Telegram.LinkedAt = *tg.linkedAt
		}
	}
	return &user, nil
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	constraint, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	if constraint == telegramIDConstraint {
		return fmt.Errorf("%w: %w", domain.ErrIdentifierTaken, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrAlreadyExists, err)
}
