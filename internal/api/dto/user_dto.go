package dto

import (
	"time"

	"github.com/spec-kit/telegram-auth-service/internal/domain"
)

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the public view of a subscriber.
type UserResponse struct {
	ID                int64      `json:"id"`
	UUID              string     `json:"uuid"`
	Email             string     `json:"email"`
	TelegramID        *int64     `json:"telegram_id"`
	TelegramUsername  *string    `json:"telegram_username"`
	TelegramFirstName *string    `json:"telegram_first_name"`
	TelegramLastName  *string    `json:"telegram_last_name"`
	TelegramPhotoURL  *string    `json:"telegram_photo_url"`
	TelegramLinkedAt  *time.Time `json:"telegram_linked_at"`
	PlanID            *int64     `json:"plan_id"`
	TransferEnable    int64      `json:"transfer_enable"`
	ExpiredAt         *time.Time `json:"expired_at"`
}

// NewUserResponse maps the domain user.
func NewUserResponse(u *domain.User) UserResponse {
	resp := UserResponse{
		ID:             u.ID,
		UUID:           u.UUID,
		Email:          u.Email,
		PlanID:         u.PlanID,
		TransferEnable: u.TransferEnable,
		ExpiredAt:      u.ExpiredAt,
	}
	if u.IsTelegramLinked() {
		id, linkedAt := u.Telegram.ID, u.Telegram.LinkedAt
		resp.TelegramID = &id
		resp.TelegramUsername = u.Telegram.Username
		resp.TelegramFirstName = u.Telegram.FirstName
		resp.TelegramLastName = u.Telegram.LastName
		resp.TelegramPhotoURL = u.Telegram.PhotoURL
		if !linkedAt.IsZero() {
			resp.TelegramLinkedAt = &linkedAt
		}
	}
	return resp
}
