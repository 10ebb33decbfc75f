package domain

import "time"

// TelegramLink is the Telegram account bound to a local user. A nil link on
// User means the account is not linked.
type TelegramLink struct {
	ID        int64
	Username  *string
	FirstName *string
	LastName  *string
	PhotoURL  *string
	LinkedAt  time.Time
}

// User is the domain model for subscribers.
type User struct {
	ID             int64
	UUID           string
	Email          string
	PasswordHash   string
	Token          string
	Banned         bool
	IsAdmin        bool
	PlanID         *int64
	GroupID        *int64
	TransferEnable int64
	SpeedLimit     *int64
	ExpiredAt      *time.Time
	RemindExpire   bool
	RemindTraffic  bool
	Telegram       *TelegramLink
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsTelegramLinked reports whether the user carries a Telegram identifier.
func (u *User) IsTelegramLinked() bool {
	return u != nil && u.Telegram != nil && u.Telegram.ID != 0
}

// TelegramStats aggregates Telegram adoption counters for the admin panel.
type TelegramStats struct {
	TotalUsers     int64
	TelegramUsers  int64
	LinkedToday    int64
	LinkedThisWeek int64
}
