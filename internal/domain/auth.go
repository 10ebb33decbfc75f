package domain

import "time"

// Token represents issued session token metadata.
type Token struct {
	Value     string
	SubjectID int64
	Admin     bool
	ExpiresAt time.Time
	IssuedAt  time.Time
}
