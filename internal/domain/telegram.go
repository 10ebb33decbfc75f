package domain

import (
	"strconv"
	"strings"
)

// Field names of the Telegram Login Widget payload.
const (
	ClaimFieldID        = "id"
	ClaimFieldUsername  = "username"
	ClaimFieldFirstName = "first_name"
	ClaimFieldLastName  = "last_name"
	ClaimFieldPhotoURL  = "photo_url"
	ClaimFieldAuthDate  = "auth_date"
	ClaimFieldHash      = "hash"
)

// IdentityClaim is the set of fields the login widget hands to the client.
// Optional fields are nil when the widget did not send them; an empty string
// is a transmitted value and takes part in the data-check string.
type IdentityClaim struct {
	ID        int64
	Username  *string
	FirstName *string
	LastName  *string
	PhotoURL  *string
	AuthDate  int64
	Hash      string
}

// Valid reports whether the required identifier and tag are present.
func (c IdentityClaim) Valid() bool {
	return c.ID != 0 && strings.TrimSpace(c.Hash) != ""
}

// DataFields returns every transmitted field except the hash, keyed by the
// widget field name.
func (c IdentityClaim) DataFields() map[string]string {
	fields := map[string]string{
		ClaimFieldID: strconv.FormatInt(c.ID, 10),
	}
	if c.AuthDate != 0 {
		fields[ClaimFieldAuthDate] = strconv.FormatInt(c.AuthDate, 10)
	}
	optional := map[string]*string{
		ClaimFieldUsername:  c.Username,
		ClaimFieldFirstName: c.FirstName,
		ClaimFieldLastName:  c.LastName,
		ClaimFieldPhotoURL:  c.PhotoURL,
	}
	for key, val := range optional {
		if val != nil {
			fields[key] = *val
		}
	}
	return fields
}

// Link converts the claim into the link record stored on the user.
func (c IdentityClaim) Link() *TelegramLink {
	return &TelegramLink{
		ID:        c.ID,
		Username:  c.Username,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		PhotoURL:  c.PhotoURL,
	}
}

// StringPtr is a small helper for building optional claim fields.
func StringPtr(s string) *string {
	return &s
}
