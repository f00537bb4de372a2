package domain

import "time"

// User is the account aggregate persisted in the users table.
type User struct {
	ID              string
	FirstName       string
	MiddleName      *string
	LastName        string
	Email           string
	PasswordHash    string
	CompanyName     *string
	MobileNumber    *string
	Address         *string
	Country         *string
	RegionCode      *string
	CountryID       *string
	CountryRef      *Country
	IsEmailVerified bool
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Sanitized returns a copy safe to hand back to callers: the stored
// password hash is never serialized into a response envelope.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}

// Country is an immutable reference row resolved during joined lookups.
type Country struct {
	ID   string
	Code string
	Name string
}

// SessionUser is the subset of account data embedded in a session token.
type SessionUser struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"emailAddress"`
}

// ProfilePatch carries the mutable profile fields for a partial update.
// Nil pointers are left untouched by the store adapter.
type ProfilePatch struct {
	FirstName    string
	MiddleName   *string
	LastName     string
	CompanyName  *string
	MobileNumber *string
	Address      string
	Country      *string
	RegionCode   *string
	CountryID    *string
}
