package domain

import "time"

// UserRegisteredEvent is emitted after a new account row is inserted.
type UserRegisteredEvent struct {
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
	MailSent     bool      `json:"mail_sent"`
}

// EmailVerifiedEvent is emitted when a verification link is redeemed.
type EmailVerifiedEvent struct {
	EventID    string    `json:"event_id"`
	Email      string    `json:"email"`
	VerifiedAt time.Time `json:"verified_at"`
}

// PasswordChangedEvent is emitted after a password change or reset.
type PasswordChangedEvent struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email"`
	ChangedAt time.Time `json:"changed_at"`
	Source    string    `json:"source"`
}
