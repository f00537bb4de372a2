package usecase

import (
	"errors"
	"fmt"
)

// Sentinel errors form the closed set of business outcomes. Handlers map
// each one to an envelope code; nothing else leaks to the transport.
var (
	// ErrInvalidDetails indicates a request payload that fails validation.
	ErrInvalidDetails = errors.New("invalid details")
	// ErrInvalidEmail indicates a malformed email address.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrUserExists indicates a registration against an already-taken email.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials indicates an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotVerified indicates a login before the email link was followed.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrAccountDisabled indicates a login against a deactivated account.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrEmailLinkExpired indicates an email-link token past its validity.
	ErrEmailLinkExpired = errors.New("email link expired")
	// ErrUserNotFound indicates an operation against a missing account.
	ErrUserNotFound = errors.New("user not found")
	// ErrMailDispatchFailed indicates the account step succeeded but the
	// outbound email could not be delivered.
	ErrMailDispatchFailed = errors.New("mail dispatch failed")
	// ErrStorageFailure indicates the backing store rejected or timed out
	// on a data-access call.
	ErrStorageFailure = errors.New("storage failure")
)

// storeFault tags an unexpected data-access error with ErrStorageFailure
// while keeping the cause in the chain.
func storeFault(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStorageFailure, err))
}
