package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/solentra/account-service/internal/infra/config"
	"github.com/solentra/account-service/internal/infra/security"
)

const rotatedTestPassword = "N3w!RotatedSecret#4567"

type passwordFixture struct {
	accounts  *AccountService
	passwords *PasswordService
	users     *fakeUserRepository
	mailer    *fakeMailer
	events    *fakePublisher
	tokens    *security.TokenService
}

func newPasswordFixture(t *testing.T) *passwordFixture {
	t.Helper()

	tokens, err := security.NewTokenService([]byte("password-test-signing-key-01234"), time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService returned error: %v", err)
	}

	users := newFakeUserRepository()
	mailer := &fakeMailer{}
	events := &fakePublisher{}
	links := config.LinkSettings{
		EmailVerify:   "https://app.example.com/verifyEmail?token=",
		PasswordReset: "https://app.example.com/resetPassword?token=",
	}

	accounts := NewAccountService(AccountServiceParams{
		Users:  users,
		Tokens: tokens,
		Mailer: mailer,
		Images: &fakeImageStore{},
		Events: events,
		Links:  links,
	})

	passwords := NewPasswordService(PasswordServiceParams{
		Users:        users,
		Tokens:       tokens,
		Mailer:       mailer,
		Events:       events,
		Links:        links,
		SupportEmail: "support@example.com",
	})

	return &passwordFixture{
		accounts:  accounts,
		passwords: passwords,
		users:     users,
		mailer:    mailer,
		events:    events,
		tokens:    tokens,
	}
}

func (fx *passwordFixture) registerVerified(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	user, err := fx.accounts.Register(ctx, registerInput())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if err := fx.users.SetEmailVerified(ctx, user.Email); err != nil {
		t.Fatalf("SetEmailVerified returned error: %v", err)
	}
	return user.ID
}

func TestChangePasswordRotatesCredential(t *testing.T) {
	fx := newPasswordFixture(t)
	ctx := context.Background()
	userID := fx.registerVerified(t)

	if err := fx.passwords.ChangePassword(ctx, userID, strongTestPassword, rotatedTestPassword); err != nil {
		t.Fatalf("ChangePassword returned error: %v", err)
	}

	// The old credential no longer authenticates; the new one does.
	if _, _, err := fx.accounts.Login(ctx, "jane.doe@example.com", strongTestPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password after change: got %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := fx.accounts.Login(ctx, "jane.doe@example.com", rotatedTestPassword); err != nil {
		t.Fatalf("new password after change: %v", err)
	}

	if len(fx.events.changed) != 1 {
		t.Fatalf("expected one changed event, got %d", len(fx.events.changed))
	}
	if fx.events.changed[0].Source != passwordSourceChange {
		t.Fatalf("unexpected event source: %q", fx.events.changed[0].Source)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	fx := newPasswordFixture(t)
	userID := fx.registerVerified(t)

	err := fx.passwords.ChangePassword(context.Background(), userID, "wrong-current", rotatedTestPassword)
	if !errors.Is(err, ErrInvalidDetails) {
		t.Fatalf("wrong current password: got %v, want ErrInvalidDetails", err)
	}
}

func TestChangePasswordRejectsSameValue(t *testing.T) {
	fx := newPasswordFixture(t)
	userID := fx.registerVerified(t)

	err := fx.passwords.ChangePassword(context.Background(), userID, strongTestPassword, strongTestPassword)
	if !errors.Is(err, ErrInvalidDetails) {
		t.Fatalf("unchanged password: got %v, want ErrInvalidDetails", err)
	}
}

func TestChangePasswordUnknownUser(t *testing.T) {
	fx := newPasswordFixture(t)

	err := fx.passwords.ChangePassword(context.Background(), "missing-id", strongTestPassword, rotatedTestPassword)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: got %v, want ErrUserNotFound", err)
	}
}

func TestForgotThenResetPassword(t *testing.T) {
	fx := newPasswordFixture(t)
	ctx := context.Background()
	fx.registerVerified(t)

	if err := fx.passwords.ForgotPassword(ctx, "Jane.Doe@Example.com"); err != nil {
		t.Fatalf("ForgotPassword returned error: %v", err)
	}

	msg, ok := fx.mailer.lastMessage()
	if !ok {
		t.Fatal("reset mail was not sent")
	}
	encoded := linkTokenFromMail(t, msg.HTML, "https://app.example.com/resetPassword?token=")

	if err := fx.passwords.ResetPassword(ctx, encoded, rotatedTestPassword); err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}

	if _, _, err := fx.accounts.Login(ctx, "jane.doe@example.com", rotatedTestPassword); err != nil {
		t.Fatalf("login after reset: %v", err)
	}

	if len(fx.events.changed) != 1 || fx.events.changed[0].Source != passwordSourceReset {
		t.Fatal("reset should publish a changed event with reset source")
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	fx := newPasswordFixture(t)

	err := fx.passwords.ForgotPassword(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown email: got %v, want ErrUserNotFound", err)
	}
}

func TestForgotPasswordMailFailure(t *testing.T) {
	fx := newPasswordFixture(t)
	fx.registerVerified(t)
	fx.mailer.sendErr = errors.New("smtp connection refused")

	err := fx.passwords.ForgotPassword(context.Background(), "jane.doe@example.com")
	if !errors.Is(err, ErrMailDispatchFailed) {
		t.Fatalf("mail failure: got %v, want ErrMailDispatchFailed", err)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	fx := newPasswordFixture(t)
	ctx := context.Background()
	fx.registerVerified(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	fx.tokens.WithClock(func() time.Time { return current })

	if err := fx.passwords.ForgotPassword(ctx, "jane.doe@example.com"); err != nil {
		t.Fatalf("ForgotPassword returned error: %v", err)
	}

	msg, _ := fx.mailer.lastMessage()
	encoded := linkTokenFromMail(t, msg.HTML, "https://app.example.com/resetPassword?token=")

	current = base.Add(2 * time.Hour)
	if err := fx.passwords.ResetPassword(ctx, encoded, rotatedTestPassword); !errors.Is(err, ErrEmailLinkExpired) {
		t.Fatalf("expired token: got %v, want ErrEmailLinkExpired", err)
	}
}

func TestResetPasswordWeakReplacement(t *testing.T) {
	fx := newPasswordFixture(t)
	ctx := context.Background()
	fx.registerVerified(t)

	if err := fx.passwords.ForgotPassword(ctx, "jane.doe@example.com"); err != nil {
		t.Fatalf("ForgotPassword returned error: %v", err)
	}

	msg, _ := fx.mailer.lastMessage()
	encoded := linkTokenFromMail(t, msg.HTML, "https://app.example.com/resetPassword?token=")

	if err := fx.passwords.ResetPassword(ctx, encoded, "password1"); !errors.Is(err, ErrInvalidDetails) {
		t.Fatalf("weak replacement: got %v, want ErrInvalidDetails", err)
	}
}
