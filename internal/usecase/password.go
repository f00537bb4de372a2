package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solentra/account-service/internal/core/domain"
	"github.com/solentra/account-service/internal/core/port"
	"github.com/solentra/account-service/internal/infra/config"
	"github.com/solentra/account-service/internal/infra/logger"
	"github.com/solentra/account-service/internal/infra/mail"
	"github.com/solentra/account-service/internal/infra/security"
	"github.com/solentra/account-service/internal/repository"
)

const (
	passwordSourceChange = "change"
	passwordSourceReset  = "reset"
)

// PasswordService covers credential rotation: authenticated change,
// forgotten-password email, and token-based reset.
type PasswordService struct {
	users        port.UserRepository
	tokens       *security.TokenService
	validator    *security.PasswordValidator
	mailer       port.MailDispatcher
	templates    *mail.Templates
	events       port.EventPublisher
	links        config.LinkSettings
	supportEmail string
	storeTimeout time.Duration
	mailTimeout  time.Duration
	log          *zap.Logger
	now          func() time.Time
}

// PasswordServiceParams bundles the dependencies for NewPasswordService.
type PasswordServiceParams struct {
	Users        port.UserRepository
	Tokens       *security.TokenService
	Validator    *security.PasswordValidator
	Mailer       port.MailDispatcher
	Templates    *mail.Templates
	Events       port.EventPublisher
	Links        config.LinkSettings
	SupportEmail string
	StoreTimeout time.Duration
	MailTimeout  time.Duration
	Logger       *zap.Logger
}

// NewPasswordService constructs a password service.
func NewPasswordService(p PasswordServiceParams) *PasswordService {
	if p.Validator == nil {
		p.Validator = security.DefaultPasswordValidator()
	}
	if p.StoreTimeout <= 0 {
		p.StoreTimeout = defaultStoreTimeout
	}
	if p.MailTimeout <= 0 {
		p.MailTimeout = defaultMailTimeout
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Templates == nil {
		p.Templates = mail.DefaultTemplates()
	}

	return &PasswordService{
		users:        p.Users,
		tokens:       p.Tokens,
		validator:    p.Validator,
		mailer:       p.Mailer,
		templates:    p.Templates,
		events:       p.Events,
		links:        p.Links,
		supportEmail: p.SupportEmail,
		storeTimeout: p.StoreTimeout,
		mailTimeout:  p.MailTimeout,
		log:          p.Logger,
		now:          time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *PasswordService) WithClock(now func() time.Time) *PasswordService {
	s.now = now
	return s
}

// ChangePassword rotates the credential for an authenticated user after
// verifying the current one.
func (s *PasswordService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	storedHash, err := s.users.GetPasswordHash(storeCtx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return storeFault("fetch password hash", err)
	}

	match, err := security.VerifyPassword(oldPassword, storedHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return fmt.Errorf("%w: current password is incorrect", ErrInvalidDetails)
	}

	if err := s.validateNew(newPassword, oldPassword); err != nil {
		return err
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	updateCtx, cancelUpdate := context.WithTimeout(ctx, s.storeTimeout)
	defer cancelUpdate()

	if err := s.users.UpdatePasswordByID(updateCtx, userID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return storeFault("update password", err)
	}

	s.notifyChanged(ctx, userID, passwordSourceChange)
	return nil
}

// ForgotPassword sends a reset link to a registered address.
func (s *PasswordService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if !emailFormat.MatchString(email) {
		return ErrInvalidEmail
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.users.GetByEmail(storeCtx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return storeFault("lookup user", err)
	}

	token, err := s.tokens.MintEmailToken(user.Email)
	if err != nil {
		return fmt.Errorf("mint reset token: %w", err)
	}

	link := s.links.PasswordReset + security.EncodeLinkToken(token)

	mailCtx, cancelMail := context.WithTimeout(ctx, s.mailTimeout)
	defer cancelMail()

	err = s.mailer.Send(mailCtx, port.MailMessage{
		To:      user.Email,
		Subject: "Reset your password",
		HTML:    s.templates.RenderPasswordReset(fullName(*user), link, user.Email),
	})
	if err != nil {
		s.log.Warn("reset mail not sent",
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(err),
		)
		return ErrMailDispatchFailed
	}

	return nil
}

// ResetPassword sets a new credential for the account named by a valid
// reset token.
func (s *PasswordService) ResetPassword(ctx context.Context, encodedToken, newPassword string) error {
	token, err := security.DecodeLinkToken(encodedToken)
	if err != nil {
		return err
	}

	email, err := s.tokens.VerifyEmailToken(token)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return ErrEmailLinkExpired
		}
		return err
	}

	if err := s.validateNew(newPassword, ""); err != nil {
		return err
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.users.UpdatePasswordByEmail(storeCtx, email, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return storeFault("update password", err)
	}

	s.notifyChangedByEmail(ctx, email, passwordSourceReset)
	return nil
}

func (s *PasswordService) validateNew(newPassword, oldPassword string) error {
	rules := []security.PasswordRule{s.validator}
	if oldPassword != "" {
		rules = append(rules, security.RequireDifferentFrom(oldPassword))
	}
	for _, rule := range rules {
		if err := rule.Validate(newPassword); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDetails, err)
		}
	}
	return nil
}

// notifyChanged sends the password-changed notification and publishes the
// change event. Both are best-effort: the rotation itself already succeeded.
func (s *PasswordService) notifyChanged(ctx context.Context, userID, source string) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.users.GetByID(storeCtx, userID)
	if err != nil {
		s.log.Warn("password change notification skipped", zap.Error(err))
		return
	}

	s.dispatchChanged(ctx, *user, source)
}

func (s *PasswordService) notifyChangedByEmail(ctx context.Context, email, source string) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.users.GetByEmail(storeCtx, email)
	if err != nil {
		s.log.Warn("password change notification skipped", zap.Error(err))
		return
	}

	s.dispatchChanged(ctx, *user, source)
}

func (s *PasswordService) dispatchChanged(ctx context.Context, user domain.User, source string) {
	mailCtx, cancel := context.WithTimeout(ctx, s.mailTimeout)
	defer cancel()

	err := s.mailer.Send(mailCtx, port.MailMessage{
		To:      user.Email,
		Subject: "Your password was changed",
		HTML:    s.templates.RenderPasswordChanged(fullName(user), s.supportEmail, user.Email),
	})
	if err != nil {
		s.log.Warn("password changed mail not sent",
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(err),
		)
	}

	if s.events != nil {
		event := domain.PasswordChangedEvent{
			EventID:   uuid.NewString(),
			UserID:    user.ID,
			Email:     user.Email,
			ChangedAt: s.now().UTC(),
			Source:    source,
		}
		if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
			s.log.Warn("publish password changed event", zap.Error(err))
		}
	}
}
