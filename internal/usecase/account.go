package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
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

var emailFormat = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	defaultStoreTimeout = 5 * time.Second
	defaultMailTimeout  = 10 * time.Second
)

// AccountService handles registration, verification, login, and profile
// operations.
type AccountService struct {
	users        port.UserRepository
	countries    port.CountryRepository
	tokens       *security.TokenService
	validator    *security.PasswordValidator
	mailer       port.MailDispatcher
	templates    *mail.Templates
	images       port.ProfileImageStore
	events       port.EventPublisher
	links        config.LinkSettings
	storeTimeout time.Duration
	mailTimeout  time.Duration
	log          *zap.Logger
	now          func() time.Time
}

// AccountServiceParams bundles the dependencies for NewAccountService.
type AccountServiceParams struct {
	Users        port.UserRepository
	Countries    port.CountryRepository
	Tokens       *security.TokenService
	Validator    *security.PasswordValidator
	Mailer       port.MailDispatcher
	Templates    *mail.Templates
	Images       port.ProfileImageStore
	Events       port.EventPublisher
	Links        config.LinkSettings
	StoreTimeout time.Duration
	MailTimeout  time.Duration
	Logger       *zap.Logger
}

// NewAccountService constructs an account service.
func NewAccountService(p AccountServiceParams) *AccountService {
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

	return &AccountService{
		users:        p.Users,
		countries:    p.Countries,
		tokens:       p.Tokens,
		validator:    p.Validator,
		mailer:       p.Mailer,
		templates:    p.Templates,
		images:       p.Images,
		events:       p.Events,
		links:        p.Links,
		storeTimeout: p.StoreTimeout,
		mailTimeout:  p.MailTimeout,
		log:          p.Logger,
		now:          time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *AccountService) WithClock(now func() time.Time) *AccountService {
	s.now = now
	return s
}

// RegisterInput carries the attributes accepted at sign-up.
type RegisterInput struct {
	FirstName    string
	MiddleName   *string
	LastName     string
	Email        string
	Password     string
	CompanyName  *string
	MobileNumber *string
	Address      *string
	Country      *string
	RegionCode   *string
	CountryID    *string
}

// Register creates an unverified account and sends the verification email.
// A mail delivery failure does not roll back the insert: the created user is
// returned alongside ErrMailDispatchFailed.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if !emailFormat.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return nil, fmt.Errorf("%w: first and last name are required", ErrInvalidDetails)
	}
	if err := s.validator.Validate(input.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDetails, err)
	}
	if err := s.resolveCountry(ctx, input.CountryID); err != nil {
		return nil, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := domain.User{
		ID:              uuid.NewString(),
		FirstName:       strings.TrimSpace(input.FirstName),
		MiddleName:      input.MiddleName,
		LastName:        strings.TrimSpace(input.LastName),
		Email:           email,
		PasswordHash:    passwordHash,
		CompanyName:     input.CompanyName,
		MobileNumber:    input.MobileNumber,
		Address:         input.Address,
		Country:         input.Country,
		RegionCode:      input.RegionCode,
		CountryID:       input.CountryID,
		IsEmailVerified: false,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.users.Create(storeCtx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, storeFault("create user", err)
	}

	sanitized := user.Sanitized()

	mailErr := s.sendVerificationMail(ctx, user)
	s.publishRegistered(ctx, user, mailErr == nil)

	if mailErr != nil {
		s.log.Warn("verification mail not sent",
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(mailErr),
		)
		return &sanitized, ErrMailDispatchFailed
	}

	return &sanitized, nil
}

// Countries lists the country reference table, ordered by name.
func (s *AccountService) Countries(ctx context.Context) ([]domain.Country, error) {
	if s.countries == nil {
		return []domain.Country{}, nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	countries, err := s.countries.List(storeCtx)
	if err != nil {
		return nil, storeFault("list countries", err)
	}
	return countries, nil
}

// resolveCountry checks the optional country reference against the lookup
// table so the insert never trips the foreign key.
func (s *AccountService) resolveCountry(ctx context.Context, countryID *string) error {
	if countryID == nil || s.countries == nil {
		return nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if _, err := s.countries.GetByID(storeCtx, *countryID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: unknown country", ErrInvalidDetails)
		}
		return storeFault("resolve country", err)
	}
	return nil
}

func (s *AccountService) sendVerificationMail(ctx context.Context, user domain.User) error {
	token, err := s.tokens.MintEmailToken(user.Email)
	if err != nil {
		return fmt.Errorf("mint verification token: %w", err)
	}

	link := s.links.EmailVerify + security.EncodeLinkToken(token)

	mailCtx, cancel := context.WithTimeout(ctx, s.mailTimeout)
	defer cancel()

	return s.mailer.Send(mailCtx, port.MailMessage{
		To:      user.Email,
		Subject: "Verify your email address",
		HTML:    s.templates.RenderVerification(fullName(user), link),
	})
}

func (s *AccountService) publishRegistered(ctx context.Context, user domain.User, mailSent bool) {
	if s.events == nil {
		return
	}
	event := domain.UserRegisteredEvent{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		Email:        user.Email,
		RegisteredAt: user.CreatedAt,
		MailSent:     mailSent,
	}
	if err := s.events.PublishUserRegistered(ctx, event); err != nil {
		s.log.Warn("publish user registered event", zap.Error(err))
	}
}

// VerifyEmail marks the account behind an email-link token as verified.
func (s *AccountService) VerifyEmail(ctx context.Context, encodedToken string) error {
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

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.users.SetEmailVerified(storeCtx, email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return storeFault("set email verified", err)
	}

	if s.events != nil {
		event := domain.EmailVerifiedEvent{
			EventID:    uuid.NewString(),
			Email:      email,
			VerifiedAt: s.now().UTC(),
		}
		if err := s.events.PublishEmailVerified(ctx, event); err != nil {
			s.log.Warn("publish email verified event", zap.Error(err))
		}
	}

	return nil
}

// Login authenticates a user and mints a session token. Credential failure
// is reported before the disabled and unverified states so that probing
// reveals nothing about accounts it cannot sign into.
func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !emailFormat.MatchString(email) {
		return nil, "", ErrInvalidEmail
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.users.GetByEmailWithCountry(storeCtx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", storeFault("lookup user", err)
	}

	match, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return nil, "", ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, "", ErrAccountDisabled
	}
	if !user.IsEmailVerified {
		return nil, "", ErrEmailNotVerified
	}

	token, err := s.tokens.MintSessionToken(domain.SessionUser{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
	})
	if err != nil {
		return nil, "", fmt.Errorf("mint session token: %w", err)
	}

	sanitized := user.Sanitized()
	return &sanitized, token, nil
}

// Profile fetches the account with its country reference resolved.
func (s *AccountService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.users.GetByIDWithCountry(storeCtx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeFault("fetch profile", err)
	}

	sanitized := user.Sanitized()
	return &sanitized, nil
}

// UpdateProfile applies a partial profile update for the authenticated user.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, patch domain.ProfilePatch) error {
	if strings.TrimSpace(patch.FirstName) == "" ||
		strings.TrimSpace(patch.LastName) == "" ||
		strings.TrimSpace(patch.Address) == "" {
		return fmt.Errorf("%w: first name, last name, and address are required", ErrInvalidDetails)
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.users.UpdateProfile(storeCtx, userID, patch); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return storeFault("update profile", err)
	}

	return nil
}

// UploadProfilePicture decodes a base64 data URI and stores the image keyed
// by user and timestamp. The key is returned to the caller but never linked
// back to the user record.
func (s *AccountService) UploadProfilePicture(ctx context.Context, userID, dataURI string) (string, error) {
	payload := strings.TrimSpace(dataURI)
	contentType := "image/png"

	if strings.HasPrefix(payload, "data:") {
		rest := strings.TrimPrefix(payload, "data:")
		meta, encoded, found := strings.Cut(rest, ",")
		if !found {
			return "", fmt.Errorf("%w: malformed image data", ErrInvalidDetails)
		}
		if mime, ok := strings.CutSuffix(meta, ";base64"); ok && mime != "" {
			contentType = mime
		}
		payload = encoded
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: image is not valid base64", ErrInvalidDetails)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: image data is empty", ErrInvalidDetails)
	}

	key := fmt.Sprintf("profile/%s/%d%s", userID, s.now().UnixNano(), extensionFor(contentType))

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	stored, err := s.images.Put(storeCtx, key, contentType, data)
	if err != nil {
		return "", storeFault("store profile picture", err)
	}

	return stored, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func fullName(user domain.User) string {
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}
