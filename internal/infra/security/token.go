package security

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/solentra/account-service/internal/core/domain"
)

var (
	// ErrTokenExpired marks a token that was once valid but has lapsed.
	ErrTokenExpired = errors.New("token: expired")
	// ErrTokenInvalid marks a token that fails signature or structural checks.
	ErrTokenInvalid = errors.New("token: invalid")
)

// SessionClaims wraps the authenticated user snapshot carried by every token.
// The payload lives under a single "data" claim next to the registered set.
type SessionClaims struct {
	Data json.RawMessage `json:"data"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies HS256 tokens for sessions and email links.
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewTokenService builds a service around a shared signing key. ttl bounds
// every minted token; zero falls back to 24 hours.
func NewTokenService(signingKey []byte, ttl time.Duration) (*TokenService, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("token: signing key is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &TokenService{
		signingKey: signingKey,
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// WithClock overrides the time source. Test hook.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Mint signs an arbitrary JSON-serializable payload into a token.
func (s *TokenService) Mint(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("token: marshal payload: %w", err)
	}

	now := s.now()
	claims := &SessionClaims{
		Data: data,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}

	return signed, nil
}

// Verify parses a token, distinguishing expiry from every other failure,
// and unmarshals the data claim into out when out is non-nil.
func (s *TokenService) Verify(token string, out any) error {
	if token == "" {
		return ErrTokenInvalid
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !parsed.Valid {
		return ErrTokenInvalid
	}

	if out != nil {
		if err := json.Unmarshal(claims.Data, out); err != nil {
			return ErrTokenInvalid
		}
	}

	return nil
}

// MintEmailToken issues a token carrying only an email address, used for
// verification and password-reset links.
func (s *TokenService) MintEmailToken(email string) (string, error) {
	return s.Mint(email)
}

// VerifyEmailToken validates an email-link token and returns the address.
func (s *TokenService) VerifyEmailToken(token string) (string, error) {
	var email string
	if err := s.Verify(token, &email); err != nil {
		return "", err
	}
	if email == "" {
		return "", ErrTokenInvalid
	}
	return email, nil
}

// MintSessionToken issues an authenticated session token for a user.
func (s *TokenService) MintSessionToken(user domain.SessionUser) (string, error) {
	return s.Mint(user)
}

// VerifySessionToken validates a session token and returns the embedded user.
func (s *TokenService) VerifySessionToken(token string) (*domain.SessionUser, error) {
	var user domain.SessionUser
	if err := s.Verify(token, &user); err != nil {
		return nil, err
	}
	if user.ID == "" || user.Email == "" {
		return nil, ErrTokenInvalid
	}
	return &user, nil
}

// EncodeLinkToken hex-encodes a signed token so it survives inside email
// hyperlinks without URL-escaping surprises.
func EncodeLinkToken(token string) string {
	return hex.EncodeToString([]byte(token))
}

// DecodeLinkToken reverses EncodeLinkToken.
func DecodeLinkToken(encoded string) (string, error) {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return "", ErrTokenInvalid
	}
	return string(raw), nil
}
