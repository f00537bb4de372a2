package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/solentra/account-service/internal/core/domain"
	"github.com/solentra/account-service/internal/core/port"
	"github.com/solentra/account-service/internal/infra/config"
	"github.com/solentra/account-service/internal/infra/security"
	"github.com/solentra/account-service/internal/repository"
	"github.com/solentra/account-service/internal/transport/http/middleware"
	"github.com/solentra/account-service/internal/usecase"
)

const handlerTestPassword = "Sup3r!SecurePass#7890"

type memoryUserRepo struct {
	users    map[string]*domain.User
	failWith error
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: map[string]*domain.User{}}
}

func (m *memoryUserRepo) Create(_ context.Context, user domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrDuplicate
	}
	copied := user
	m.users[user.Email] = &copied
	return nil
}

func (m *memoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	user, ok := m.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *memoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUserRepo) GetPasswordHash(ctx context.Context, id string) (string, error) {
	user, err := m.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.PasswordHash, nil
}

func (m *memoryUserRepo) GetByEmailWithCountry(ctx context.Context, email string) (*domain.User, error) {
	return m.GetByEmail(ctx, email)
}

func (m *memoryUserRepo) GetByIDWithCountry(ctx context.Context, id string) (*domain.User, error) {
	return m.GetByID(ctx, id)
}

func (m *memoryUserRepo) SetEmailVerified(_ context.Context, email string) error {
	user, ok := m.users[email]
	if !ok {
		return repository.ErrNotFound
	}
	user.IsEmailVerified = true
	return nil
}

func (m *memoryUserRepo) UpdatePasswordByID(_ context.Context, id, hash string) error {
	for _, user := range m.users {
		if user.ID == id {
			user.PasswordHash = hash
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memoryUserRepo) UpdatePasswordByEmail(_ context.Context, email, hash string) error {
	user, ok := m.users[email]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = hash
	return nil
}

func (m *memoryUserRepo) UpdateProfile(_ context.Context, id string, patch domain.ProfilePatch) error {
	for _, user := range m.users {
		if user.ID == id {
			user.FirstName = patch.FirstName
			user.LastName = patch.LastName
			user.Address = &patch.Address
			return nil
		}
	}
	return repository.ErrNotFound
}

type memoryMailer struct {
	sent    []port.MailMessage
	sendErr error
}

func (m *memoryMailer) Send(_ context.Context, msg port.MailMessage) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

type memoryCountryRepo struct {
	countries []domain.Country
	failWith  error
}

func (m *memoryCountryRepo) GetByID(_ context.Context, id string) (*domain.Country, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, country := range m.countries {
		if country.ID == id {
			copied := country
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryCountryRepo) List(_ context.Context) ([]domain.Country, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	return append([]domain.Country(nil), m.countries...), nil
}

type memoryImageStore struct{}

func (memoryImageStore) Put(_ context.Context, key, _ string, _ []byte) (string, error) {
	return key, nil
}

type handlerHarness struct {
	engine    *gin.Engine
	repo      *memoryUserRepo
	countries *memoryCountryRepo
	mailer    *memoryMailer
	tokens    *security.TokenService
	cipher    *security.PayloadCipher
}

// newHarness wires the real services behind the handlers over in-memory
// adapters. dev toggles envelope encryption the same way the app does.
func newHarness(t *testing.T, dev bool) *handlerHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := security.NewTokenService([]byte("handler-test-signing-key-012345"), time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService returned error: %v", err)
	}

	var cipher *security.PayloadCipher
	if !dev {
		cipher, err = security.NewPayloadCipher(bytes.Repeat([]byte{0x51}, 32))
		if err != nil {
			t.Fatalf("NewPayloadCipher returned error: %v", err)
		}
	}

	repo := newMemoryUserRepo()
	countries := &memoryCountryRepo{countries: []domain.Country{
		{ID: "country-nl", Code: "NL", Name: "Netherlands"},
		{ID: "country-de", Code: "DE", Name: "Germany"},
	}}
	mailer := &memoryMailer{}
	links := config.LinkSettings{
		EmailVerify:   "https://app.example.com/verifyEmail?token=",
		PasswordReset: "https://app.example.com/resetPassword?token=",
	}

	accounts := usecase.NewAccountService(usecase.AccountServiceParams{
		Users:     repo,
		Countries: countries,
		Tokens:    tokens,
		Mailer:    mailer,
		Images:    memoryImageStore{},
		Links:     links,
	})
	passwords := usecase.NewPasswordService(usecase.PasswordServiceParams{
		Users:  repo,
		Tokens: tokens,
		Mailer: mailer,
		Links:  links,
	})

	responder := NewResponder(cipher, dev, zaptest.NewLogger(t))
	accountHandler := NewAccountHandler(accounts, responder)
	passwordHandler := NewPasswordHandler(passwords, responder)

	auth := middleware.RequireAuth(tokens, func(c *gin.Context, expired bool) {
		responder.Respond(c, CodeSessionExpired, "Session expired", nil)
		c.Abort()
	})
	decrypt := middleware.DecryptRequest(cipher, dev, func(c *gin.Context) {
		responder.Respond(c, CodeInvalidDetails, "Invalid request payload", nil)
		c.Abort()
	})

	engine := gin.New()
	engine.GET("/countries", accountHandler.Countries)
	engine.POST("/registration", decrypt, accountHandler.Register)
	engine.POST("/login", decrypt, accountHandler.Login)
	engine.POST("/verifyEmail", decrypt, accountHandler.VerifyEmail)
	engine.POST("/forgotPassword", decrypt, passwordHandler.ForgotPassword)
	engine.POST("/resetPassword", decrypt, passwordHandler.ResetPassword)
	engine.POST("/changePassword", auth, decrypt, passwordHandler.ChangePassword)
	engine.GET("/userInformation", auth, accountHandler.UserInformation)

	return &handlerHarness{
		engine:    engine,
		repo:      repo,
		countries: countries,
		mailer:    mailer,
		tokens:    tokens,
		cipher:    cipher,
	}
}

func (h *handlerHarness) post(t *testing.T, path string, data any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected HTTP status %d: %s", rec.Code, rec.Body.String())
	}

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func registrationData() map[string]any {
	return map[string]any{
		"firstName":    "Jane",
		"lastName":     "Doe",
		"emailAddress": "jane@example.com",
		"userPassword": handlerTestPassword,
	}
}

func TestRegistrationEndpoint(t *testing.T) {
	h := newHarness(t, true)

	env := decodeEnvelope(t, h.post(t, "/registration", registrationData(), nil))
	if env.Status.Code != CodeSuccess {
		t.Fatalf("unexpected status: %+v", env.Status)
	}

	result, err := json.Marshal(env.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if strings.Contains(string(result), "passwordHash") || strings.Contains(string(result), "argon2id") {
		t.Fatal("response leaks credential material")
	}

	var view UserView
	if err := json.Unmarshal(result, &view); err != nil {
		t.Fatalf("decode user view: %v", err)
	}
	if view.Email != "jane@example.com" {
		t.Fatalf("unexpected email: %q", view.Email)
	}
	if view.IsEmailVerified {
		t.Fatal("new account should be unverified")
	}
}

func TestRegistrationEndpointDuplicate(t *testing.T) {
	h := newHarness(t, true)

	decodeEnvelope(t, h.post(t, "/registration", registrationData(), nil))
	env := decodeEnvelope(t, h.post(t, "/registration", registrationData(), nil))

	if env.Status.Code != CodeInvalidDetails {
		t.Fatalf("duplicate registration: got code %q", env.Status.Code)
	}
	if env.Status.Message != "User already exists" {
		t.Fatalf("unexpected message: %q", env.Status.Message)
	}
}

func TestRegistrationEndpointMailFailure(t *testing.T) {
	h := newHarness(t, true)
	h.mailer.sendErr = errors.New("smtp connection refused")

	env := decodeEnvelope(t, h.post(t, "/registration", registrationData(), nil))
	if env.Status.Code != CodeMailError {
		t.Fatalf("mail failure: got code %q, want %q", env.Status.Code, CodeMailError)
	}
	if env.Result == nil {
		t.Fatal("created user should accompany the mail-failure envelope")
	}
}

func TestRegistrationEndpointMalformedBody(t *testing.T) {
	h := newHarness(t, true)

	req := httptest.NewRequest(http.MethodPost, "/registration", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec)
	if env.Status.Code != CodeInvalidDetails {
		t.Fatalf("malformed body: got code %q", env.Status.Code)
	}
}

func TestLoginEndpointStates(t *testing.T) {
	h := newHarness(t, true)

	decodeEnvelope(t, h.post(t, "/registration", registrationData(), nil))

	login := map[string]any{"emailAddress": "jane@example.com", "userPassword": handlerTestPassword}

	env := decodeEnvelope(t, h.post(t, "/login", login, nil))
	if env.Status.Code != CodeInvalidDetails || env.Status.Message != "Please verify your email address" {
		t.Fatalf("unverified login: %+v", env.Status)
	}

	wrong := map[string]any{"emailAddress": "jane@example.com", "userPassword": "wrong-password"}
	env = decodeEnvelope(t, h.post(t, "/login", wrong, nil))
	if env.Status.Code != CodeInvalidDetails || env.Status.Message != "Invalid login details" {
		t.Fatalf("wrong password: %+v", env.Status)
	}

	if err := h.repo.SetEmailVerified(context.Background(), "jane@example.com"); err != nil {
		t.Fatalf("SetEmailVerified returned error: %v", err)
	}

	env = decodeEnvelope(t, h.post(t, "/login", login, nil))
	if env.Status.Code != CodeSuccess {
		t.Fatalf("verified login: %+v", env.Status)
	}

	result, _ := json.Marshal(env.Result)
	var loginResult LoginResult
	if err := json.Unmarshal(result, &loginResult); err != nil {
		t.Fatalf("decode login result: %v", err)
	}
	if loginResult.Token == "" {
		t.Fatal("login result missing session token")
	}
}

func TestLoginEndpointStoreFailure(t *testing.T) {
	h := newHarness(t, true)

	decodeEnvelope(t, h.post(t, "/registration", registrationData(), nil))
	h.repo.failWith = errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")

	login := map[string]any{"emailAddress": "jane@example.com", "userPassword": handlerTestPassword}
	env := decodeEnvelope(t, h.post(t, "/login", login, nil))
	if env.Status.Code != CodeDatabaseError {
		t.Fatalf("store failure login: got code %q, want %q", env.Status.Code, CodeDatabaseError)
	}
	if env.Status.Message != "A database error occurred, please try again" {
		t.Fatalf("store failure login: got message %q", env.Status.Message)
	}
}

func TestCountriesEndpoint(t *testing.T) {
	h := newHarness(t, true)

	req := httptest.NewRequest(http.MethodGet, "/countries", nil)
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec)
	if env.Status.Code != CodeSuccess {
		t.Fatalf("countries: %+v", env.Status)
	}

	result, _ := json.Marshal(env.Result)
	var views []CountryView
	if err := json.Unmarshal(result, &views); err != nil {
		t.Fatalf("decode countries result: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d countries, want 2", len(views))
	}
	if views[0].Code != "NL" || views[1].Code != "DE" {
		t.Fatalf("unexpected country order: %+v", views)
	}
}

func TestCountriesEndpointStoreFailure(t *testing.T) {
	h := newHarness(t, true)
	h.countries.failWith = errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")

	req := httptest.NewRequest(http.MethodGet, "/countries", nil)
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec)
	if env.Status.Code != CodeDatabaseError {
		t.Fatalf("countries store failure: got code %q, want %q", env.Status.Code, CodeDatabaseError)
	}
}

func TestUserInformationEndpoint(t *testing.T) {
	h := newHarness(t, true)

	decodeEnvelope(t, h.post(t, "/registration", registrationData(), nil))
	if err := h.repo.SetEmailVerified(context.Background(), "jane@example.com"); err != nil {
		t.Fatalf("SetEmailVerified returned error: %v", err)
	}

	user, err := h.repo.GetByEmail(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}
	token, err := h.tokens.MintSessionToken(domain.SessionUser{
		ID: user.ID, FirstName: user.FirstName, LastName: user.LastName, Email: user.Email,
	})
	if err != nil {
		t.Fatalf("MintSessionToken returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/userInformation", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec)
	if env.Status.Code != CodeSuccess {
		t.Fatalf("user information: %+v", env.Status)
	}

	// Without a token the session-expired envelope comes back.
	req = httptest.NewRequest(http.MethodGet, "/userInformation", nil)
	rec = httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	env = decodeEnvelope(t, rec)
	if env.Status.Code != CodeSessionExpired {
		t.Fatalf("missing token: got code %q, want %q", env.Status.Code, CodeSessionExpired)
	}
}

func TestVerifyEmailEndpointBadToken(t *testing.T) {
	h := newHarness(t, true)

	env := decodeEnvelope(t, h.post(t, "/verifyEmail", map[string]any{"emailAddress": "zz-not-hex"}, nil))
	if env.Status.Code != CodeInvalidDetails {
		t.Fatalf("bad token: got code %q", env.Status.Code)
	}
}

func TestForgotPasswordEndpointMailFailure(t *testing.T) {
	h := newHarness(t, true)

	decodeEnvelope(t, h.post(t, "/registration", registrationData(), nil))
	h.mailer.sendErr = errors.New("smtp connection refused")

	env := decodeEnvelope(t, h.post(t, "/forgotPassword", map[string]any{"emailAddress": "jane@example.com"}, nil))
	if env.Status.Code != CodeMailError {
		t.Fatalf("mail failure: got code %q, want %q", env.Status.Code, CodeMailError)
	}
}

func TestEncryptedEnvelopeRoundTrip(t *testing.T) {
	h := newHarness(t, false)

	// Register through an encrypted request body.
	plain, err := json.Marshal(map[string]any{"data": registrationData()})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	sealed, err := h.cipher.EncryptJSON(json.RawMessage(plain))
	if err != nil {
		t.Fatalf("EncryptJSON returned error: %v", err)
	}
	body, _ := json.Marshal(map[string]string{"encRequest": sealed})

	req := httptest.NewRequest(http.MethodPost, "/registration", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected HTTP status %d: %s", rec.Code, rec.Body.String())
	}

	var wrapped EncryptedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &wrapped); err != nil {
		t.Fatalf("decode encrypted response: %v", err)
	}
	if wrapped.EncResponse == "" {
		t.Fatal("response is not encrypted outside development mode")
	}

	var env Envelope
	if err := h.cipher.DecryptJSON(wrapped.EncResponse, &env); err != nil {
		t.Fatalf("DecryptJSON returned error: %v", err)
	}
	if env.Status.Code != CodeSuccess {
		t.Fatalf("decrypted envelope: %+v", env.Status)
	}
}

func TestEncryptedEnvelopeRejectsPlaintextBody(t *testing.T) {
	h := newHarness(t, false)

	req := httptest.NewRequest(http.MethodPost, "/registration", strings.NewReader(`{"data":{}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	var wrapped EncryptedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &wrapped); err != nil {
		t.Fatalf("decode encrypted response: %v", err)
	}

	var env Envelope
	if err := h.cipher.DecryptJSON(wrapped.EncResponse, &env); err != nil {
		t.Fatalf("DecryptJSON returned error: %v", err)
	}
	if env.Status.Code != CodeInvalidDetails {
		t.Fatalf("plaintext body: got code %q, want %q", env.Status.Code, CodeInvalidDetails)
	}
}
