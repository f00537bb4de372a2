package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/solentra/account-service/internal/core/domain"
	"github.com/solentra/account-service/internal/infra/security"
	"github.com/solentra/account-service/internal/transport/http/middleware"
	"github.com/solentra/account-service/internal/usecase"
)

// AccountHandler exposes registration, verification, login, and profile
// endpoints.
type AccountHandler struct {
	accounts  *usecase.AccountService
	responder *Responder
}

// NewAccountHandler constructs AccountHandler.
func NewAccountHandler(accounts *usecase.AccountService, responder *Responder) *AccountHandler {
	return &AccountHandler{accounts: accounts, responder: responder}
}

// Register handles POST /registration.
func (h *AccountHandler) Register(c *gin.Context) {
	var req RequestEnvelope[RegistrationRequest]
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.Respond(c, CodeInvalidDetails, "Invalid details", nil)
		return
	}

	input := usecase.RegisterInput{
		FirstName:    req.Data.FirstName,
		MiddleName:   req.Data.MiddleName,
		LastName:     req.Data.LastName,
		Email:        req.Data.Email,
		Password:     req.Data.Password,
		CompanyName:  req.Data.CompanyName,
		MobileNumber: req.Data.MobileNumber,
		Address:      req.Data.Address,
		Country:      req.Data.Country,
		RegionCode:   req.Data.RegionCode,
		CountryID:    req.Data.CountryID,
	}

	user, err := h.accounts.Register(c.Request.Context(), input)
	if errors.Is(err, usecase.ErrMailDispatchFailed) && user != nil {
		// The account exists; only the verification mail failed.
		h.responder.Respond(c, CodeMailError, "Could not send verification email", NewUserView(*user))
		return
	}
	if err != nil {
		h.responder.RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidEmail, Code: CodeInvalidDetails, Message: "Invalid email address"},
			{Err: usecase.ErrUserExists, Code: CodeInvalidDetails, Message: "User already exists"},
			{Err: usecase.ErrInvalidDetails, Code: CodeInvalidDetails, Message: "Invalid details"},
		})
		return
	}

	h.responder.Success(c, "Registration successful, please verify your email address", NewUserView(*user))
}

// Countries handles GET /countries.
func (h *AccountHandler) Countries(c *gin.Context) {
	countries, err := h.accounts.Countries(c.Request.Context())
	if err != nil {
		h.responder.RespondWithMappedError(c, err, nil)
		return
	}

	h.responder.Success(c, "Success", NewCountryViews(countries))
}

// VerifyEmail handles POST /verifyEmail.
func (h *AccountHandler) VerifyEmail(c *gin.Context) {
	var req RequestEnvelope[VerifyEmailRequest]
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.Respond(c, CodeInvalidDetails, "Invalid details", nil)
		return
	}

	if err := h.accounts.VerifyEmail(c.Request.Context(), req.Data.Token); err != nil {
		h.responder.RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrEmailLinkExpired, Code: CodeSessionExpired, Message: "Email link expired"},
			{Err: security.ErrTokenInvalid, Code: CodeInvalidDetails, Message: "Invalid details"},
			{Err: usecase.ErrUserNotFound, Code: CodeInvalidDetails, Message: "Invalid details"},
		})
		return
	}

	h.responder.Success(c, "Email verified successfully", nil)
}

// Login handles POST /login.
func (h *AccountHandler) Login(c *gin.Context) {
	var req RequestEnvelope[LoginRequest]
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.Respond(c, CodeInvalidDetails, "Invalid login details", nil)
		return
	}

	user, token, err := h.accounts.Login(c.Request.Context(), req.Data.Email, req.Data.Password)
	if err != nil {
		h.responder.RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidEmail, Code: CodeInvalidDetails, Message: "Invalid login details"},
			{Err: usecase.ErrInvalidCredentials, Code: CodeInvalidDetails, Message: "Invalid login details"},
			{Err: usecase.ErrAccountDisabled, Code: CodeInvalidDetails, Message: "Your account is disabled"},
			{Err: usecase.ErrEmailNotVerified, Code: CodeInvalidDetails, Message: "Please verify your email address"},
		})
		return
	}

	h.responder.Success(c, "Success", LoginResult{User: NewUserView(*user), Token: token})
}

// UserInformation handles GET /userInformation.
func (h *AccountHandler) UserInformation(c *gin.Context) {
	principal, ok := middleware.CurrentUser(c)
	if !ok {
		h.responder.Respond(c, CodeSessionExpired, "Session expired", nil)
		return
	}

	user, err := h.accounts.Profile(c.Request.Context(), principal.ID)
	if err != nil {
		h.responder.RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Code: CodeInvalidDetails, Message: "No data found"},
		})
		return
	}

	h.responder.Success(c, "Success", NewUserView(*user))
}

// UpdateProfile handles POST /updateProfile.
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	principal, ok := middleware.CurrentUser(c)
	if !ok {
		h.responder.Respond(c, CodeSessionExpired, "Session expired", nil)
		return
	}

	var req RequestEnvelope[UpdateProfileRequest]
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.Respond(c, CodeInvalidDetails, "All fields are required", nil)
		return
	}

	patch := domain.ProfilePatch{
		FirstName:    req.Data.FirstName,
		MiddleName:   req.Data.MiddleName,
		LastName:     req.Data.LastName,
		CompanyName:  req.Data.CompanyName,
		MobileNumber: req.Data.MobileNumber,
		Address:      req.Data.Address,
		Country:      req.Data.Country,
		RegionCode:   req.Data.RegionCode,
		CountryID:    req.Data.CountryID,
	}

	if err := h.accounts.UpdateProfile(c.Request.Context(), principal.ID, patch); err != nil {
		h.responder.RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidDetails, Code: CodeInvalidDetails, Message: "All fields are required"},
			{Err: usecase.ErrUserNotFound, Code: CodeInvalidDetails, Message: "No data found"},
		})
		return
	}

	h.responder.Success(c, "Profile updated successfully", nil)
}

// UploadProfilePicture handles POST /uploadProfilePicUsingBase64Data.
func (h *AccountHandler) UploadProfilePicture(c *gin.Context) {
	principal, ok := middleware.CurrentUser(c)
	if !ok {
		h.responder.Respond(c, CodeSessionExpired, "Session expired", nil)
		return
	}

	var req RequestEnvelope[UploadProfilePictureRequest]
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.Respond(c, CodeInvalidDetails, "Invalid details", nil)
		return
	}

	key, err := h.accounts.UploadProfilePicture(c.Request.Context(), principal.ID, req.Data.ProfilePic)
	if err != nil {
		h.responder.RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidDetails, Code: CodeInvalidDetails, Message: "Invalid details"},
		})
		return
	}

	h.responder.Success(c, "Success", UploadResult{Path: key})
}
