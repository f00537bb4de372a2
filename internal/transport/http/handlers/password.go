package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/solentra/account-service/internal/infra/security"
	"github.com/solentra/account-service/internal/transport/http/middleware"
	"github.com/solentra/account-service/internal/usecase"
)

// PasswordHandler exposes credential-rotation endpoints.
type PasswordHandler struct {
	passwords *usecase.PasswordService
	responder *Responder
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(passwords *usecase.PasswordService, responder *Responder) *PasswordHandler {
	return &PasswordHandler{passwords: passwords, responder: responder}
}

// ChangePassword handles POST /changePassword.
func (h *PasswordHandler) ChangePassword(c *gin.Context) {
	principal, ok := middleware.CurrentUser(c)
	if !ok {
		h.responder.Respond(c, CodeSessionExpired, "Session expired", nil)
		return
	}

	var req RequestEnvelope[ChangePasswordRequest]
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.Respond(c, CodeInvalidDetails, "Invalid details", nil)
		return
	}

	err := h.passwords.ChangePassword(c.Request.Context(), principal.ID, req.Data.OldPassword, req.Data.NewPassword)
	if err != nil {
		h.responder.RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidDetails, Code: CodeInvalidDetails, Message: "Invalid details"},
			{Err: usecase.ErrUserNotFound, Code: CodeInvalidDetails, Message: "Invalid details"},
		})
		return
	}

	h.responder.Success(c, "Password changed successfully", nil)
}

// ForgotPassword handles POST /forgotPassword.
func (h *PasswordHandler) ForgotPassword(c *gin.Context) {
	var req RequestEnvelope[ForgotPasswordRequest]
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.Respond(c, CodeInvalidDetails, "Invalid email address", nil)
		return
	}

	if err := h.passwords.ForgotPassword(c.Request.Context(), req.Data.Email); err != nil {
		h.responder.RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidEmail, Code: CodeInvalidDetails, Message: "Invalid email address"},
			{Err: usecase.ErrUserNotFound, Code: CodeInvalidDetails, Message: "Invalid email address"},
			{Err: usecase.ErrMailDispatchFailed, Code: CodeMailError, Message: "Could not send reset email"},
		})
		return
	}

	h.responder.Success(c, "Password reset link sent to your registered email", nil)
}

// ResetPassword handles POST /resetPassword.
func (h *PasswordHandler) ResetPassword(c *gin.Context) {
	var req RequestEnvelope[ResetPasswordRequest]
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.Respond(c, CodeInvalidDetails, "Invalid details", nil)
		return
	}

	if err := h.passwords.ResetPassword(c.Request.Context(), req.Data.Token, req.Data.NewPassword); err != nil {
		h.responder.RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrEmailLinkExpired, Code: CodeSessionExpired, Message: "Email link expired"},
			{Err: security.ErrTokenInvalid, Code: CodeInvalidDetails, Message: "Invalid details"},
			{Err: usecase.ErrInvalidDetails, Code: CodeInvalidDetails, Message: "Invalid details"},
			{Err: usecase.ErrUserNotFound, Code: CodeInvalidDetails, Message: "Invalid details"},
		})
		return
	}

	h.responder.Success(c, "Password reset successfully", nil)
}
