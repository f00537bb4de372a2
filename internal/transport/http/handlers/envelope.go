package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/solentra/account-service/internal/infra/security"
	"github.com/solentra/account-service/internal/usecase"
)

// Envelope status codes. Business outcomes always ship with HTTP 200;
// callers branch on the code inside the envelope.
const (
	CodeSuccess        = "00"
	CodeInvalidDetails = "01"
	CodeDatabaseError  = "02"
	CodeSessionExpired = "03"
	CodeMailError      = "04"
	CodeInternal       = "05"
)

// Status tags an envelope with its outcome.
type Status struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope is the single response shape for every endpoint.
type Envelope struct {
	Status Status `json:"status"`
	Result any    `json:"result"`
}

// EncryptedResponse wraps a sealed envelope for transport.
type EncryptedResponse struct {
	EncResponse string `json:"encResponse"`
}

// Responder writes envelopes, sealing them outside development mode.
type Responder struct {
	cipher *security.PayloadCipher
	dev    bool
	log    *zap.Logger
}

// NewResponder constructs a responder. A nil cipher is only legal in
// development mode.
func NewResponder(cipher *security.PayloadCipher, dev bool, log *zap.Logger) *Responder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Responder{cipher: cipher, dev: dev, log: log}
}

// Respond writes one envelope with the given outcome.
func (r *Responder) Respond(c *gin.Context, code, message string, result any) {
	env := Envelope{
		Status: Status{Code: code, Message: message},
		Result: result,
	}

	r.log.Debug("response envelope",
		zap.String("code", code),
		zap.String("message", message),
		zap.String("path", c.FullPath()),
	)

	if r.dev || r.cipher == nil {
		c.JSON(http.StatusOK, env)
		return
	}

	sealed, err := r.cipher.EncryptJSON(env)
	if err != nil {
		r.log.Error("seal response envelope", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Envelope{
			Status: Status{Code: CodeInternal, Message: "internal error"},
		})
		return
	}

	c.JSON(http.StatusOK, EncryptedResponse{EncResponse: sealed})
}

// Success writes a success envelope.
func (r *Responder) Success(c *gin.Context, message string, result any) {
	r.Respond(c, CodeSuccess, message, result)
}

// ErrorCase maps a sentinel error to an envelope code and message.
type ErrorCase struct {
	Err     error
	Code    string
	Message string
}

// RespondWithMappedError resolves err against known cases or falls back to
// an internal-error envelope. Business failures never surface as transport
// faults.
func (r *Responder) RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase) {
	if err == nil {
		r.Success(c, "Success", nil)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			r.Respond(c, cs.Code, cs.Message, nil)
			return
		}
	}

	if errors.Is(err, usecase.ErrStorageFailure) || errors.Is(err, context.DeadlineExceeded) {
		r.log.Error("data access failed", zap.Error(err), zap.String("path", c.FullPath()))
		r.Respond(c, CodeDatabaseError, "A database error occurred, please try again", nil)
		return
	}

	r.log.Error("unmapped handler error", zap.Error(err), zap.String("path", c.FullPath()))
	r.Respond(c, CodeInternal, "Something went wrong, please try again", nil)
}
