package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/solentra/account-service/internal/infra/config"
	"github.com/solentra/account-service/internal/infra/security"
	"github.com/solentra/account-service/internal/transport/http/handlers"
	"github.com/solentra/account-service/internal/transport/http/middleware"
	"github.com/solentra/account-service/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Accounts  *usecase.AccountService
	Passwords *usecase.PasswordService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	Tokens      *security.TokenService
	Cipher      *security.PayloadCipher
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{}); err == nil {
		r.Use(metrics.Handler())
	} else {
		deps.Logger.Warn("http metrics disabled", zap.Error(err))
	}
	if len(deps.Config.App.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	}

	isDev := deps.Config.App.IsDevelopment()
	responder := handlers.NewResponder(deps.Cipher, isDev, deps.Logger)

	authMiddleware := middleware.RequireAuth(deps.Tokens, func(c *gin.Context, expired bool) {
		if expired {
			responder.Respond(c, handlers.CodeSessionExpired, "Session expired", nil)
		} else {
			responder.Respond(c, handlers.CodeSessionExpired, "Authentication required", nil)
		}
		c.Abort()
	})

	decryptMiddleware := middleware.DecryptRequest(deps.Cipher, isDev, func(c *gin.Context) {
		responder.Respond(c, handlers.CodeInvalidDetails, "Invalid request payload", nil)
		c.Abort()
	})

	limitReject := func(c *gin.Context, _ time.Duration) {
		responder.Respond(c, handlers.CodeInvalidDetails, "Too many requests, please try again later", nil)
		c.Abort()
	}

	checkers := make([]handlers.ReadyChecker, 0, 2)
	if deps.Database != nil {
		checkers = append(checkers, handlers.ReadyChecker{Name: "database", Check: deps.Database.Ping})
	}
	if deps.Cache != nil {
		checkers = append(checkers, handlers.ReadyChecker{Name: "redis", Check: deps.Cache.HealthCheck})
	}

	healthHandler := handlers.NewHealthHandler(checkers...)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	accountHandler := handlers.NewAccountHandler(deps.Services.Accounts, responder)
	passwordHandler := handlers.NewPasswordHandler(deps.Services.Passwords, responder)

	registrationChain := rateLimited(deps, registrationRule, limitReject, decryptMiddleware)
	loginChain := rateLimited(deps, loginRule, limitReject, decryptMiddleware)
	forgotChain := rateLimited(deps, passwordResetRule, limitReject, decryptMiddleware)

	r.GET("/countries", accountHandler.Countries)
	r.POST("/registration", append(registrationChain, accountHandler.Register)...)
	r.POST("/login", append(loginChain, accountHandler.Login)...)
	r.POST("/verifyEmail", decryptMiddleware, accountHandler.VerifyEmail)
	r.POST("/forgotPassword", append(forgotChain, passwordHandler.ForgotPassword)...)
	r.POST("/resetPassword", decryptMiddleware, passwordHandler.ResetPassword)

	r.POST("/changePassword", authMiddleware, decryptMiddleware, passwordHandler.ChangePassword)
	r.POST("/updateProfile", authMiddleware, decryptMiddleware, accountHandler.UpdateProfile)
	r.POST("/uploadProfilePicUsingBase64Data", authMiddleware, decryptMiddleware, accountHandler.UploadProfilePicture)
	r.GET("/userInformation", authMiddleware, accountHandler.UserInformation)

	return r
}

type ruleBuilder func(cfg *config.AppConfig) (middleware.RateLimitRule, bool)

func loginRule(cfg *config.AppConfig) (middleware.RateLimitRule, bool) {
	return windowRule(cfg, "login_ip", cfg.RateLimit.LoginMaxAttempts)
}

func registrationRule(cfg *config.AppConfig) (middleware.RateLimitRule, bool) {
	return windowRule(cfg, "registration_ip", cfg.RateLimit.RegisterMaxAttempts)
}

func passwordResetRule(cfg *config.AppConfig) (middleware.RateLimitRule, bool) {
	return windowRule(cfg, "password_reset_ip", cfg.RateLimit.PasswordResetMaxAttempts)
}

func windowRule(cfg *config.AppConfig, name string, limit int) (middleware.RateLimitRule, bool) {
	if limit <= 0 {
		return middleware.RateLimitRule{}, false
	}

	window := cfg.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	return middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}, true
}

func rateLimited(deps Dependencies, build ruleBuilder, reject middleware.RejectFunc, tail ...gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(tail)+1)

	if deps.RateLimiter != nil && deps.Config != nil {
		if rule, ok := build(deps.Config); ok {
			chain = append(chain, deps.RateLimiter.RateLimit(rule, reject))
		}
	}

	return append(chain, tail...)
}
