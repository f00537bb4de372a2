package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/solentra/account-service/internal/core/port"
	"github.com/solentra/account-service/internal/infra/config"
	"github.com/solentra/account-service/internal/infra/database"
	kafkainfra "github.com/solentra/account-service/internal/infra/kafka"
	"github.com/solentra/account-service/internal/infra/logger"
	"github.com/solentra/account-service/internal/infra/mail"
	redisinfra "github.com/solentra/account-service/internal/infra/redis"
	"github.com/solentra/account-service/internal/infra/security"
	"github.com/solentra/account-service/internal/infra/storage"
	postgresrepo "github.com/solentra/account-service/internal/repository/postgres"
	redisrepo "github.com/solentra/account-service/internal/repository/redis"
	"github.com/solentra/account-service/internal/transport/http/middleware"
	"github.com/solentra/account-service/internal/transport/http/routes"
	"github.com/solentra/account-service/internal/usecase"
)

type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	kafka  *kafkainfra.Producer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	if err := security.ConfigureArgon2(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	tokens, err := security.NewTokenService(keyBytes(cfg.Crypto.SigningKey), cfg.Crypto.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("init token service: %w", err)
	}

	isDev := cfg.App.IsDevelopment()

	var cipher *security.PayloadCipher
	if cfg.Crypto.PayloadKey != "" {
		cipher, err = security.NewPayloadCipher(keyBytes(cfg.Crypto.PayloadKey))
		if err != nil {
			return nil, fmt.Errorf("init payload cipher: %w", err)
		}
	} else if !isDev {
		return nil, fmt.Errorf("payload key is required outside development")
	}

	var (
		redisClient *redisinfra.Client
		rateLimiter *middleware.RateLimiter
	)
	if cfg.Redis.Enabled {
		redisClient, err = redisinfra.NewClient(cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}

		window := cfg.RateLimit.WindowDuration
		if window <= 0 {
			window = time.Minute
		}
		rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: "account:rate-limit",
			TTL:       window * 2,
		})
		rateLimiter = middleware.NewRateLimiter(rateLimitStore, log)
	} else {
		log.Info("redis disabled, rate limiting off")
	}

	var (
		events   port.EventPublisher
		producer *kafkainfra.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using noop publisher", zap.Error(err))
			events = kafkainfra.NewNoopPublisher(log)
		} else {
			events = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using noop publisher")
		events = kafkainfra.NewNoopPublisher(log)
	}

	var mailer port.MailDispatcher
	if isDev && cfg.SMTP.Host == "localhost" {
		mailer = mail.NewLoggingDispatcher(log)
	} else {
		mailer, err = mail.NewSMTPDispatcher(cfg.SMTP, log)
		if err != nil {
			return nil, fmt.Errorf("init mail dispatcher: %w", err)
		}
	}

	templates, err := mail.LoadTemplates(cfg.SMTP.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("load mail templates: %w", err)
	}

	images, err := newImageStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init image store: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	validator := security.DefaultPasswordValidator()

	accounts := usecase.NewAccountService(usecase.AccountServiceParams{
		Users:        repos.Users,
		Countries:    repos.Countries,
		Tokens:       tokens,
		Validator:    validator,
		Mailer:       mailer,
		Templates:    templates,
		Images:       images,
		Events:       events,
		Links:        cfg.Links,
		StoreTimeout: cfg.Postgres.QueryTimeout,
		MailTimeout:  cfg.SMTP.SendTimeout,
		Logger:       log,
	})

	passwords := usecase.NewPasswordService(usecase.PasswordServiceParams{
		Users:        repos.Users,
		Tokens:       tokens,
		Validator:    validator,
		Mailer:       mailer,
		Templates:    templates,
		Events:       events,
		Links:        cfg.Links,
		SupportEmail: cfg.SMTP.SupportEmail,
		StoreTimeout: cfg.Postgres.QueryTimeout,
		MailTimeout:  cfg.SMTP.SendTimeout,
		Logger:       log,
	})

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Tokens:      tokens,
		Cipher:      cipher,
		Database:    pool,
		Services: routes.ServiceSet{
			Accounts:  accounts,
			Passwords: passwords,
		},
	}
	if redisClient != nil {
		deps.Cache = redisClient
	}

	engine := routes.Register(deps)

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		kafka:  producer,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.kafka != nil {
			_ = a.kafka.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting account API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func newImageStore(ctx context.Context, cfg config.StorageSettings) (port.ProfileImageStore, error) {
	switch cfg.Backend {
	case "s3":
		return storage.NewS3Store(ctx, cfg.S3)
	case "", "dir":
		return storage.NewDirStore(cfg.Directory)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// keyBytes accepts either a hex-encoded key or a raw string key.
func keyBytes(value string) []byte {
	if decoded, err := hex.DecodeString(value); err == nil && len(decoded) > 0 {
		return decoded
	}
	return []byte(value)
}
