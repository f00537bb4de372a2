package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/solentra/account-service/internal/core/domain"
	"github.com/solentra/account-service/internal/core/port"
)

// NoopPublisher satisfies port.EventPublisher when no brokers are configured.
// Events are logged at debug level and dropped.
type NoopPublisher struct {
	logger *zap.Logger
}

// NewNoopPublisher constructs a publisher that only logs.
func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logger.Debug("event dropped, no brokers configured",
		zap.String("event_type", "account.user.registered"),
		zap.String("user_id", event.UserID),
	)
	return nil
}

func (p *NoopPublisher) PublishEmailVerified(_ context.Context, event domain.EmailVerifiedEvent) error {
	p.logger.Debug("event dropped, no brokers configured",
		zap.String("event_type", "account.user.email.verified"),
	)
	return nil
}

func (p *NoopPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.logger.Debug("event dropped, no brokers configured",
		zap.String("event_type", "account.user.password.changed"),
		zap.String("user_id", event.UserID),
	)
	return nil
}

var _ port.EventPublisher = (*NoopPublisher)(nil)
