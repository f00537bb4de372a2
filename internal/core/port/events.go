package port

import (
	"context"

	"github.com/solentra/account-service/internal/core/domain"
)

// EventPublisher fans account lifecycle events out to downstream consumers.
// Publish failures are logged by implementations and never surfaced to the
// request path.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishEmailVerified(ctx context.Context, event domain.EmailVerifiedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
}
