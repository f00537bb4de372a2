package port

import (
	"context"

	"github.com/solentra/account-service/internal/core/domain"
)

// UserRepository is the data-access boundary for account records.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetPasswordHash projects only the stored credential for a user.
	GetPasswordHash(ctx context.Context, id string) (string, error)
	// GetByEmailWithCountry resolves the country reference alongside the user.
	GetByEmailWithCountry(ctx context.Context, email string) (*domain.User, error)
	GetByIDWithCountry(ctx context.Context, id string) (*domain.User, error)
	SetEmailVerified(ctx context.Context, email string) error
	UpdatePasswordByID(ctx context.Context, id, passwordHash string) error
	UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error
	UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch) error
}

// CountryRepository exposes read-only access to the country reference table.
type CountryRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Country, error)
	List(ctx context.Context) ([]domain.Country, error)
}
