package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/solentra/account-service/internal/core/domain"
	"github.com/solentra/account-service/internal/core/port"
	"github.com/solentra/account-service/internal/repository"
)

const countriesTable = "account.countries"

// CountryRepository implements port.CountryRepository using PostgreSQL.
type CountryRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewCountryRepository constructs the read-only country repository.
func NewCountryRepository(exec pgExecutor) *CountryRepository {
	return &CountryRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID retrieves a country by identifier.
func (r *CountryRepository) GetByID(ctx context.Context, id string) (*domain.Country, error) {
	stmt, args, err := r.builder.
		Select("id", "code", "name").
		From(countriesTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select country sql: %w", err)
	}

	var country domain.Country
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&country.ID, &country.Code, &country.Name); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan country: %w", err)
	}

	return &country, nil
}

// List returns all countries ordered by name.
func (r *CountryRepository) List(ctx context.Context) ([]domain.Country, error) {
	stmt, args, err := r.builder.
		Select("id", "code", "name").
		From(countriesTable).
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list countries sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query countries: %w", err)
	}
	defer rows.Close()

	countries := make([]domain.Country, 0)
	for rows.Next() {
		var country domain.Country
		if err := rows.Scan(&country.ID, &country.Code, &country.Name); err != nil {
			return nil, fmt.Errorf("scan country: %w", err)
		}
		countries = append(countries, country)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate countries: %w", err)
	}

	return countries, nil
}

var _ port.CountryRepository = (*CountryRepository)(nil)
