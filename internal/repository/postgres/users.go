package postgres

import (
	"context"
	"database/sql"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/solentra/account-service/internal/core/domain"
	"github.com/solentra/account-service/internal/core/port"
	"github.com/solentra/account-service/internal/repository"
)

const usersTable = "account.users"

var userColumns = []string{
	"id",
	"first_name",
	"middle_name",
	"last_name",
	"email",
	"password_hash",
	"company_name",
	"mobile_number",
	"address",
	"country",
	"region_code",
	"country_id",
	"is_email_verified",
	"is_active",
	"created_at",
	"updated_at",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new user row. A violated email uniqueness constraint is
// reported as repository.ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert(usersTable).
		Columns(userColumns...).
		Values(
			user.ID,
			user.FirstName,
			user.MiddleName,
			user.LastName,
			user.Email,
			user.PasswordHash,
			user.CompanyName,
			user.MobileNumber,
			user.Address,
			user.Country,
			user.RegionCode,
			user.CountryID,
			user.IsEmailVerified,
			user.IsActive,
			user.CreatedAt,
			user.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByEmail retrieves a user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email})
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

func (r *UserRepository) getOne(ctx context.Context, pred squirrel.Eq) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From(usersTable).
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	user, err := scanUser(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return user, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user         domain.User
		middleName   sql.NullString
		companyName  sql.NullString
		mobileNumber sql.NullString
		address      sql.NullString
		country      sql.NullString
		regionCode   sql.NullString
		countryID    sql.NullString
	)

	if err := row.Scan(
		&user.ID,
		&user.FirstName,
		&middleName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&companyName,
		&mobileNumber,
		&address,
		&country,
		&regionCode,
		&countryID,
		&user.IsEmailVerified,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}

	user.MiddleName = nullableString(middleName)
	user.CompanyName = nullableString(companyName)
	user.MobileNumber = nullableString(mobileNumber)
	user.Address = nullableString(address)
	user.Country = nullableString(country)
	user.RegionCode = nullableString(regionCode)
	user.CountryID = nullableString(countryID)

	return &user, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	val := ns.String
	return &val
}

// GetPasswordHash projects only the stored credential for a user.
func (r *UserRepository) GetPasswordHash(ctx context.Context, id string) (string, error) {
	stmt, args, err := r.builder.
		Select("password_hash").
		From(usersTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build select password hash sql: %w", err)
	}

	var hash string
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&hash); err != nil {
		if err == pgx.ErrNoRows {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("scan password hash: %w", err)
	}

	return hash, nil
}

// GetByEmailWithCountry resolves the country reference alongside the user.
func (r *UserRepository) GetByEmailWithCountry(ctx context.Context, email string) (*domain.User, error) {
	return r.getOneWithCountry(ctx, squirrel.Eq{"u.email": email})
}

// GetByIDWithCountry resolves the country reference alongside the user.
func (r *UserRepository) GetByIDWithCountry(ctx context.Context, id string) (*domain.User, error) {
	return r.getOneWithCountry(ctx, squirrel.Eq{"u.id": id})
}

func (r *UserRepository) getOneWithCountry(ctx context.Context, pred squirrel.Eq) (*domain.User, error) {
	columns := make([]string, 0, len(userColumns)+3)
	for _, col := range userColumns {
		columns = append(columns, "u."+col)
	}
	columns = append(columns, "c.id", "c.code", "c.name")

	stmt, args, err := r.builder.
		Select(columns...).
		From(usersTable + " u").
		LeftJoin("account.countries c ON c.id = u.country_id").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user with country sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		user         domain.User
		middleName   sql.NullString
		companyName  sql.NullString
		mobileNumber sql.NullString
		address      sql.NullString
		country      sql.NullString
		regionCode   sql.NullString
		countryID    sql.NullString
		refID        sql.NullString
		refCode      sql.NullString
		refName      sql.NullString
	)

	if err := row.Scan(
		&user.ID,
		&user.FirstName,
		&middleName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&companyName,
		&mobileNumber,
		&address,
		&country,
		&regionCode,
		&countryID,
		&user.IsEmailVerified,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
		&refID,
		&refCode,
		&refName,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user with country: %w", err)
	}

	user.MiddleName = nullableString(middleName)
	user.CompanyName = nullableString(companyName)
	user.MobileNumber = nullableString(mobileNumber)
	user.Address = nullableString(address)
	user.Country = nullableString(country)
	user.RegionCode = nullableString(regionCode)
	user.CountryID = nullableString(countryID)

	if refID.Valid {
		user.CountryRef = &domain.Country{
			ID:   refID.String,
			Code: refCode.String,
			Name: refName.String,
		}
	}

	return &user, nil
}

// SetEmailVerified flips the verification flag for the addressed account.
func (r *UserRepository) SetEmailVerified(ctx context.Context, email string) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("is_email_verified", true).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"email": email}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set email verified sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set email verified: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePasswordByID replaces the stored credential for a user identifier.
func (r *UserRepository) UpdatePasswordByID(ctx context.Context, id, passwordHash string) error {
	return r.updatePassword(ctx, squirrel.Eq{"id": id}, passwordHash)
}

// UpdatePasswordByEmail replaces the stored credential for an email address.
func (r *UserRepository) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error {
	return r.updatePassword(ctx, squirrel.Eq{"email": email}, passwordHash)
}

func (r *UserRepository) updatePassword(ctx context.Context, pred squirrel.Eq, passwordHash string) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("password_hash", passwordHash).
		Set("updated_at", squirrel.Expr("now()")).
		Where(pred).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateProfile applies a partial profile update. Nil patch fields leave
// the stored value untouched.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch) error {
	builder := r.builder.Update(usersTable).
		Set("first_name", patch.FirstName).
		Set("last_name", patch.LastName).
		Set("address", patch.Address).
		Set("updated_at", squirrel.Expr("now()"))

	if patch.MiddleName != nil {
		builder = builder.Set("middle_name", *patch.MiddleName)
	}
	if patch.CompanyName != nil {
		builder = builder.Set("company_name", *patch.CompanyName)
	}
	if patch.MobileNumber != nil {
		builder = builder.Set("mobile_number", *patch.MobileNumber)
	}
	if patch.Country != nil {
		builder = builder.Set("country", *patch.Country)
	}
	if patch.RegionCode != nil {
		builder = builder.Set("region_code", *patch.RegionCode)
	}
	if patch.CountryID != nil {
		builder = builder.Set("country_id", *patch.CountryID)
	}

	stmt, args, err := builder.Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update profile sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.UserRepository = (*UserRepository)(nil)
