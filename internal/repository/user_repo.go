package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context, limit, offset int64) ([]domain.User, int64, error)
	Delete(ctx context.Context, id int64) error
	UpdateRole(ctx context.Context, id int64, role domain.Role) error
	SetSecurityKeyIfEmpty(ctx context.Context, id int64, keyHash string) (bool, error)
	MainAdminExists(ctx context.Context) (bool, error)

	SaveSession(ctx context.Context, session *domain.RefreshSession) error
	FindSessionByToken(ctx context.Context, token string) (*domain.RefreshSession, error)
	DeleteSessionByID(ctx context.Context, id int64) error
	DeleteSessionByToken(ctx context.Context, token string) error
}

type userRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewUserRepository(pool *pgxpool.Pool, logger *zap.Logger) UserRepository {
	return &userRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/user_repo"),
	}
}

const userColumns = `id, email, password_hash, first_name, last_name, phone, address,
	role, security_key_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&u.Address,
		&u.Role,
		&u.SecurityKeyHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, tx pgx.Tx, user *domain.User) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Create")
	defer span.End()

	span.SetAttributes(attribute.String("role", string(user.Role)))

	query := `
		INSERT INTO users (email, password_hash, first_name, last_name, phone, address, role, security_key_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns

	created, err := scanUser(tx.QueryRow(
		ctx,
		query,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Address,
		user.Role,
		user.SecurityKeyHash,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrUserExists
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to insert user", zap.Error(err))

		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return created, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.GetByEmail")
	defer span.End()

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("error getting user by email: %w", err)
	}

	return user, nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.Int64("id", id))

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}

		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Failed to find user by id",
			zap.Int64("user_id", id),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error finding user: %w", err)
	}

	return user, nil
}

func (r *userRepo) List(ctx context.Context, limit, offset int64) ([]domain.User, int64, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.List")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("limit", limit),
		attribute.Int64("offset", offset),
	)

	query := `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			span.RecordError(err)
			return nil, 0, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("error counting users: %w", err)
	}

	return users, total, nil
}

func (r *userRepo) Delete(ctx context.Context, id int64) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Delete")
	defer span.End()

	span.SetAttributes(attribute.Int64("id", id))

	commandTag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to delete user", zap.Int64("user_id", id), zap.Error(err))

		return fmt.Errorf("error deleting user: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

func (r *userRepo) UpdateRole(ctx context.Context, id int64, role domain.Role) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.UpdateRole")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", id),
		attribute.String("role", string(role)),
	)

	query := `
		UPDATE users
		SET role = $1, updated_at = NOW()
		WHERE id = $2
	`

	commandTag, err := r.pool.Exec(ctx, query, role, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("error updating role: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// SetSecurityKeyIfEmpty stores the key only when none is set yet and reports
// whether this call stored it.
func (r *userRepo) SetSecurityKeyIfEmpty(ctx context.Context, id int64, keyHash string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.SetSecurityKeyIfEmpty")
	defer span.End()

	query := `
		UPDATE users
		SET security_key_hash = $1, updated_at = NOW()
		WHERE id = $2 AND security_key_hash IS NULL
	`

	commandTag, err := r.pool.Exec(ctx, query, keyHash, id)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("error setting security key: %w", err)
	}

	return commandTag.RowsAffected() == 1, nil
}

func (r *userRepo) MainAdminExists(ctx context.Context) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.MainAdminExists")
	defer span.End()

	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE role = $1)`, domain.RoleMainAdmin).
		Scan(&exists)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("error checking main admin: %w", err)
	}

	return exists, nil
}

func (r *userRepo) SaveSession(ctx context.Context, session *domain.RefreshSession) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.SaveSession")
	defer span.End()

	span.SetAttributes(attribute.Int64("user_id", session.UserID))

	query := `
		INSERT INTO refresh_sessions (user_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	if err := r.pool.QueryRow(ctx, query, session.UserID, session.Token, session.ExpiresAt).
		Scan(&session.ID, &session.CreatedAt); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to save session", zap.Error(err))

		return fmt.Errorf("error saving session: %w", err)
	}

	return nil
}

func (r *userRepo) FindSessionByToken(ctx context.Context, token string) (*domain.RefreshSession, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.FindSessionByToken")
	defer span.End()

	query := `
		SELECT id, user_id, token, expires_at, created_at
		FROM refresh_sessions
		WHERE token = $1
	`

	var s domain.RefreshSession
	if err := r.pool.QueryRow(ctx, query, token).
		Scan(&s.ID, &s.UserID, &s.Token, &s.ExpiresAt, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("error finding session: %w", err)
	}

	return &s, nil
}

func (r *userRepo) DeleteSessionByID(ctx context.Context, id int64) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.DeleteSessionByID")
	defer span.End()

	commandTag, err := r.pool.Exec(ctx, `DELETE FROM refresh_sessions WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("error deleting session: %w", err)
	}

	// a concurrent refresh already consumed it
	if commandTag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}

	return nil
}

func (r *userRepo) DeleteSessionByToken(ctx context.Context, token string) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.DeleteSessionByToken")
	defer span.End()

	commandTag, err := r.pool.Exec(ctx, `DELETE FROM refresh_sessions WHERE token = $1`, token)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("error deleting session: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}

	return nil
}
