package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/internal/repository"
	"github.com/sakashimaa/electro-shop/internal/token"
	"github.com/sakashimaa/electro-shop/pkg/config"
	sharedDomain "github.com/sakashimaa/electro-shop/pkg/domain"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	outboxDomain "github.com/sakashimaa/electro-shop/pkg/outbox/domain"
	"github.com/sakashimaa/electro-shop/pkg/outbox/worker"
	passwordValidator "github.com/sakashimaa/electro-shop/pkg/validator"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const userAggregate = "User"

var bcryptCost = 12

type AuthService interface {
	Register(ctx context.Context, in *domain.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, in *domain.LoginInput) (*domain.TokenPair, error)
	AdminLogin(ctx context.Context, in *domain.AdminLoginInput) (*domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID int64) (*domain.User, error)
	SeedMainAdmin(ctx context.Context, admin config.Admin) error
}

type authService struct {
	pool      *pgxpool.Pool
	userRepo  repository.UserRepository
	outbox    worker.OutboxRepository
	tokens    *token.Manager
	validator *validator.Validate
	passwords passwordValidator.Validator
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewAuthService(
	pool *pgxpool.Pool,
	userRepo repository.UserRepository,
	outbox worker.OutboxRepository,
	tokens *token.Manager,
	validator *validator.Validate,
	passwords passwordValidator.Validator,
	logger *zap.Logger,
) AuthService {
	return &authService{
		pool:      pool,
		userRepo:  userRepo,
		outbox:    outbox,
		tokens:    tokens,
		validator: validator,
		passwords: passwords,
		logger:    logger,
		tracer:    otel.Tracer("service/auth_service"),
	}
}

func hashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("error hashing secret: %w", err)
	}
	return string(hashed), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkPassword(passwords passwordValidator.Validator, password string) error {
	if err := passwords.ValidatePassword(password); err != nil {
		return domain.NewValidationError("password", err.Error())
	}
	return nil
}

func (s *authService) Register(ctx context.Context, in *domain.RegisterInput) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Register")
	defer span.End()

	if err := validateStruct(s.validator, in); err != nil {
		return nil, err
	}
	if err := checkPassword(s.passwords, in.Password); err != nil {
		return nil, err
	}

	hashed, err := hashSecret(in.Password)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Error hashing password", zap.Error(err))
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Error starting transaction", zap.Error(err))
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer rollback(ctx, tx, s.logger)

	user, err := s.userRepo.Create(ctx, tx, &domain.User{
		Email:        normalizeEmail(in.Email),
		PasswordHash: hashed,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        in.Phone,
		Address:      in.Address,
		Role:         domain.RoleCustomer,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			mylogger.Info(ctx, s.logger, "User already exists")
			return nil, err
		}

		span.RecordError(err)
		return nil, err
	}

	event, err := outboxDomain.NewEvent(userAggregate, user.ID, sharedDomain.EventUserRegistered, sharedDomain.TopicUserRegistered,
		sharedDomain.UserRegisteredEvent{
			UserID:    user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
		})
	if err != nil {
		return nil, err
	}

	if err := s.outbox.SaveOutboxEvent(ctx, tx, event); err != nil {
		mylogger.Error(ctx, s.logger, "Error saving outbox event", zap.Error(err))
		return nil, fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(ctx, s.logger, "User registered", zap.Int64("user_id", user.ID))

	return user, nil
}

// authenticate never tells the caller which of email or password was wrong.
func (s *authService) authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		mylogger.Warn(ctx, s.logger, "Invalid credentials", zap.Int64("user_id", user.ID))
		return nil, domain.ErrInvalidCredentials
	}

	return user, nil
}

// Login is for customers. Admin accounts sign in through AdminLogin.
func (s *authService) Login(ctx context.Context, in *domain.LoginInput) (*domain.TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	if err := validateStruct(s.validator, in); err != nil {
		return nil, err
	}

	user, err := s.authenticate(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	if user.Role.IsAdmin() {
		return nil, fmt.Errorf("%w: administrators must use the admin login", domain.ErrForbidden)
	}

	return s.issue(ctx, user)
}

// AdminLogin checks the security key on top of the password. An admin with
// no stored key sets it on this first login.
func (s *authService) AdminLogin(ctx context.Context, in *domain.AdminLoginInput) (*domain.TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.AdminLogin")
	defer span.End()

	if err := validateStruct(s.validator, in); err != nil {
		return nil, err
	}

	user, err := s.authenticate(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("user_id", user.ID))

	if !user.Role.IsAdmin() {
		return nil, domain.ErrInvalidCredentials
	}

	if user.SecurityKeyHash == nil {
		keyHash, err := hashSecret(in.SecurityKey)
		if err != nil {
			return nil, err
		}

		stored, err := s.userRepo.SetSecurityKeyIfEmpty(ctx, user.ID, keyHash)
		if err != nil {
			return nil, err
		}
		if stored {
			mylogger.Info(ctx, s.logger, "Admin security key set", zap.Int64("user_id", user.ID))
			return s.issue(ctx, user)
		}

		// another login stored a key first
		if user, err = s.userRepo.GetByID(ctx, user.ID); err != nil {
			return nil, err
		}
		if user.SecurityKeyHash == nil {
			return nil, domain.ErrInvalidCredentials
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.SecurityKeyHash), []byte(in.SecurityKey)); err != nil {
		mylogger.Warn(ctx, s.logger, "Invalid admin security key", zap.Int64("user_id", user.ID))
		return nil, domain.ErrInvalidCredentials
	}

	return s.issue(ctx, user)
}

func (s *authService) issue(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	pair, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to generate tokens", zap.Error(err))
		return nil, err
	}

	session := &domain.RefreshSession{
		UserID:    user.ID,
		Token:     pair.RefreshToken,
		ExpiresAt: time.Now().Add(s.tokens.RefreshTTL()),
	}
	if err := s.userRepo.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return pair, nil
}

// Refresh rotates the session. The role is re-read so a role change applies
// from the next refresh on.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Refresh")
	defer span.End()

	if _, err := s.tokens.ParseRefresh(refreshToken); err != nil {
		mylogger.Warn(ctx, s.logger, "Error validating refresh token", zap.Error(err))
		return nil, err
	}

	session, err := s.userRepo.FindSessionByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}

	if err := s.userRepo.DeleteSessionByID(ctx, session.ID); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}

	if session.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("%w: session expired", domain.ErrUnauthorized)
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}

	return s.issue(ctx, user)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := s.tracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	if err := s.userRepo.DeleteSessionByToken(ctx, refreshToken); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}

		mylogger.Error(ctx, s.logger, "Error deleting session", zap.Error(err))
		return err
	}

	return nil
}

func (s *authService) Me(ctx context.Context, userID int64) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Me")
	defer span.End()

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			mylogger.Error(ctx, s.logger, "Error finding user by id", zap.Int64("user_id", userID), zap.Error(err))
		}
		return nil, err
	}

	return user, nil
}

// SeedMainAdmin creates the single main admin when none exists yet. Its
// security key is set on first admin login.
func (s *authService) SeedMainAdmin(ctx context.Context, admin config.Admin) error {
	ctx, span := s.tracer.Start(ctx, "AuthService.SeedMainAdmin")
	defer span.End()

	exists, err := s.userRepo.MainAdminExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if admin.Email == "" || admin.Password == "" {
		mylogger.Warn(ctx, s.logger, "No main admin exists and none is configured")
		return nil
	}
	if err := checkPassword(s.passwords, admin.Password); err != nil {
		return fmt.Errorf("configured main admin: %w", err)
	}

	hashed, err := hashSecret(admin.Password)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer rollback(ctx, tx, s.logger)

	user, err := s.userRepo.Create(ctx, tx, &domain.User{
		Email:        normalizeEmail(admin.Email),
		PasswordHash: hashed,
		FirstName:    admin.FirstName,
		LastName:     admin.LastName,
		Role:         domain.RoleMainAdmin,
	})
	if err != nil {
		// another instance seeded concurrently, or the email is taken
		if errors.Is(err, domain.ErrUserExists) {
			mylogger.Warn(ctx, s.logger, "Main admin was not seeded", zap.Error(err))
			return nil
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(ctx, s.logger, "Main admin seeded", zap.Int64("user_id", user.ID))

	return nil
}
