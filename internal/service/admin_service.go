package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/electro-shop/internal/authz"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/internal/repository"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	passwordValidator "github.com/sakashimaa/electro-shop/pkg/validator"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const topProductsLimit = 10

// AdminService is the main admin's console: accounts and reports.
type AdminService interface {
	CreateStandardAdmin(ctx context.Context, actor authz.Principal, in *domain.CreateStandardAdminInput) (*domain.User, error)
	ListUsers(ctx context.Context, actor authz.Principal, limit, offset int64) ([]domain.User, int64, error)
	DeleteUser(ctx context.Context, actor authz.Principal, userID int64) error
	ChangeRole(ctx context.Context, actor authz.Principal, userID int64, role domain.Role) error
	Revenue(ctx context.Context, actor authz.Principal) (*domain.RevenueReport, error)
	TopProducts(ctx context.Context, actor authz.Principal) ([]domain.TopProduct, error)
	Activity(ctx context.Context, actor authz.Principal) ([]domain.ActivityEntry, error)
}

type adminService struct {
	pool      *pgxpool.Pool
	users     repository.UserRepository
	reports   repository.ReportRepository
	activity  ActivityService
	validator *validator.Validate
	passwords passwordValidator.Validator
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewAdminService(
	pool *pgxpool.Pool,
	users repository.UserRepository,
	reports repository.ReportRepository,
	activity ActivityService,
	validator *validator.Validate,
	passwords passwordValidator.Validator,
	logger *zap.Logger,
) AdminService {
	return &adminService{
		pool:      pool,
		users:     users,
		reports:   reports,
		activity:  activity,
		validator: validator,
		passwords: passwords,
		logger:    logger,
		tracer:    otel.Tracer("service/admin_service"),
	}
}

func (s *adminService) CreateStandardAdmin(
	ctx context.Context,
	actor authz.Principal,
	in *domain.CreateStandardAdminInput,
) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "AdminService.CreateStandardAdmin")
	defer span.End()

	if !actor.Can(authz.AdminsCreate) {
		return nil, domain.ErrForbidden
	}
	if err := validateStruct(s.validator, in); err != nil {
		return nil, err
	}
	if err := checkPassword(s.passwords, in.Password); err != nil {
		return nil, err
	}

	passwordHash, err := hashSecret(in.Password)
	if err != nil {
		return nil, err
	}
	keyHash, err := hashSecret(in.SecurityKey)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, tx, s.logger)

	user, err := s.users.Create(ctx, tx, &domain.User{
		Email:           normalizeEmail(in.Email),
		PasswordHash:    passwordHash,
		FirstName:       strings.TrimSpace(in.FirstName),
		LastName:        strings.TrimSpace(in.LastName),
		Role:            domain.RoleStandardAdmin,
		SecurityKeyHash: &keyHash,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrAlreadyExists) {
			span.RecordError(err)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.activity.Record(ctx, actor.UserID, domain.ActionAdminCreated, map[string]any{
		"userId": user.ID,
		"email":  user.Email,
	})

	return user, nil
}

func (s *adminService) ListUsers(ctx context.Context, actor authz.Principal, limit, offset int64) ([]domain.User, int64, error) {
	ctx, span := s.tracer.Start(ctx, "AdminService.ListUsers")
	defer span.End()

	if !actor.Can(authz.UsersManage) {
		return nil, 0, domain.ErrForbidden
	}

	limit, offset = ClampPage(limit, offset)

	users, total, err := s.users.List(ctx, limit, offset)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Failed to list users", zap.Error(err))
		return nil, 0, err
	}

	return users, total, nil
}

// DeleteUser refuses to remove the caller or the main admin.
func (s *adminService) DeleteUser(ctx context.Context, actor authz.Principal, userID int64) error {
	ctx, span := s.tracer.Start(ctx, "AdminService.DeleteUser")
	defer span.End()

	span.SetAttributes(attribute.Int64("user_id", userID))

	if !actor.Can(authz.UsersManage) {
		return domain.ErrForbidden
	}
	if userID == actor.UserID {
		return fmt.Errorf("%w: you cannot delete your own account", domain.ErrForbidden)
	}

	target, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if target.Role == domain.RoleMainAdmin {
		return fmt.Errorf("%w: the main admin cannot be deleted", domain.ErrForbidden)
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}

	s.activity.Record(ctx, actor.UserID, domain.ActionUserDeleted, map[string]any{
		"userId": userID,
		"email":  target.Email,
	})

	return nil
}

// ChangeRole moves a user between customer and standard_admin. Nobody can be
// promoted to main_admin, and the main admin's role never changes.
func (s *adminService) ChangeRole(ctx context.Context, actor authz.Principal, userID int64, role domain.Role) error {
	ctx, span := s.tracer.Start(ctx, "AdminService.ChangeRole")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.String("role", string(role)),
	)

	if !actor.Can(authz.UsersManage) {
		return domain.ErrForbidden
	}
	if role != domain.RoleCustomer && role != domain.RoleStandardAdmin {
		return domain.NewValidationError("role", "role must be one of [customer standard_admin]")
	}
	if userID == actor.UserID {
		return fmt.Errorf("%w: you cannot change your own role", domain.ErrForbidden)
	}

	target, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if target.Role == domain.RoleMainAdmin {
		return fmt.Errorf("%w: the main admin role cannot be changed", domain.ErrForbidden)
	}
	if target.Role == role {
		return nil
	}

	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return err
	}

	s.activity.Record(ctx, actor.UserID, domain.ActionUserRoleChanged, map[string]any{
		"userId": userID,
		"from":   target.Role,
		"to":     role,
	})

	return nil
}

func (s *adminService) Revenue(ctx context.Context, actor authz.Principal) (*domain.RevenueReport, error) {
	ctx, span := s.tracer.Start(ctx, "AdminService.Revenue")
	defer span.End()

	if !actor.Can(authz.ReportsRead) {
		return nil, domain.ErrForbidden
	}

	report, err := s.reports.Revenue(ctx)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Failed to compute revenue", zap.Error(err))
		return nil, err
	}

	return report, nil
}

func (s *adminService) TopProducts(ctx context.Context, actor authz.Principal) ([]domain.TopProduct, error) {
	ctx, span := s.tracer.Start(ctx, "AdminService.TopProducts")
	defer span.End()

	if !actor.Can(authz.ReportsRead) {
		return nil, domain.ErrForbidden
	}

	top, err := s.reports.TopProducts(ctx, topProductsLimit)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Failed to compute top products", zap.Error(err))
		return nil, err
	}

	return top, nil
}

func (s *adminService) Activity(ctx context.Context, actor authz.Principal) ([]domain.ActivityEntry, error) {
	if !actor.Can(authz.ActivityRead) {
		return nil, domain.ErrForbidden
	}
	return s.activity.Recent(ctx)
}
