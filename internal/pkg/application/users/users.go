package users

import (
	"context"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/authentication"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/validation"
	"github.com/labcontrol/labcontrol-api/internal/pkg/infrastructure/repositories/database"
	"github.com/labcontrol/labcontrol-api/pkg/types"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("labcontrol-api/users")

//go:generate moq -rm -out users_mock.go . UserService

type UserService interface {
	Create(ctx context.Context, req types.CreateUserRequest) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
}

type service struct {
	repo database.UserRepository
}

func New(repo database.UserRepository) UserService {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, req types.CreateUserRequest) (types.User, error) {
	var err error

	ctx, span := tracer.Start(ctx, "create-user")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if err = validation.Struct(req); err != nil {
		return types.User{}, err
	}

	hash, err := authentication.HashPassword(req.Password)
	if err != nil {
		return types.User{}, err
	}

	status := 1
	if req.Status != nil {
		status = *req.Status
	}

	user, err := s.repo.Create(ctx, database.User{
		Name:     req.Name,
		Username: req.Username,
		Password: hash,
		Email:    req.Email,
		RoleID:   req.RoleID,
		Status:   status,
	})
	if err != nil {
		return types.User{}, err
	}

	logger := logging.GetFromContext(ctx)
	logger.Info().Uint("userID", user.ID).Msg("user created")

	user.Role.ID = req.RoleID
	user.Role.Name = roleName(req.RoleID)

	return toUser(user), nil
}

func (s *service) List(ctx context.Context) ([]types.User, error) {
	var err error

	ctx, span := tracer.Start(ctx, "list-users")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	return lo.Map(users, func(u database.User, _ int) types.User { return toUser(u) }), nil
}

func roleName(id uint) string {
	if id == database.RoleAdmin {
		return "admin"
	}
	return "operator"
}

func toUser(u database.User) types.User {
	return types.User{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		Email:     u.Email,
		RoleID:    u.RoleID,
		Role:      u.Role.Name,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}
