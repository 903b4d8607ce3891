package modules

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/authentication"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/events"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/validation"
	"github.com/labcontrol/labcontrol-api/internal/pkg/infrastructure/repositories/database"
	"github.com/labcontrol/labcontrol-api/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("labcontrol-api/modules")

var ErrDeleteNotConfirmed = fmt.Errorf("%w: the deletion must be confirmed", validation.ErrValidation)

var moduleOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "labcontrol_module_operations_total",
	Help: "Number of module write operations by kind and outcome.",
}, []string{"operation", "outcome"})

//go:generate moq -rm -out modules_mock.go . ModuleService

type ModuleService interface {
	List(ctx context.Context) ([]types.Module, error)
	Get(ctx context.Context, id uint) (types.Module, error)
	Create(ctx context.Context, req types.CreateModuleRequest) (types.ModuleResult, error)
	Update(ctx context.Context, id uint, req types.UpdateModuleRequest) (types.ModuleResult, error)
	Delete(ctx context.Context, id uint, req types.DeleteRequest) (string, error)
}

type service struct {
	repo   database.ModuleRepository
	auth   authentication.Authenticator
	events events.EventSender
}

func New(repo database.ModuleRepository, auth authentication.Authenticator, sender events.EventSender) ModuleService {
	return &service{
		repo:   repo,
		auth:   auth,
		events: sender,
	}
}

func (s *service) List(ctx context.Context) ([]types.Module, error) {
	var err error

	ctx, span := tracer.Start(ctx, "list-modules")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	modules, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	return lo.Map(modules, func(m database.ModuleWithUsers, _ int) types.Module { return toModule(m) }), nil
}

func (s *service) Get(ctx context.Context, id uint) (types.Module, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-module")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.Module{}, err
	}

	return toModule(m), nil
}

// Create inserts the module and its user associations as one unit. The result
// echoes the association list as it was given, or an empty list when it was left out.
func (s *service) Create(ctx context.Context, req types.CreateModuleRequest) (types.ModuleResult, error) {
	var err error

	ctx, span := tracer.Start(ctx, "create-module")
	defer func() {
		moduleOperations.WithLabelValues("create", outcome(err)).Inc()
		tracing.RecordAnyErrorAndEndSpan(err, span)
	}()

	if err = validation.Struct(req); err != nil {
		return types.ModuleResult{}, err
	}

	users := req.Users
	if users == nil {
		users = []uint{}
	}

	m, err := s.repo.Create(ctx, database.Module{
		Name:         req.Name,
		Description:  req.Description,
		StatusID:     req.StatusID,
		LaboratoryID: req.LaboratoryID,
	}, users)
	if err != nil {
		return types.ModuleResult{}, err
	}

	logger := logging.GetFromContext(ctx)
	logger.Info().Uint("moduleID", m.ID).Int("users", len(users)).Msg("module created")

	s.notify(ctx, m.ID, &types.ModuleCreated{ModuleID: m.ID, Name: m.Name, Users: users, Timestamp: time.Now().UTC()})

	return types.ModuleResult{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		StatusID:     m.StatusID,
		LaboratoryID: m.LaboratoryID,
		Users:        users,
	}, nil
}

// Update writes the module fields and resynchronises the associations when the
// request carries a user list. An empty or null list removes every association.
func (s *service) Update(ctx context.Context, id uint, req types.UpdateModuleRequest) (types.ModuleResult, error) {
	var err error

	ctx, span := tracer.Start(ctx, "update-module")
	defer func() {
		moduleOperations.WithLabelValues("update", outcome(err)).Inc()
		tracing.RecordAnyErrorAndEndSpan(err, span)
	}()

	if err = validation.Struct(req); err != nil {
		return types.ModuleResult{}, err
	}

	err = s.repo.Update(ctx, database.Module{
		ID:           id,
		Name:         req.Name,
		Description:  req.Description,
		StatusID:     req.StatusID,
		LaboratoryID: req.LaboratoryID,
	}, req.Users.Replacement())
	if err != nil {
		return types.ModuleResult{}, err
	}

	result := types.ModuleResult{
		ID:           id,
		Name:         req.Name,
		Description:  req.Description,
		StatusID:     req.StatusID,
		LaboratoryID: req.LaboratoryID,
		Users:        types.UsersUnchanged,
	}

	if users := req.Users.Replacement(); users != nil {
		result.Users = *users
	}

	s.notify(ctx, id, &types.ModuleUpdated{ModuleID: id, Name: req.Name, Timestamp: time.Now().UTC()})

	return result, nil
}

// Delete requires an explicit confirmation and the credentials of an administrator
// before the module and everything that depends on it is removed.
func (s *service) Delete(ctx context.Context, id uint, req types.DeleteRequest) (string, error) {
	var err error

	ctx, span := tracer.Start(ctx, "delete-module")
	defer func() {
		moduleOperations.WithLabelValues("delete", outcome(err)).Inc()
		tracing.RecordAnyErrorAndEndSpan(err, span)
	}()

	if !req.ConfirmDelete {
		err = ErrDeleteNotConfirmed
		return "", err
	}

	if err = s.auth.VerifyAdmin(ctx, req.AdminID, req.AdminPassword); err != nil {
		return "", err
	}

	if _, err = s.repo.GetByID(ctx, id); err != nil {
		return "", err
	}

	message, err := s.repo.Delete(ctx, id)
	if err != nil {
		return "", err
	}

	logger := logging.GetFromContext(ctx)
	logger.Info().Uint("moduleID", id).Uint("adminID", req.AdminID).Msg("module deleted")

	s.notify(ctx, id, &types.ModuleDeleted{ModuleID: id, Timestamp: time.Now().UTC()})

	return message, nil
}

func (s *service) notify(ctx context.Context, id uint, event events.Event) {
	if s.events == nil {
		return
	}

	err := s.events.Send(ctx, strconv.FormatUint(uint64(id), 10), event)
	if err != nil {
		logger := logging.GetFromContext(ctx)
		logger.Warn().Err(err).Msgf("could not deliver %s", event.EventType())
	}
}

func outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}

func toModule(m database.ModuleWithUsers) types.Module {
	users := lo.Map(m.Users, func(u database.User, _ int) types.UserRef {
		return types.UserRef{ID: u.ID, Username: u.Username}
	})

	return types.Module{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		StatusID:     m.StatusID,
		LaboratoryID: m.LaboratoryID,
		TotalUsers:   len(users),
		Users:        users,
	}
}
