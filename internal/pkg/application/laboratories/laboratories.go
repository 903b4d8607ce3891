package laboratories

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/authentication"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/validation"
	"github.com/labcontrol/labcontrol-api/internal/pkg/infrastructure/repositories/database"
	"github.com/labcontrol/labcontrol-api/pkg/types"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("labcontrol-api/laboratories")

var ErrDeleteNotConfirmed = fmt.Errorf("%w: the deletion must be confirmed", validation.ErrValidation)

var statusNames = map[string]uint{
	"active":      database.StatusActive,
	"maintenance": database.StatusMaintenance,
	"inactive":    database.StatusInactive,
}

//go:generate moq -rm -out laboratories_mock.go . LaboratoryService

type LaboratoryService interface {
	List(ctx context.Context, params map[string][]string) ([]types.Laboratory, error)
	Get(ctx context.Context, id uint) (types.Laboratory, error)
	Create(ctx context.Context, req types.LaboratoryRequest) (types.Laboratory, error)
	Update(ctx context.Context, id uint, req types.LaboratoryRequest) (types.Laboratory, error)
	Delete(ctx context.Context, id uint, req types.DeleteRequest) error
	Summary(ctx context.Context) (types.LaboratorySummary, error)
}

type service struct {
	repo database.LaboratoryRepository
	auth authentication.Authenticator
}

func New(repo database.LaboratoryRepository, auth authentication.Authenticator) LaboratoryService {
	return &service{repo: repo, auth: auth}
}

// List supports the query parameters estado (status name or id), automatizacion (on|off)
// and q, a free text search over code, name and description.
func (s *service) List(ctx context.Context, params map[string][]string) ([]types.Laboratory, error) {
	var err error

	ctx, span := tracer.Start(ctx, "list-laboratories")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	filter := database.LaboratoryFilter{}

	if estado := first(params, "estado"); estado != "" && estado != "all" {
		id, ok := statusNames[strings.ToLower(estado)]
		if !ok {
			n, convErr := strconv.Atoi(estado)
			if convErr != nil || n < 1 || n > 3 {
				err = fmt.Errorf("%w: unknown estado %q", validation.ErrValidation, estado)
				return nil, err
			}
			id = uint(n)
		}
		filter.StatusID = id
	}

	if automation := first(params, "automatizacion"); automation != "" && automation != "all" {
		if automation != "on" && automation != "off" {
			err = fmt.Errorf("%w: automatizacion must be on or off", validation.ErrValidation)
			return nil, err
		}
		filter.Automation = automation
	}

	filter.Query = first(params, "q")

	labs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return lo.Map(labs, func(l database.LaboratoryWithUsers, _ int) types.Laboratory { return toLaboratory(l) }), nil
}

func (s *service) Get(ctx context.Context, id uint) (types.Laboratory, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-laboratory")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	lab, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Laboratory{}, err
	}

	return toLaboratory(lab), nil
}

func (s *service) Create(ctx context.Context, req types.LaboratoryRequest) (types.Laboratory, error) {
	var err error

	ctx, span := tracer.Start(ctx, "create-laboratory")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if err = validation.Struct(req); err != nil {
		return types.Laboratory{}, err
	}

	created, err := s.repo.Create(ctx, fromRequest(req))
	if err != nil {
		return types.Laboratory{}, err
	}

	logger := logging.GetFromContext(ctx)
	logger.Info().Uint("laboratoryID", created.ID).Msg("laboratory created")

	return s.Get(ctx, created.ID)
}

func (s *service) Update(ctx context.Context, id uint, req types.LaboratoryRequest) (types.Laboratory, error) {
	var err error

	ctx, span := tracer.Start(ctx, "update-laboratory")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if err = validation.Struct(req); err != nil {
		return types.Laboratory{}, err
	}

	lab := fromRequest(req)
	lab.ID = id

	_, err = s.repo.Update(ctx, lab)
	if err != nil {
		return types.Laboratory{}, err
	}

	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uint, req types.DeleteRequest) error {
	var err error

	ctx, span := tracer.Start(ctx, "delete-laboratory")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if !req.ConfirmDelete {
		err = ErrDeleteNotConfirmed
		return err
	}

	if err = s.auth.VerifyAdmin(ctx, req.AdminID, req.AdminPassword); err != nil {
		return err
	}

	if err = s.repo.Delete(ctx, id); err != nil {
		return err
	}

	logger := logging.GetFromContext(ctx)
	logger.Info().Uint("laboratoryID", id).Uint("adminID", req.AdminID).Msg("laboratory deleted")

	return nil
}

func (s *service) Summary(ctx context.Context) (types.LaboratorySummary, error) {
	var err error

	ctx, span := tracer.Start(ctx, "laboratory-summary")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	stats, err := s.repo.Statistics(ctx)
	if err != nil {
		return types.LaboratorySummary{}, err
	}

	return types.LaboratorySummary{
		Total:         stats.Total,
		Active:        stats.Active,
		Automated:     stats.Automated,
		ActiveSensors: stats.ActiveSensors,
		TotalUsers:    stats.TotalUsers,
	}, nil
}

func first(params map[string][]string, key string) string {
	if v, ok := params[key]; ok && len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func fromRequest(req types.LaboratoryRequest) database.Laboratory {
	automation := req.AutomationStatus
	if automation == "" {
		automation = "off"
	}

	return database.Laboratory{
		Code:          strings.TrimSpace(req.Code),
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		StatusID:      req.StatusID,
		Temperature:   req.Temperature,
		Humidity:      req.Humidity,
		Automation:    automation,
		ZoneDisabled:  req.IsZoneDisabled,
		ActiveSensors: req.ActiveSensors,
		Devices:       req.Devices,
	}
}

func toLaboratory(l database.LaboratoryWithUsers) types.Laboratory {
	return types.Laboratory{
		ID:               l.ID,
		Code:             l.Code,
		Name:             l.Name,
		Description:      l.Description,
		StatusID:         l.StatusID,
		Status:           l.Status.Name,
		Temperature:      l.Temperature,
		Humidity:         l.Humidity,
		AutomationStatus: l.Automation,
		IsZoneDisabled:   l.ZoneDisabled,
		ActiveSensors:    l.ActiveSensors,
		Devices:          l.Devices,
		AssociatedUsers:  l.TotalUsers,
		CreatedAt:        l.CreatedAt,
	}
}
