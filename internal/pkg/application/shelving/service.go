package shelving

import (
	"context"
	"sync"
	"time"

	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/webevents"
	"github.com/labcontrol/labcontrol-api/internal/pkg/infrastructure/repositories/database"
	"github.com/labcontrol/labcontrol-api/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("labcontrol-api/shelving")

const SceneUpdatedEvent string = "sceneUpdated"

var sceneMutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "labcontrol_scene_mutations_total",
	Help: "Number of scene operations by kind and whether they changed the scene.",
}, []string{"operation", "applied"})

//go:generate moq -rm -out service_mock.go . SceneService

// SceneService keeps one scene per laboratory module and makes every applied change
// durable before it is announced to listeners.
type SceneService interface {
	Scene(ctx context.Context, moduleID uint) (types.SceneResponse, error)
	SetMode(ctx context.Context, moduleID uint, mode types.Mode) (types.SceneResponse, error)
	CreateShelf(ctx context.Context, moduleID uint) (types.MutationResult, error)
	DeleteShelf(ctx context.Context, moduleID uint, shelfID string, confirm bool) (types.MutationResult, error)
	CreateRow(ctx context.Context, moduleID uint, shelfID string) (types.MutationResult, error)
	DeleteRow(ctx context.Context, moduleID uint, shelfID, rowID string, confirm bool) (types.MutationResult, error)
	ToggleDeviceFlag(ctx context.Context, moduleID uint, shelfID, rowID string, flag types.DeviceFlag) (types.MutationResult, error)
	SelectShelf(ctx context.Context, moduleID uint, shelfID string) (types.MutationResult, error)
	SelectRow(ctx context.Context, moduleID uint, shelfID, rowID string) (types.MutationResult, error)
	ClearSelection(ctx context.Context, moduleID uint) (types.MutationResult, error)
	ApplyDeviceState(ctx context.Context, state types.RowDeviceState) error
	Forget(moduleID uint)
}

type service struct {
	mu     sync.Mutex
	scenes map[uint]*Scene

	layouts   database.LayoutRepository
	messenger messaging.MsgContext
	web       webevents.WebEvents
}

func New(layouts database.LayoutRepository, messenger messaging.MsgContext, web webevents.WebEvents) SceneService {
	return &service{
		scenes:    make(map[uint]*Scene),
		layouts:   layouts,
		messenger: messenger,
		web:       web,
	}
}

func (s *service) Scene(ctx context.Context, moduleID uint) (types.SceneResponse, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-scene")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	sc, err := s.scene(ctx, moduleID)
	if err != nil {
		return types.SceneResponse{}, err
	}

	state := sc.Snapshot()

	return types.SceneResponse{
		Scene:   state,
		Summary: summarize(state.Shelves, state.Mode),
	}, nil
}

func (s *service) SetMode(ctx context.Context, moduleID uint, mode types.Mode) (types.SceneResponse, error) {
	var err error

	ctx, span := tracer.Start(ctx, "set-scene-mode")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	sc, err := s.scene(ctx, moduleID)
	if err != nil {
		return types.SceneResponse{}, err
	}

	if err = sc.SetMode(mode); err != nil {
		return types.SceneResponse{}, err
	}

	state := sc.Snapshot()
	s.publish(ctx, "mode", true, state)

	return types.SceneResponse{
		Scene:   state,
		Summary: summarize(state.Shelves, state.Mode),
	}, nil
}

func (s *service) CreateShelf(ctx context.Context, moduleID uint) (types.MutationResult, error) {
	var shelf types.Shelf

	return s.mutate(ctx, moduleID, "create-shelf", true, func(sc *Scene) (types.MutationResult, bool) {
		var ok bool
		shelf, ok = sc.createShelf()
		return types.MutationResult{Shelf: &shelf}, ok
	})
}

func (s *service) DeleteShelf(ctx context.Context, moduleID uint, shelfID string, confirm bool) (types.MutationResult, error) {
	return s.mutate(ctx, moduleID, "delete-shelf", true, func(sc *Scene) (types.MutationResult, bool) {
		return types.MutationResult{}, sc.deleteShelf(shelfID, confirm)
	})
}

func (s *service) CreateRow(ctx context.Context, moduleID uint, shelfID string) (types.MutationResult, error) {
	var row types.Row

	return s.mutate(ctx, moduleID, "create-row", true, func(sc *Scene) (types.MutationResult, bool) {
		var ok bool
		row, ok = sc.createRow(shelfID)
		return types.MutationResult{Row: &row}, ok
	})
}

func (s *service) DeleteRow(ctx context.Context, moduleID uint, shelfID, rowID string, confirm bool) (types.MutationResult, error) {
	return s.mutate(ctx, moduleID, "delete-row", true, func(sc *Scene) (types.MutationResult, bool) {
		return types.MutationResult{}, sc.deleteRow(shelfID, rowID, confirm)
	})
}

func (s *service) ToggleDeviceFlag(ctx context.Context, moduleID uint, shelfID, rowID string, flag types.DeviceFlag) (types.MutationResult, error) {
	var row types.Row

	result, err := s.mutate(ctx, moduleID, "toggle-"+string(flag), true, func(sc *Scene) (types.MutationResult, bool) {
		var ok bool
		row, ok = sc.toggleDeviceFlag(shelfID, rowID, flag)
		return types.MutationResult{Row: &row}, ok
	})
	if err != nil || !result.Applied {
		return result, err
	}

	on := row.LightOn
	if flag == types.FlagIrrigation {
		on = row.IrrigationActive
	}

	s.command(ctx, &types.RowDeviceCommand{
		ModuleID:  moduleID,
		ShelfID:   shelfID,
		RowID:     rowID,
		Flag:      flag,
		On:        on,
		Timestamp: time.Now().UTC(),
	})

	return result, nil
}

func (s *service) SelectShelf(ctx context.Context, moduleID uint, shelfID string) (types.MutationResult, error) {
	return s.mutate(ctx, moduleID, "select-shelf", false, func(sc *Scene) (types.MutationResult, bool) {
		return types.MutationResult{}, sc.selectShelf(shelfID)
	})
}

func (s *service) SelectRow(ctx context.Context, moduleID uint, shelfID, rowID string) (types.MutationResult, error) {
	return s.mutate(ctx, moduleID, "select-row", false, func(sc *Scene) (types.MutationResult, bool) {
		return types.MutationResult{}, sc.selectRow(shelfID, rowID)
	})
}

func (s *service) ClearSelection(ctx context.Context, moduleID uint) (types.MutationResult, error) {
	return s.mutate(ctx, moduleID, "clear-selection", false, func(sc *Scene) (types.MutationResult, bool) {
		sc.selection = types.Selection{}
		return types.MutationResult{}, true
	})
}

// ApplyDeviceState stores flag values that field controllers report for a row.
func (s *service) ApplyDeviceState(ctx context.Context, state types.RowDeviceState) error {
	_, err := s.mutate(ctx, state.ModuleID, "device-state", true, func(sc *Scene) (types.MutationResult, bool) {
		row, ok := sc.applyDeviceState(state.ShelfID, state.RowID, state.LightOn, state.IrrigationActive)
		return types.MutationResult{Row: &row}, ok
	})
	return err
}

// Forget drops the cached scene of a module, e.g. after the module was deleted.
func (s *service) Forget(moduleID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.scenes, moduleID)
}

// mutate runs op while holding the scene lock. An applied change is saved before the
// lock is released and is rolled back if the layout could not be stored.
func (s *service) mutate(ctx context.Context, moduleID uint, operation string, persist bool, op func(*Scene) (types.MutationResult, bool)) (result types.MutationResult, err error) {
	ctx, span := tracer.Start(ctx, operation)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	sc, err := s.scene(ctx, moduleID)
	if err != nil {
		return types.MutationResult{}, err
	}

	result, err = s.apply(ctx, sc, persist, op)
	if err != nil {
		logger := logging.GetFromContext(ctx)
		logger.Error().Err(err).Uint("moduleID", moduleID).Msgf("%s could not be saved, scene restored", operation)
		return types.MutationResult{}, err
	}

	if !result.Applied {
		result.Shelf = nil
		result.Row = nil
	}

	s.publish(ctx, operation, result.Applied, result.Scene)

	return result, nil
}

func (s *service) apply(ctx context.Context, sc *Scene, persist bool, op func(*Scene) (types.MutationResult, bool)) (types.MutationResult, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	before := sc.snapshot()

	result, applied := op(sc)
	result.Applied = applied

	if !applied {
		result.Scene = before
		return result, nil
	}

	after := sc.snapshot()

	if persist {
		err := s.layouts.SaveLayout(ctx, sc.moduleID, MapFromShelves(sc.moduleID, after.Shelves))
		if err != nil {
			sc.restore(before)
			return types.MutationResult{}, err
		}
	}

	result.Scene = after

	return result, nil
}

func (s *service) scene(ctx context.Context, moduleID uint) (*Scene, error) {
	s.mu.Lock()
	sc, ok := s.scenes[moduleID]
	s.mu.Unlock()

	if ok {
		return sc, nil
	}

	shelves, err := s.layouts.LoadLayout(ctx, moduleID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sc, ok = s.scenes[moduleID]; ok {
		return sc, nil
	}

	sc = NewScene(moduleID, MapToShelves(shelves))
	s.scenes[moduleID] = sc

	logger := logging.GetFromContext(ctx)
	logger.Debug().Uint("moduleID", moduleID).Int("shelves", len(shelves)).Msg("scene loaded")

	return sc, nil
}

func (s *service) publish(ctx context.Context, operation string, applied bool, state types.SceneState) {
	sceneMutations.WithLabelValues(operation, boolLabel(applied)).Inc()

	if !applied || s.web == nil {
		return
	}

	err := s.web.Publish(state.ModuleID, SceneUpdatedEvent, state)
	if err != nil {
		logger := logging.GetFromContext(ctx)
		logger.Warn().Err(err).Msg("could not publish scene update")
	}
}

func (s *service) command(ctx context.Context, cmd *types.RowDeviceCommand) {
	if s.messenger == nil {
		return
	}

	err := s.messenger.PublishOnTopic(ctx, cmd)
	if err != nil {
		logger := logging.GetFromContext(ctx)
		logger.Error().Err(err).Str("rowID", cmd.RowID).Msgf("failed to publish %s", cmd.TopicName())
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
