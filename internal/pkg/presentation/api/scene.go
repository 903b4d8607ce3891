package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/shelving"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/validation"
	"github.com/labcontrol/labcontrol-api/internal/pkg/infrastructure/logging"
	"github.com/labcontrol/labcontrol-api/pkg/types"
	"github.com/rs/zerolog"
)

type sceneOperation func(ctx context.Context, r *http.Request, moduleID uint) (types.MutationResult, error)

// sceneHandler runs a scene operation for the module in the path. Operations that
// change nothing still answer 200 with applied set to false.
func sceneHandler(log zerolog.Logger, name string, op sceneOperation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), name)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		moduleID, err := idParam(r, "id")
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		requestLogger = requestLogger.With().Uint("moduleID", moduleID).Logger()

		result, err := op(ctx, r, moduleID)
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		requestLogger.Debug().Bool("applied", result.Applied).Msg(name)

		writeJSON(w, requestLogger, http.StatusOK, result)
	}
}

func getSceneHandler(log zerolog.Logger, svc shelving.SceneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-scene")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		moduleID, err := idParam(r, "id")
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		scene, err := svc.Scene(ctx, moduleID)
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		writeJSON(w, requestLogger, http.StatusOK, scene)
	}
}

func setModeHandler(log zerolog.Logger, svc shelving.SceneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "set-scene-mode")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		moduleID, err := idParam(r, "id")
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		var req types.ModeRequest
		if err = decode(r, &req); err != nil {
			writeError(w, requestLogger, err)
			return
		}

		if err = validation.Struct(req); err != nil {
			writeError(w, requestLogger, err)
			return
		}

		scene, err := svc.SetMode(ctx, moduleID, req.Mode)
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		writeJSON(w, requestLogger, http.StatusOK, scene)
	}
}

func createShelfHandler(log zerolog.Logger, svc shelving.SceneService) http.HandlerFunc {
	return sceneHandler(log, "create-shelf", func(ctx context.Context, r *http.Request, moduleID uint) (types.MutationResult, error) {
		return svc.CreateShelf(ctx, moduleID)
	})
}

func deleteShelfHandler(log zerolog.Logger, svc shelving.SceneService) http.HandlerFunc {
	return sceneHandler(log, "delete-shelf", func(ctx context.Context, r *http.Request, moduleID uint) (types.MutationResult, error) {
		return svc.DeleteShelf(ctx, moduleID, chi.URLParam(r, "shelfID"), confirmed(r))
	})
}

func selectShelfHandler(log zerolog.Logger, svc shelving.SceneService) http.HandlerFunc {
	return sceneHandler(log, "select-shelf", func(ctx context.Context, r *http.Request, moduleID uint) (types.MutationResult, error) {
		return svc.SelectShelf(ctx, moduleID, chi.URLParam(r, "shelfID"))
	})
}

func createRowHandler(log zerolog.Logger, svc shelving.SceneService) http.HandlerFunc {
	return sceneHandler(log, "create-row", func(ctx context.Context, r *http.Request, moduleID uint) (types.MutationResult, error) {
		return svc.CreateRow(ctx, moduleID, chi.URLParam(r, "shelfID"))
	})
}

func deleteRowHandler(log zerolog.Logger, svc shelving.SceneService) http.HandlerFunc {
	return sceneHandler(log, "delete-row", func(ctx context.Context, r *http.Request, moduleID uint) (types.MutationResult, error) {
		return svc.DeleteRow(ctx, moduleID, chi.URLParam(r, "shelfID"), chi.URLParam(r, "rowID"), confirmed(r))
	})
}

func selectRowHandler(log zerolog.Logger, svc shelving.SceneService) http.HandlerFunc {
	return sceneHandler(log, "select-row", func(ctx context.Context, r *http.Request, moduleID uint) (types.MutationResult, error) {
		return svc.SelectRow(ctx, moduleID, chi.URLParam(r, "shelfID"), chi.URLParam(r, "rowID"))
	})
}

func toggleFlagHandler(log zerolog.Logger, svc shelving.SceneService) http.HandlerFunc {
	return sceneHandler(log, "toggle-device-flag", func(ctx context.Context, r *http.Request, moduleID uint) (types.MutationResult, error) {
		flag := types.DeviceFlag(chi.URLParam(r, "flag"))
		if flag != types.FlagLight && flag != types.FlagIrrigation {
			return types.MutationResult{}, fmt.Errorf("%w: unknown device flag %q", validation.ErrValidation, flag)
		}

		return svc.ToggleDeviceFlag(ctx, moduleID, chi.URLParam(r, "shelfID"), chi.URLParam(r, "rowID"), flag)
	})
}

func clearSelectionHandler(log zerolog.Logger, svc shelving.SceneService) http.HandlerFunc {
	return sceneHandler(log, "clear-selection", func(ctx context.Context, r *http.Request, moduleID uint) (types.MutationResult, error) {
		return svc.ClearSelection(ctx, moduleID)
	})
}
