package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application"
	"github.com/labcontrol/labcontrol-api/internal/pkg/presentation/api/auth"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("labcontrol-api/api")

// RegisterHandlers mounts every public endpoint on the router. Everything below /api
// except login requires a bearer token, and the rego policy decides which callers
// may reach each route. A nil policies reader selects the embedded policy.
func RegisterHandlers(ctx context.Context, router *chi.Mux, policies io.Reader, tokenAuth *jwtauth.JWTAuth, app application.App) (*chi.Mux, error) {
	log := logging.GetFromContext(ctx)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := app.Ready(r.Context()); err != nil {
			log.Error().Err(err).Msg("health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	router.Handle("/metrics", promhttp.Handler())

	authenticator, err := auth.NewAuthenticator(ctx, tokenAuth, policies)
	if err != nil {
		return nil, fmt.Errorf("failed to create api authenticator: %w", err)
	}

	router.Route("/api", func(r chi.Router) {
		r.Post("/login", loginHandler(log, app.Auth()))

		r.Group(func(r chi.Router) {
			r.Use(authenticator)

			r.Get("/getModulos", listModulesHandler(log, app.Modules()))
			r.Get("/getModuloById/{id}", getModuleHandler(log, app.Modules()))
			r.Post("/createModulo", createModuleHandler(log, app.Modules()))
			r.Put("/updateModulo/{id}", updateModuleHandler(log, app.Modules()))
			r.Delete("/deleteModulo/{id}", deleteModuleHandler(log, app.Modules()))

			r.Get("/getLaboratorios", listLaboratoriesHandler(log, app.Laboratories()))
			r.Get("/getLaboratorioById/{id}", getLaboratoryHandler(log, app.Laboratories()))
			r.Get("/getLaboratoriosResumen", laboratorySummaryHandler(log, app.Laboratories()))
			r.Post("/createLaboratorio", createLaboratoryHandler(log, app.Laboratories()))
			r.Put("/updateLaboratorio/{id}", updateLaboratoryHandler(log, app.Laboratories()))
			r.Delete("/deleteLaboratorio/{id}", deleteLaboratoryHandler(log, app.Laboratories()))

			r.Post("/userCreate", createUserHandler(log, app.Users()))
			r.Get("/getUsers", listUsersHandler(log, app.Users()))

			r.Route("/modulos/{id}/escena", func(r chi.Router) {
				scenes := app.Scenes()

				r.Get("/", getSceneHandler(log, scenes))
				r.Put("/modo", setModeHandler(log, scenes))
				r.Delete("/seleccion", clearSelectionHandler(log, scenes))

				r.Post("/estantes", createShelfHandler(log, scenes))
				r.Delete("/estantes/{shelfID}", deleteShelfHandler(log, scenes))
				r.Post("/estantes/{shelfID}/seleccion", selectShelfHandler(log, scenes))

				r.Post("/estantes/{shelfID}/filas", createRowHandler(log, scenes))
				r.Delete("/estantes/{shelfID}/filas/{rowID}", deleteRowHandler(log, scenes))
				r.Post("/estantes/{shelfID}/filas/{rowID}/seleccion", selectRowHandler(log, scenes))
				r.Post("/estantes/{shelfID}/filas/{rowID}/{flag}", toggleFlagHandler(log, scenes))
			})

			if we := app.WebEvents(); we != nil {
				r.Handle("/events", we.Server())
			}
		})
	})

	return router, nil
}

// withCaller tags the request logger, and the one stored in ctx, with the id of
// the authenticated caller.
func withCaller(ctx context.Context, logger zerolog.Logger) (context.Context, zerolog.Logger) {
	id, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return ctx, logger
	}

	logger = logger.With().Uint("callerID", id).Logger()

	return logging.NewContextWithLogger(ctx, logger), logger
}
