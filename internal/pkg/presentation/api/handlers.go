package api

import (
	"net/http"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/authentication"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/laboratories"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/modules"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/users"
	"github.com/labcontrol/labcontrol-api/internal/pkg/infrastructure/logging"
	"github.com/labcontrol/labcontrol-api/pkg/types"
	"github.com/rs/zerolog"
)

const NoModulesMessage string = "no modules registered"

func loginHandler(log zerolog.Logger, auth authentication.Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "login")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var req types.LoginRequest
		if err = decode(r, &req); err != nil {
			writeError(w, requestLogger, err)
			return
		}

		resp, err := auth.Login(ctx, req)
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		writeJSON(w, requestLogger, http.StatusOK, resp)
	}
}

func listModulesHandler(log zerolog.Logger, svc modules.ModuleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "list-modules")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		list, err := svc.List(ctx)
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		message := "modules retrieved"
		if len(list) == 0 {
			message = NoModulesMessage
			list = []types.Module{}
		}

		writeJSON(w, requestLogger, http.StatusOK, types.ModuleList{Message: message, Data: list})
	}
}

func getModuleHandler(log zerolog.Logger, svc modules.ModuleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-module")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		m, err := svc.Get(ctx, id)
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		writeJSON(w, requestLogger, http.StatusOK, m)
	}
}

func createModuleHandler(log zerolog.Logger, svc modules.ModuleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-module")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var req types.CreateModuleRequest
		if err = decode(r, &req); err != nil {
			writeError(w, requestLogger, err)
			return
		}

		result, err := svc.Create(ctx, req)
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		writeJSON(w, requestLogger, http.StatusCreated, types.ModuleResponse{Message: "module created", Module: result})
	}
}

func updateModuleHandler(log zerolog.Logger, svc modules.ModuleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "update-module")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		var req types.UpdateModuleRequest
		if err = decode(r, &req); err != nil {
			writeError(w, requestLogger, err)
			return
		}

		result, err := svc.Update(ctx, id, req)
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		writeJSON(w, requestLogger, http.StatusOK, types.ModuleResponse{Message: "module updated", Module: result})
	}
}

func deleteModuleHandler(log zerolog.Logger, svc modules.ModuleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "delete-module")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)
		ctx, requestLogger = withCaller(ctx, requestLogger)

		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		var req types.DeleteRequest
		if err = decode(r, &req); err != nil {
			writeError(w, requestLogger, err)
			return
		}

		message, err := svc.Delete(ctx, id, req)
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		writeJSON(w, requestLogger, http.StatusOK, types.MessageResponse{Message: message})
	}
}

func listLaboratoriesHandler(log zerolog.Logger, svc laboratories.LaboratoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "list-laboratories")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		labs, err := svc.List(ctx, r.URL.Query())
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		if labs == nil {
			labs = []types.Laboratory{}
		}

		writeJSON(w, requestLogger, http.StatusOK, labs)
	}
}

func getLaboratoryHandler(log zerolog.Logger, svc laboratories.LaboratoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-laboratory")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		lab, err := svc.Get(ctx, id)
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		writeJSON(w, requestLogger, http.StatusOK, lab)
	}
}

func laboratorySummaryHandler(log zerolog.Logger, svc laboratories.LaboratoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "laboratory-summary")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		summary, err := svc.Summary(ctx)
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		writeJSON(w, requestLogger, http.StatusOK, summary)
	}
}

func createLaboratoryHandler(log zerolog.Logger, svc laboratories.LaboratoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-laboratory")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var req types.LaboratoryRequest
		if err = decode(r, &req); err != nil {
			writeError(w, requestLogger, err)
			return
		}

		lab, err := svc.Create(ctx, req)
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		writeJSON(w, requestLogger, http.StatusCreated, types.LaboratoryResponse{Message: "laboratory created", Laboratory: lab})
	}
}

func updateLaboratoryHandler(log zerolog.Logger, svc laboratories.LaboratoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "update-laboratory")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		var req types.LaboratoryRequest
		if err = decode(r, &req); err != nil {
			writeError(w, requestLogger, err)
			return
		}

		lab, err := svc.Update(ctx, id, req)
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		writeJSON(w, requestLogger, http.StatusOK, types.LaboratoryResponse{Message: "laboratory updated", Laboratory: lab})
	}
}

func deleteLaboratoryHandler(log zerolog.Logger, svc laboratories.LaboratoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "delete-laboratory")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)
		ctx, requestLogger = withCaller(ctx, requestLogger)

		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		var req types.DeleteRequest
		if err = decode(r, &req); err != nil {
			writeError(w, requestLogger, err)
			return
		}

		if err = svc.Delete(ctx, id, req); err != nil {
			writeError(w, requestLogger, err)
			return
		}

		writeJSON(w, requestLogger, http.StatusOK, types.MessageResponse{Message: "laboratory deleted"})
	}
}

func createUserHandler(log zerolog.Logger, svc users.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-user")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var req types.CreateUserRequest
		if err = decode(r, &req); err != nil {
			writeError(w, requestLogger, err)
			return
		}

		user, err := svc.Create(ctx, req)
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		writeJSON(w, requestLogger, http.StatusCreated, types.UserResponse{Message: "user created", User: user})
	}
}

func listUsersHandler(log zerolog.Logger, svc users.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "list-users")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		list, err := svc.List(ctx)
		if err != nil {
			writeError(w, requestLogger, err)
			return
		}

		if list == nil {
			list = []types.User{}
		}

		writeJSON(w, requestLogger, http.StatusOK, list)
	}
}
