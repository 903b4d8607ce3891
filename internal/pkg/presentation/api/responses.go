package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/authentication"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/validation"
	"github.com/labcontrol/labcontrol-api/internal/pkg/infrastructure/repositories/database"
	"github.com/labcontrol/labcontrol-api/pkg/types"
	"github.com/rs/zerolog"
)

var (
	errInvalidID   = errors.New("invalid id")
	errInvalidBody = errors.New("invalid request body")
)

// statusFor maps an application error to a status code and the message that may be
// shown to the caller. Errors without a mapping never leak their details.
func statusFor(err error) (int, string) {
	var ruleErr *database.BusinessRuleError

	switch {
	case errors.Is(err, validation.ErrValidation):
		return http.StatusBadRequest, validation.Message(err)
	case errors.Is(err, errInvalidID), errors.Is(err, errInvalidBody):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, authentication.ErrInvalidCredentials):
		return http.StatusUnauthorized, authentication.ErrInvalidCredentials.Error()
	case errors.Is(err, authentication.ErrNotAuthorized):
		return http.StatusForbidden, authentication.ErrNotAuthorized.Error()
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, database.ErrAlreadyExists):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &ruleErr):
		return http.StatusBadRequest, ruleErr.Message
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status, message := statusFor(err)

	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg("request failed")
	} else {
		logger.Info().Err(err).Int("status", status).Msg("request rejected")
	}

	writeJSON(w, logger, status, types.ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, status int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		logger.Error().Err(err).Msg("unable to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidBody
	}
	return nil
}

func idParam(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 32)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}
