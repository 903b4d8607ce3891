package auth

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/jwtauth/v5"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/authentication"
	"github.com/open-policy-agent/opa/rego"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("labcontrol-api/authz")

//go:embed authz.rego
var DefaultPolicy string

const (
	MessageNotAuthenticated string = "not authenticated"
	MessageForbidden        string = "forbidden"
)

// NewAuthenticator returns a middleware that accepts requests carrying a valid bearer
// token and then asks the rego policy whether the caller may perform the request.
// A nil policies reader selects the embedded default policy.
func NewAuthenticator(ctx context.Context, tokenAuth *jwtauth.JWTAuth, policies io.Reader) (func(http.Handler) http.Handler, error) {
	module := DefaultPolicy

	if policies != nil {
		b, err := io.ReadAll(policies)
		if err != nil {
			return nil, fmt.Errorf("unable to read authz policies: %w", err)
		}
		module = string(b)
	}

	query, err := rego.New(
		rego.Query("x = data.labcontrol.authz.allow"),
		rego.Module("labcontrol.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var err error

			ctx, span := tracer.Start(r.Context(), "check-auth")
			defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

			logger := logging.GetFromContext(ctx)

			tokenString := jwtauth.TokenFromHeader(r)
			if tokenString == "" {
				tokenString = jwtauth.TokenFromQuery(r)
			}

			if tokenString == "" {
				err = errors.New("authorization header missing")
				logger.Info().Msg(err.Error())
				writeError(w, http.StatusUnauthorized, MessageNotAuthenticated)
				return
			}

			token, err := jwtauth.VerifyToken(tokenAuth, tokenString)
			if err != nil {
				logger.Info().Err(err).Msg("invalid token")
				writeError(w, http.StatusUnauthorized, MessageNotAuthenticated)
				return
			}

			input := map[string]any{
				"method": r.Method,
				"path":   strings.Split(strings.Trim(r.URL.Path, "/"), "/"),
				"claims": token.PrivateClaims(),
			}

			results, err := query.Eval(ctx, rego.EvalInput(input))
			if err != nil {
				logger.Error().Err(err).Msg("opa eval failed")
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			if len(results) == 0 {
				err = errors.New("opa query could not be satisfied")
				logger.Error().Err(err).Msg("auth failed")
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			allowed, ok := results[0].Bindings["x"].(bool)
			if !ok || !allowed {
				err = errors.New("authorization failed")
				logger.Warn().Str("path", r.URL.Path).Msg(err.Error())
				writeError(w, http.StatusForbidden, MessageForbidden)
				return
			}

			ctx = jwtauth.NewContext(ctx, token, nil)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

// UserIDFromContext returns the id claim of the authenticated caller.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return 0, false
	}

	id, ok := claims[authentication.ClaimUserID].(float64)
	if !ok {
		return 0, false
	}

	return uint(id), true
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	b, _ := json.Marshal(map[string]string{"error": message})
	w.Write(b)
}
