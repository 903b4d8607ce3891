package logging

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// NewLogger creates the service logger at the level named by LOG_LEVEL and stores it
// in the returned context where logging.GetFromContext finds it.
func NewLogger(ctx context.Context, serviceName, serviceVersion string) (context.Context, zerolog.Logger) {
	return newLogger(ctx, os.Stdout, os.Getenv("LOG_LEVEL"), serviceName, serviceVersion)
}

func newLogger(ctx context.Context, w io.Writer, level, serviceName, serviceVersion string) (context.Context, zerolog.Logger) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("service", strings.ToLower(serviceName)).
		Str("version", serviceVersion).
		Logger()

	return logging.NewContextWithLogger(ctx, logger), logger
}

// AddTraceIDToLoggerAndStoreInContext decorates the logger with the trace id of the
// span, if there is one, and returns a context carrying the decorated logger.
func AddTraceIDToLoggerAndStoreInContext(span trace.Span, logger zerolog.Logger, ctx context.Context) (string, context.Context, zerolog.Logger) {
	traceID := span.SpanContext().TraceID()
	if !traceID.IsValid() {
		return "", logging.NewContextWithLogger(ctx, logger), logger
	}

	id := traceID.String()
	logger = logger.With().Str("traceID", id).Logger()

	return id, logging.NewContextWithLogger(ctx, logger), logger
}

// Middleware makes the service logger, decorated with the trace id of the request,
// available to handlers further down the chain.
func Middleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			span := trace.SpanFromContext(r.Context())
			_, ctx, _ := AddTraceIDToLoggerAndStoreInContext(span, logger, r.Context())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
