package logging

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/matryer/is"
	"go.opentelemetry.io/otel/trace"
)

func TestLoggerIsStoredInContext(t *testing.T) {
	is := is.New(t)
	buf := &bytes.Buffer{}

	ctx, _ := newLogger(context.Background(), buf, "debug", "LabControl-API", "v1")

	logger := logging.GetFromContext(ctx)
	logger.Debug().Msg("hello")

	is.True(strings.Contains(buf.String(), `"service":"labcontrol-api"`))
	is.True(strings.Contains(buf.String(), `"version":"v1"`))
	is.True(strings.Contains(buf.String(), `"message":"hello"`))
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	is := is.New(t)
	buf := &bytes.Buffer{}

	_, logger := newLogger(context.Background(), buf, "chatty", "svc", "v1")
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")

	is.True(!strings.Contains(buf.String(), "hidden"))
	is.True(strings.Contains(buf.String(), "shown"))
}

func TestTraceIDIsAddedWhenSpanIsValid(t *testing.T) {
	is := is.New(t)
	buf := &bytes.Buffer{}
	_, logger := newLogger(context.Background(), buf, "info", "svc", "v1")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	var seen string
	handler := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.GetFromContext(r.Context())
		reqLogger.Info().Msg("handled")
		seen = buf.String()
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	is.True(strings.Contains(seen, `"traceID":"4bf92f3577b34da6a3ce929d0e0e4736"`))
}
