package tracing

import (
	"context"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	is := is.New(t)
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	cleanup, err := Init(context.Background(), zerolog.Nop(), "labcontrol-api", "test")
	is.NoErr(err)
	is.True(cleanup != nil)

	cleanup()
}

func TestResourceDescribesService(t *testing.T) {
	is := is.New(t)

	r := newResource("labcontrol-api", "v1")

	name, ok := r.Set().Value("service.name")
	is.True(ok)
	is.Equal(name.AsString(), "labcontrol-api")
}
