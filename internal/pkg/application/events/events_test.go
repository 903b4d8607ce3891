package events

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labcontrol/labcontrol-api/pkg/types"
	"github.com/matryer/is"
)

func TestConfig(t *testing.T) {
	is := is.New(t)
	config := strings.NewReader(`
notifications:
  - id: modules
    name: Module lifecycle
    type: labcontrol.module.created
    subscribers:
    - endpoint: http://audit:8080
`)
	cfg, err := LoadConfiguration(config)

	is.NoErr(err)
	is.Equal(len(cfg.Notifications), 1)
	is.Equal(cfg.Notifications[0].ID, "modules")
	is.Equal(cfg.Notifications[0].Subscribers[0].Endpoint, "http://audit:8080")
}

func TestThatEventsWithoutSubscribersAreNotSent(t *testing.T) {
	is := is.New(t)

	sender := New(nil)
	err := sender.Send(context.Background(), "1", &types.ModuleDeleted{ModuleID: 1})
	is.NoErr(err)
}

func TestSendDeliversCloudEventToSubscriber(t *testing.T) {
	is := is.New(t)

	var ceType, body string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ceType = r.Header.Get("Ce-Type")
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer s.Close()

	sender := New(&Config{
		Notifications: []Notification{
			{ID: "modules", Type: "labcontrol.module.created", Subscribers: []SubscriberConfig{{Endpoint: s.URL}}},
		},
	})

	err := sender.Send(context.Background(), "7", &types.ModuleCreated{ModuleID: 7, Name: "Hydro", Users: []uint{7, 9}})
	is.NoErr(err)
	is.Equal(ceType, "labcontrol.module.created")
	is.True(strings.Contains(body, `"usuarios":[7,9]`))
}
