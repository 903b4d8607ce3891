package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"golang.org/x/sys/unix"
	yaml "gopkg.in/yaml.v2"
)

const EventSource string = "github.com/labcontrol/labcontrol-api"

// Event is anything that can be delivered as the data of a cloud event.
type Event interface {
	EventType() string
}

//go:generate moq -rm -out events_mock.go . EventSender

type EventSender interface {
	Send(ctx context.Context, id string, event Event) error
}

type eventSender struct {
	subscribers map[string][]SubscriberConfig
	newClient   func() (cloudevents.Client, error)
}

func New(cfg *Config) EventSender {
	e := &eventSender{
		subscribers: make(map[string][]SubscriberConfig),
		newClient: func() (cloudevents.Client, error) {
			return cloudevents.NewClientHTTP()
		},
	}

	if cfg != nil {
		for _, s := range cfg.Notifications {
			e.subscribers[s.Type] = append(e.subscribers[s.Type], s.Subscribers...)
		}
	}

	return e
}

func (e *eventSender) Send(ctx context.Context, id string, message Event) error {
	subscribers, ok := e.subscribers[message.EventType()]
	if !ok || len(subscribers) == 0 {
		return nil
	}

	c, err := e.newClient()
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	event := cloudevents.NewEvent()
	event.SetID(fmt.Sprintf("%s:%d", id, now.UnixNano()))
	event.SetTime(now)
	event.SetSource(EventSource)
	event.SetType(message.EventType())

	err = event.SetData(cloudevents.ApplicationJSON, message)
	if err != nil {
		return err
	}

	logger := logging.GetFromContext(ctx)

	for _, s := range subscribers {
		ctxWithTarget := cloudevents.ContextWithTarget(ctx, s.Endpoint)

		result := c.Send(ctxWithTarget, event)
		if cloudevents.IsUndelivered(result) || errors.Is(result, unix.ECONNREFUSED) {
			logger.Error().Err(result).Msgf("failed to send event %s to %s", event.Type(), s.Endpoint)
			err = fmt.Errorf("%w", result)
		}
	}

	return err
}

type SubscriberConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type Notification struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Type        string             `yaml:"type"`
	Subscribers []SubscriberConfig `yaml:"subscribers"`
}

type Config struct {
	Notifications []Notification `yaml:"notifications"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := Config{}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
