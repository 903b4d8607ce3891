package webevents

import (
	"encoding/json"
	"fmt"
	"net/http"

	gosse "github.com/alexandrevicenzi/go-sse"
)

const AllModules string = "all"

//go:generate moq -rm -out webevents_mock.go . WebEvents

// WebEvents pushes server-sent events to browsers. A client listens to every
// module by default, or to a single module with the query parameter ?modulo=<id>.
type WebEvents interface {
	Server() *gosse.Server
	Shutdown()
	Publish(moduleID uint, event string, data any) error
}

type webEvents struct {
	s *gosse.Server
}

func New() WebEvents {
	return &webEvents{
		s: gosse.NewServer(&gosse.Options{
			ChannelNameFunc: channelFromRequest,
			Headers: map[string]string{
				"Cache-Control": "no-cache",
			},
		}),
	}
}

func channelFromRequest(r *http.Request) string {
	if id := r.URL.Query().Get("modulo"); id != "" {
		return moduleChannel(id)
	}
	return AllModules
}

func moduleChannel(id any) string {
	return fmt.Sprintf("modulo-%v", id)
}

func (we *webEvents) Server() *gosse.Server {
	return we.s
}

func (we *webEvents) Shutdown() {
	we.s.Shutdown()
}

func (we *webEvents) Publish(moduleID uint, event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}

	we.s.SendMessage(AllModules, gosse.NewMessage("", string(b), event))
	we.s.SendMessage(moduleChannel(moduleID), gosse.NewMessage("", string(b), event))

	return nil
}
