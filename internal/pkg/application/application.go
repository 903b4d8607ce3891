package application

import (
	"context"

	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/jwtauth/v5"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/authentication"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/events"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/laboratories"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/modules"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/shelving"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/users"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/webevents"
	"github.com/labcontrol/labcontrol-api/internal/pkg/infrastructure/repositories/database"
	"github.com/labcontrol/labcontrol-api/pkg/types"
)

//go:generate moq -rm -out application_mock.go . App

// App composes the services that make up the labcontrol backend.
type App interface {
	Start(ctx context.Context)
	Stop()
	Ready(ctx context.Context) error

	Auth() authentication.Authenticator
	Users() users.UserService
	Laboratories() laboratories.LaboratoryService
	Modules() modules.ModuleService
	Scenes() shelving.SceneService
	WebEvents() webevents.WebEvents
}

type app struct {
	db        *database.Database
	messenger messaging.MsgContext
	webEvents webevents.WebEvents

	auth         authentication.Authenticator
	users        users.UserService
	laboratories laboratories.LaboratoryService
	modules      modules.ModuleService
	scenes       shelving.SceneService
}

func New(db *database.Database, tokenAuth *jwtauth.JWTAuth, sender events.EventSender, messenger messaging.MsgContext, we webevents.WebEvents) App {
	userRepo := database.NewUserRepository(db)
	auth := authentication.New(userRepo, tokenAuth)
	scenes := shelving.New(database.NewLayoutRepository(db), messenger, we)

	return &app{
		db:           db,
		messenger:    messenger,
		webEvents:    we,
		auth:         auth,
		users:        users.New(userRepo),
		laboratories: laboratories.New(database.NewLaboratoryRepository(db), auth),
		modules: &moduleService{
			ModuleService: modules.New(database.NewModuleRepository(db), auth, sender),
			scenes:        scenes,
		},
		scenes: scenes,
	}
}

// Start subscribes to the device state reports from the field controllers.
func (a *app) Start(ctx context.Context) {
	if a.messenger == nil {
		return
	}

	routingKey := (&types.RowDeviceState{}).TopicName()
	a.messenger.RegisterTopicMessageHandler(routingKey, shelving.RowDeviceStateHandler(a.scenes))

	logger := logging.GetFromContext(ctx)
	logger.Info().Str("topic", routingKey).Msg("listening for device state reports")
}

func (a *app) Stop() {
	if a.webEvents != nil {
		a.webEvents.Shutdown()
	}

	if a.messenger != nil {
		a.messenger.Close()
	}

	a.db.Close()
}

func (a *app) Ready(ctx context.Context) error {
	return a.db.Ping(ctx)
}

func (a *app) Auth() authentication.Authenticator           { return a.auth }
func (a *app) Users() users.UserService                     { return a.users }
func (a *app) Laboratories() laboratories.LaboratoryService { return a.laboratories }
func (a *app) Modules() modules.ModuleService               { return a.modules }
func (a *app) Scenes() shelving.SceneService                { return a.scenes }
func (a *app) WebEvents() webevents.WebEvents               { return a.webEvents }

// moduleService drops the cached scene of a module once the module is gone.
type moduleService struct {
	modules.ModuleService
	scenes shelving.SceneService
}

func (m *moduleService) Delete(ctx context.Context, id uint, req types.DeleteRequest) (string, error) {
	message, err := m.ModuleService.Delete(ctx, id, req)
	if err != nil {
		return "", err
	}

	m.scenes.Forget(id)

	return message, nil
}
