package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"io/fs"
	"net/http"
	"os"
	"runtime/debug"

	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/authentication"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/events"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/webevents"
	"github.com/labcontrol/labcontrol-api/internal/pkg/infrastructure/logging"
	"github.com/labcontrol/labcontrol-api/internal/pkg/infrastructure/repositories/database"
	"github.com/labcontrol/labcontrol-api/internal/pkg/infrastructure/router"
	"github.com/labcontrol/labcontrol-api/internal/pkg/infrastructure/tracing"
	"github.com/labcontrol/labcontrol-api/internal/pkg/presentation/api"
	"github.com/rs/zerolog"
)

const serviceName string = "labcontrol-api"

type settings struct {
	configFile   string
	policiesFile string
	usersFile    string
	jwtSecret    string
	withMessages bool
}

func main() {
	godotenv.Load()

	serviceVersion := version()

	ctx, logger := logging.NewLogger(context.Background(), serviceName, serviceVersion)
	logger.Info().Msg("starting up ...")

	cleanup, err := tracing.Init(ctx, logger, serviceName, serviceVersion)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}
	defer cleanup()

	s := parseSettings(logger)

	if s.jwtSecret == "" {
		logger.Fatal().Msg("JWT_SECRET must be set")
	}

	connect, err := database.NewConnector(logger, database.LoadConfigFromEnv(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("unsupported database configuration")
	}

	db, err := database.New(ctx, connect)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not connect to database")
	}

	r, app, err := createAppAndSetupRouter(ctx, logger, db, s)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up service")
	}
	defer app.Stop()

	servicePort := env.GetVariableOrDefault(logger, "SERVICE_PORT", "8080")
	logger.Info().Str("port", servicePort).Msg("starting to listen for connections")

	err = http.ListenAndServe(":"+servicePort, r)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to listen for connections")
	}
}

func parseSettings(logger zerolog.Logger) settings {
	s := settings{}

	flag.StringVar(&s.configFile, "config", env.GetVariableOrDefault(logger, "CONFIG_FILE", "/opt/labcontrol/config/config.yaml"), "notification subscribers")
	flag.StringVar(&s.policiesFile, "policies", env.GetVariableOrDefault(logger, "POLICIES_FILE", ""), "rego policy that replaces the built in authz policy")
	flag.StringVar(&s.usersFile, "users", env.GetVariableOrDefault(logger, "USERS_FILE", ""), "csv file with users to seed")
	flag.BoolVar(&s.withMessages, "messaging", env.GetVariableOrDefault(logger, "RABBITMQ_HOST", "") != "", "connect to the message bus")
	flag.Parse()

	s.jwtSecret = env.GetVariableOrDefault(logger, "JWT_SECRET", "")

	return s
}

func createAppAndSetupRouter(ctx context.Context, logger zerolog.Logger, db *database.Database, s settings) (*chi.Mux, application.App, error) {
	if err := seedUsers(ctx, logger, db, s.usersFile); err != nil {
		return nil, nil, err
	}

	cfg, err := loadConfiguration(logger, s.configFile)
	if err != nil {
		return nil, nil, err
	}

	var messenger messaging.MsgContext
	if s.withMessages {
		messenger, err = messaging.Initialize(messaging.LoadConfiguration(serviceName, logger))
		if err != nil {
			return nil, nil, err
		}
	}

	tokenAuth := authentication.NewTokenAuth(s.jwtSecret)

	app := application.New(db, tokenAuth, events.New(cfg), messenger, webevents.New())
	app.Start(ctx)

	var policies io.Reader
	if s.policiesFile != "" {
		f, err := os.Open(s.policiesFile)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		policies = f
	}

	r, err := api.RegisterHandlers(ctx, router.New(serviceName, logger), policies, tokenAuth, app)
	if err != nil {
		return nil, nil, err
	}

	return r, app, nil
}

func seedUsers(ctx context.Context, logger zerolog.Logger, db *database.Database, path string) error {
	if path == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	logger.Info().Str("file", path).Msg("seeding users")

	return db.SeedUsers(ctx, f)
}

func loadConfiguration(logger zerolog.Logger, path string) (*events.Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info().Str("file", path).Msg("no configuration file, notifications are disabled")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return events.LoadConfiguration(f)
}

func version() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	buildSettings := buildInfo.Settings
	infoMap := map[string]string{}
	for _, s := range buildSettings {
		infoMap[s.Key] = s.Value
	}

	sha := infoMap["vcs.revision"]
	if infoMap["vcs.modified"] == "true" {
		sha += "+"
	}

	return sha
}
