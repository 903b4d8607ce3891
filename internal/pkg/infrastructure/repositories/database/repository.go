package database

import (
	"context"
	"fmt"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type ConnectorConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	DbName   string
	Password string
	SslMode  string
}

func LoadConfigFromEnv(log zerolog.Logger) ConnectorConfig {
	return ConnectorConfig{
		Driver:   env.GetVariableOrDefault(log, "DB_DRIVER", "mysql"),
		Host:     env.GetVariableOrDefault(log, "DB_HOST", "localhost"),
		Port:     env.GetVariableOrDefault(log, "DB_PORT", "3306"),
		Username: env.GetVariableOrDefault(log, "DB_USER", ""),
		DbName:   env.GetVariableOrDefault(log, "DB_NAME", "labcontrol"),
		Password: env.GetVariableOrDefault(log, "DB_PASSWORD", ""),
		SslMode:  env.GetVariableOrDefault(log, "DB_SSLMODE", "disable"),
	}
}

type ConnectorFunc func() (*gorm.DB, zerolog.Logger, error)

func NewConnector(log zerolog.Logger, cfg ConnectorConfig) (ConnectorFunc, error) {
	switch cfg.Driver {
	case "mysql":
		return NewMySQLConnector(log, cfg), nil
	case "postgres":
		return NewPostgreSQLConnector(log, cfg), nil
	case "sqlite":
		return NewSQLiteConnector(log), nil
	}

	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func NewSQLiteConnector(log zerolog.Logger) ConnectorFunc {
	return func() (*gorm.DB, zerolog.Logger, error) {
		db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
			Logger:          logger.Default.LogMode(logger.Silent),
			CreateBatchSize: 1000,
			TranslateError:  true,
		})

		if err == nil {
			sqldb, _ := db.DB()
			sqldb.SetMaxOpenConns(1)
			db.Exec("PRAGMA foreign_keys = ON")
		}

		return db, log, err
	}
}

func NewMySQLConnector(log zerolog.Logger, cfg ConnectorConfig) ConnectorFunc {
	dsn := mysql.NewConfig()
	dsn.Net = "tcp"
	dsn.Addr = fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	dsn.User = cfg.Username
	dsn.Passwd = cfg.Password
	dsn.DBName = cfg.DbName
	dsn.ParseTime = true
	// UPDATE reports matched rows, not changed rows, so an unchanged update is not a miss
	dsn.ClientFoundRows = true
	dsn.Params = map[string]string{"charset": "utf8mb4"}

	return func() (*gorm.DB, zerolog.Logger, error) {
		sublogger := log.With().Str("host", cfg.Host).Str("database", cfg.DbName).Logger()
		sublogger.Info().Msg("connecting to database host")

		db, err := gorm.Open(gormmysql.Open(dsn.FormatDSN()), newGormConfig(sublogger))
		if err != nil {
			sublogger.Error().Err(err).Msg("failed to connect to database")
			return nil, sublogger, err
		}

		sqldb, err := db.DB()
		if err != nil {
			return nil, sublogger, err
		}
		sqldb.SetMaxOpenConns(10)
		sqldb.SetConnMaxLifetime(5 * time.Minute)

		return db, sublogger, nil
	}
}

func NewPostgreSQLConnector(log zerolog.Logger, cfg ConnectorConfig) ConnectorFunc {
	dbURI := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s password=%s", cfg.Host, cfg.Port, cfg.Username, cfg.DbName, cfg.SslMode, cfg.Password)

	return func() (*gorm.DB, zerolog.Logger, error) {
		sublogger := log.With().Str("host", cfg.Host).Str("database", cfg.DbName).Logger()
		sublogger.Info().Msg("connecting to database host")

		db, err := gorm.Open(postgres.Open(dbURI), newGormConfig(sublogger))
		if err != nil {
			sublogger.Error().Err(err).Msg("failed to connect to database")
			return nil, sublogger, err
		}

		return db, sublogger, nil
	}
}

func newGormConfig(log zerolog.Logger) *gorm.Config {
	return &gorm.Config{
		Logger: logger.New(
			&log,
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
		TranslateError: true,
	}
}

// Database owns the gorm connection shared by all repositories.
type Database struct {
	db  *gorm.DB
	log zerolog.Logger
}

func New(ctx context.Context, connect ConnectorFunc) (*Database, error) {
	impl, log, err := connect()
	if err != nil {
		return nil, err
	}

	err = impl.AutoMigrate(
		&Role{}, &User{},
		&LaboratoryStatus{}, &Laboratory{},
		&ModuleStatus{}, &Module{}, &UserModule{},
		&Shelf{}, &Row{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}

	d := &Database{db: impl, log: log}

	err = d.seedReferenceData(ctx)
	if err != nil {
		return nil, err
	}

	if d.dialect() == "mysql" {
		err = d.installProcedures(ctx)
		if err != nil {
			return nil, err
		}
	}

	return d, nil
}

func (d *Database) dialect() string {
	return d.db.Dialector.Name()
}

func (d *Database) Ping(ctx context.Context) error {
	sqldb, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqldb.PingContext(ctx)
}

func (d *Database) Close() error {
	sqldb, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}

func orderByDesc(column string) clause.OrderByColumn {
	return clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: true}
}

func orderByAsc(column string) clause.OrderByColumn {
	return clause.OrderByColumn{Column: clause.Column{Name: column}}
}
