package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

type Config struct {
	Logger   Logger   `envPrefix:"LOGGER_"`
	HTTP     HTTP     `envPrefix:"HTTP_"`
	Storage  Storage  `envPrefix:"STORAGE_"`
	Realtime Realtime `envPrefix:"REALTIME_"`
}

func Parse() (*Config, error) {
	conf, err := env.ParseAsWithOptions[Config](env.Options{
		Prefix: "TASKBOARD_",
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := conf.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	return &conf, nil
}

func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverRedis:
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Logger.Format {
	case "text", "json":
	default:
		return errors.Errorf("unknown log format %q", c.Logger.Format)
	}
	if c.Realtime.SendBuffer <= 0 {
		return errors.New("realtime send buffer must be positive")
	}
	if c.Realtime.PingInterval > 0 && c.Realtime.PongWait <= c.Realtime.PingInterval {
		return errors.New("realtime pong wait must exceed the ping interval")
	}
	return nil
}
