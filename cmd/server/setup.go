package main

import (
	"context"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"taskboard/internal/config"
	"taskboard/internal/db"
	"taskboard/pkg/task"
)

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	conf, err := config.Parse()
	if err != nil {
		return nil, errors.Wrap(err, "could not parse configuration")
	}
	if lvl := ctx.String("log-level"); lvl != "" {
		conf.Logger.Level = lvl
	}
	if err := setupLogger(conf.Logger); err != nil {
		return nil, err
	}
	return conf, nil
}

func setupLogger(conf config.Logger) error {
	level, err := log.ParseLevel(conf.Level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", conf.Level)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	if conf.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// openStore connects the configured backend and ensures its schema. The
// returned func releases the connection.
func openStore(ctx context.Context, conf config.Storage) (task.Store, func(), error) {
	var (
		store   task.Store
		release = func() {}
	)
	switch conf.Driver {
	case config.DriverMemory:
		store = task.NewMemStore()
	case config.DriverSQLite:
		sqlDB, err := task.OpenSQLite(conf.DSN)
		if err != nil {
			return nil, nil, errors.WithStack(err)
		}
		store = task.NewSQLiteStore(sqlDB)
		release = func() { _ = sqlDB.Close() }
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, conf.DSN)
		if err != nil {
			return nil, nil, errors.WithStack(err)
		}
		store = task.NewPgStore(pool)
		release = pool.Close
	case config.DriverRedis:
		rc, err := db.ConnectRedis(ctx, conf.DSN)
		if err != nil {
			return nil, nil, errors.WithStack(err)
		}
		store = task.NewRedisStore(rc)
		release = func() { _ = rc.Close() }
	default:
		return nil, nil, errors.Errorf("unknown storage driver %q", conf.Driver)
	}

	if err := store.EnsureTable(ctx); err != nil {
		release()
		return nil, nil, errors.Wrap(err, "ensure tasks table")
	}
	log.WithField("driver", conf.Driver).Info("storage ready")
	return store, release, nil
}
