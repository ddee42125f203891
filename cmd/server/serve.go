package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"taskboard/internal/api"
	"taskboard/pkg/realtime"
	"taskboard/pkg/task"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP and WebSocket server",
		Action: func(cliCtx *cli.Context) error {
			conf, err := loadConfig(cliCtx)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cliCtx.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, release, err := openStore(ctx, conf.Storage)
			if err != nil {
				return err
			}
			defer release()

			registry := realtime.NewRegistry()
			coord := realtime.NewCoordinator(task.NewService(store), registry)
			server := &http.Server{
				Addr: conf.HTTP.Address,
				Handler: api.New(coord, api.Options{
					AllowedOrigins: conf.HTTP.AllowedOrigins,
					Client:         conf.Realtime.Client(),
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.WithField("address", conf.HTTP.Address).Info("taskboard listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return errors.Wrap(err, "listen")
				}
			case <-ctx.Done():
				log.Info("shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.HTTP.ShutdownTimeout)
			defer cancel()
			// hijacked websocket connections are not tracked by the http server
			registry.Close()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return errors.Wrap(err, "shutdown")
			}
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the task storage schema and exit",
		Action: func(cliCtx *cli.Context) error {
			conf, err := loadConfig(cliCtx)
			if err != nil {
				return err
			}
			_, release, err := openStore(cliCtx.Context, conf.Storage)
			if err != nil {
				return err
			}
			release()
			log.Info("schema up to date")
			return nil
		},
	}
}
