package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/sibyl"
	"github.com/poiesic/sibyl/api"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 15 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP API",
		Action: serveAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address; overrides server.addr",
			},
		},
	}
}

func serveAction(c *cli.Context) error {
	cfg := appConfig(c)
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	router := api.NewRouter(svc, api.RouterConfig{
		RequestTimeout: cfg.Chat.Budget + cfg.Generation.CallTimeout,
		ProbeTimeout:   sibyl.DefaultProbeTimeout,
	})
	server := api.NewServer(router, cfg.Server)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-c.Context.Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("server stopped")
	return nil
}
