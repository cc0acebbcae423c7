// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/poiesic/sibyl"
	"github.com/poiesic/sibyl/config"
	"github.com/urfave/cli/v2"
)

const (
	metaConfig = "config"
	metaCloser = "log-closer"
)

// newService builds the service for commands. Tests replace it to inject mocks.
var newService = func(ctx context.Context, cfg *config.Config) (*sibyl.Service, error) {
	return sibyl.New(ctx, cfg)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "sibyl",
		Usage:     "Question answering over your documents with graph and vector retrieval",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "sibyl.yaml",
				EnvVars: []string{"SIBYL_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides the config file",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Set logging format (text, json); overrides the config file",
			},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			serveCommand(),
			ingestCommand(),
			chatCommand(),
			watchCommand(),
			reembedCommand(),
			providersCommand(),
		},
	}
}

// setup loads the configuration and installs the default logger.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if format := c.String("log-format"); format != "" {
		cfg.Log.Format = format
	}

	logger, closer, err := config.NewLogger(cfg.Log, c.App.ErrWriter)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[metaConfig] = cfg
	c.App.Metadata[metaCloser] = closer
	return nil
}

func teardown(c *cli.Context) error {
	if closer, ok := c.App.Metadata[metaCloser].(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func appConfig(c *cli.Context) *config.Config {
	return c.App.Metadata[metaConfig].(*config.Config)
}

// openService builds the service from the loaded configuration. The caller
// closes it.
func openService(c *cli.Context) (*sibyl.Service, error) {
	svc, err := newService(c.Context, appConfig(c))
	if err != nil {
		return nil, fmt.Errorf("failed to start service: %w", err)
	}
	return svc, nil
}
