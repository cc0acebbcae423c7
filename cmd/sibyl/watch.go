package main

import (
	"fmt"
	"os"

	"github.com/poiesic/sibyl/ingestion"
	"github.com/urfave/cli/v2"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Ingest files as they are added to or changed in a directory",
		ArgsUsage: "DIR",
		Action:    watchAction,
		Flags: append(optionFlags(),
			&cli.DurationFlag{
				Name:  "settle",
				Usage: "How long a file must be unchanged before it is ingested",
				Value: ingestion.DefaultSettle,
			},
		),
	}
}

func watchAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one directory is required")
	}
	dir := c.Args().First()
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	opts, err := ingestOptions(c)
	if err != nil {
		return err
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	watcher, err := ingestion.NewWatcher(svc.Pipeline(), opts)
	if err != nil {
		return err
	}
	defer watcher.Close()
	watcher.SetSettle(c.Duration("settle"))
	watcher.OnBatch = func(b *ingestion.Batch) {
		printBatch(c.App.Writer, b)
	}

	fmt.Fprintf(c.App.Writer, "Watching %s (Ctrl-C to stop)\n", dir)
	return watcher.Watch(c.Context, dir)
}
