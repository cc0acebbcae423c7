package main

import (
	"fmt"
	"time"

	"github.com/poiesic/sibyl/reembed"
	"github.com/urfave/cli/v2"
)

func reembedCommand() *cli.Command {
	defaults := reembed.DefaultConfig()
	return &cli.Command{
		Name:   "reembed",
		Usage:  "Recompute every stored chunk embedding with the configured embedding model",
		Action: reembedAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL; overrides ai.embedding_host",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name; overrides ai.embedding_model",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Number of chunks to process in each batch",
				Value: defaults.BatchSize,
			},
			&cli.IntFlag{
				Name:  "report-interval",
				Usage: "Report progress every N chunks",
				Value: defaults.ReportInterval,
			},
			&cli.IntFlag{
				Name:  "max-retries",
				Usage: "Maximum retry attempts for failed embedding calls",
				Value: defaults.MaxRetries,
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Base delay for exponential backoff",
				Value: defaults.RetryDelay,
			},
			&cli.BoolFlag{
				Name:  "restart",
				Usage: "Ignore the checkpoint of an interrupted run and start over",
			},
		},
	}
}

func reembedAction(c *cli.Context) error {
	cfg := appConfig(c)
	if host := c.String("embedding-host"); host != "" {
		cfg.AI.EmbeddingHost = host
	}
	if model := c.String("embedding-model"); model != "" {
		cfg.AI.EmbeddingModel = model
	}

	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	out := c.App.ErrWriter
	fmt.Fprintf(out, "Database: %s\n", dataLocation(cfg.Storage.DataDir, cfg.Storage.InMemory))
	fmt.Fprintf(out, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(out, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(out)

	checkpoints := svc.Stores().Checkpoints
	if c.Bool("restart") {
		if err := checkpoints.DeleteCheckpoint(c.Context, reembed.CheckpointName); err != nil {
			return err
		}
	}

	reembedder, err := reembed.NewReembedder(svc.Stores().Vectors, svc.Embedder(), reembedConfig, out,
		reembed.WithCheckpoints(checkpoints))
	if err != nil {
		return err
	}
	summary, err := reembedder.Run(c.Context)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "reembedded %d of %d chunks (%d skipped, %d resumed) in %s\n",
		summary.Reembedded, summary.Total, summary.Skipped, summary.Resumed, summary.Elapsed.Round(time.Millisecond))
	return nil
}

func dataLocation(dir string, inMemory bool) string {
	if inMemory {
		return "(in memory)"
	}
	return dir
}
