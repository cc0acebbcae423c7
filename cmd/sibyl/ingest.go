package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/poiesic/sibyl/ingestion"
	"github.com/urfave/cli/v2"
)

func optionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "Target chunk size in characters",
			Value: ingestion.DefaultChunkSize,
		},
		&cli.IntFlag{
			Name:  "chunk-overlap",
			Usage: "Characters shared by adjacent chunks",
			Value: ingestion.DefaultChunkOverlap,
		},
		&cli.BoolFlag{
			Name:  "no-entities",
			Usage: "Skip entity and relationship extraction",
		},
		&cli.BoolFlag{
			Name:  "no-embeddings",
			Usage: "Skip chunk embeddings",
		},
		&cli.BoolFlag{
			Name:  "overwrite",
			Usage: "Replace documents that were already ingested",
		},
		&cli.StringFlag{
			Name:  "language",
			Usage: "Document language",
			Value: ingestion.DefaultLanguage,
		},
	}
}

func ingestOptions(c *cli.Context) (ingestion.Options, error) {
	opts := ingestion.Options{
		ChunkSize:         c.Int("chunk-size"),
		ChunkOverlap:      c.Int("chunk-overlap"),
		ExtractEntities:   !c.Bool("no-entities"),
		CreateEmbeddings:  !c.Bool("no-embeddings"),
		OverwriteExisting: c.Bool("overwrite"),
		Language:          c.String("language"),
	}
	return opts, opts.Validate()
}

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Ingest files or directories into the knowledge base",
		ArgsUsage: "PATH...",
		Action:    ingestAction,
		Flags:     optionFlags(),
	}
}

func ingestAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one path is required")
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

	pipeline := svc.Pipeline()
	paths, err := collectPaths(c.Args().Slice(), pipeline.Parsers())
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no ingestible files found (accepted: %v)", pipeline.Parsers().Extensions())
	}

	out := c.App.Writer
	var failed int
	for batch := range slices.Chunk(paths, pipeline.MaxFiles()) {
		files := make([]ingestion.File, 0, len(batch))
		for _, path := range batch {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			files = append(files, ingestion.File{Name: filepath.Base(path), Data: data})
		}

		result, err := svc.Ingest(c.Context, files, opts)
		if err != nil {
			return err
		}
		printBatch(out, result)
		failed += result.FailedFiles
	}

	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

// collectPaths expands directories to the files the parsers accept. Explicit
// file arguments are kept as given so unsupported types are reported.
func collectPaths(args []string, parsers *ingestion.Parsers) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && parsers.Accepts(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func printBatch(w io.Writer, batch *ingestion.Batch) {
	for _, o := range batch.Outcomes {
		switch {
		case o.Error != "":
			fmt.Fprintf(w, "%-30s %-10s %s: %s\n", o.Filename, o.Status, o.ErrorCode, o.Error)
		default:
			fmt.Fprintf(w, "%-30s %-10s %s chunks=%d entities=%d relationships=%d embeddings=%d\n",
				o.Filename, o.Status, o.DocumentID, o.Stats.Chunks, o.Stats.Entities, o.Stats.Relationships, o.Stats.Embeddings)
		}
	}
	fmt.Fprintf(w, "Batch %s %s: %d succeeded, %d skipped, %d failed (%.2fs)\n",
		batch.BatchID, batch.Status, batch.SuccessfulFiles, batch.SkippedFiles, batch.FailedFiles, batch.ProcessingTime)
}
