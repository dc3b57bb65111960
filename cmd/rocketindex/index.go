package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rocket-tycoon/rocketindex/internal/config"
	"github.com/rocket-tycoon/rocketindex/internal/gitblame"
	"github.com/rocket-tycoon/rocketindex/internal/pipeline"
	"github.com/rocket-tycoon/rocketindex/scripts"
)

var (
	flagBatchSize int
	flagQuiet     bool
	flagBlame     bool
)

var indexCmd = &cobra.Command{
	Use:   "index [--root PATH]",
	Short: "Index a workspace for semantic navigation",
	Args:  cobra.MaximumNArgs(0),
	RunE:  runIndex,
}

var flagRoot string

func init() {
	indexCmd.Flags().StringVar(&flagRoot, "root", ".", "workspace directory to index")
	indexCmd.Flags().IntVar(&flagBatchSize, "batch-size", 0, "override .rocketindex.toml's batch_size")
	indexCmd.Flags().BoolVar(&flagQuiet, "quiet", false, "suppress the stderr timing summary")
	indexCmd.Flags().BoolVar(&flagBlame, "blame", false, "enrich indexed files with git blame metadata")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir([]string{flagRoot})
	if err != nil {
		return outputError("index", err)
	}
	repoRoot := findRepoRoot(targetDir)
	dbPath := resolveDBPath(repoRoot)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return outputError("index", fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err))
	}

	cfg, err := config.Load(repoRoot)
	if err != nil {
		return outputError("index", err)
	}
	if flagBatchSize > 0 {
		cfg.BatchSize = flagBatchSize
	}

	p, err := pipeline.New(dbPath, "", pipeline.WithScriptsFS(scripts.FS),
		pipeline.WithExcludeDirs(cfg.ExcludeDirs), pipeline.WithMaxRecursionDepth(cfg.MaxRecursionDepth),
		pipeline.WithParallel(true))
	if err != nil {
		return outputError("index", fmt.Errorf("opening index: %w", err))
	}
	defer p.Close()

	ctx := context.Background()
	res, err := p.Build(ctx, targetDir)
	if err != nil {
		return outputError("index", fmt.Errorf("indexing: %w", err))
	}

	if flagBlame {
		if enricher, err := gitblame.Open(repoRoot); err == nil {
			files, err := p.Store().AllFiles()
			if err == nil {
				_ = gitblame.EnrichAll(p.Store(), enricher, files)
			}
		}
	}

	duration := time.Since(start)
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "Indexed %s in %s: %d files, %d symbols, %d refs, %d opens\n",
			targetDir, duration.Round(time.Millisecond), res.Files, res.Symbols, res.Refs, res.Opens)
		fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	}

	if flagFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"files": res.Files, "symbols": res.Symbols, "refs": res.Refs, "opens": res.Opens,
			"skipped": res.Skipped, "duration_ms": duration.Milliseconds(),
		})
	}
	return nil
}
