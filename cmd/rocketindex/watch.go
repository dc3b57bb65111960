package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rocket-tycoon/rocketindex/internal/config"
	"github.com/rocket-tycoon/rocketindex/internal/pipeline"
	"github.com/rocket-tycoon/rocketindex/internal/watcher"
	"github.com/rocket-tycoon/rocketindex/scripts"
)

var flagWatchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [--root PATH]",
	Short: "Watch a workspace and keep its index up to date",
	Args:  cobra.MaximumNArgs(0),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&flagRoot, "root", ".", "workspace directory to watch")
	watchCmd.Flags().DurationVar(&flagWatchDebounce, "debounce", watcher.DefaultDebounce, "how long to wait after the last event in a burst before reindexing")
}

func runWatch(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir([]string{flagRoot})
	if err != nil {
		return outputError("watch", err)
	}
	repoRoot := findRepoRoot(targetDir)
	dbPath := resolveDBPath(repoRoot)

	cfg, err := config.Load(repoRoot)
	if err != nil {
		return outputError("watch", err)
	}

	p, err := pipeline.New(dbPath, "", pipeline.WithScriptsFS(scripts.FS),
		pipeline.WithExcludeDirs(cfg.ExcludeDirs), pipeline.WithMaxRecursionDepth(cfg.MaxRecursionDepth))
	if err != nil {
		return outputError("watch", fmt.Errorf("opening index: %w", err))
	}
	defer p.Close()

	w, err := watcher.New(targetDir, p, flagWatchDebounce)
	if err != nil {
		return outputError("watch", fmt.Errorf("starting watcher: %w", err))
	}

	enc := json.NewEncoder(os.Stdout)
	w.OnBatch(func(res watcher.Result) {
		if flagFormat == "json" {
			_ = enc.Encode(map[string]any{
				"created": res.Created, "modified": res.Modified, "removed": res.Removed,
				"rescan_forced": res.RescanForced,
			})
			return
		}
		if res.RescanForced {
			fmt.Fprintln(os.Stderr, "watch: full rescan forced")
			return
		}
		fmt.Fprintf(os.Stderr, "watch: +%d ~%d -%d\n", len(res.Created), len(res.Modified), len(res.Removed))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := p.Build(ctx, targetDir); err != nil {
		return outputError("watch", fmt.Errorf("initial index: %w", err))
	}

	if err := w.Start(ctx); err != nil {
		return outputError("watch", err)
	}
	fmt.Fprintf(os.Stderr, "watching %s (ctrl-c to stop)\n", targetDir)

	<-ctx.Done()
	return w.Stop()
}
