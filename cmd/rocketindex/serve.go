package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rocket-tycoon/rocketindex/internal/mcpserver"
)

var rocketindexVersion = "dev"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query layer over the Model Context Protocol (stdio)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	s, eng, err := openEngine()
	if err != nil {
		return outputError("serve", err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := mcpserver.New(eng, rocketindexVersion)
	if err := srv.Run(ctx); err != nil {
		return outputError("serve", fmt.Errorf("mcp server: %w", err))
	}
	return nil
}
