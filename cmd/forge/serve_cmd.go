package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"forge.evalgo.org/config"
	"forge.evalgo.org/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the read-only status/events HTTP server on a fresh, empty event feed (builds run by other forge invocations do not publish to it)",
	RunE:  runServe,
}

func init() {
	// Default host/port follow the teacher's EnvConfig convention
	// (FORGE_HOST/FORGE_PORT) so CI environments can configure the status
	// server the same way they configure any other forge-engine service,
	// without requiring the --addr flag.
	defaults := config.LoadServerConfig("FORGE")
	serveCmd.Flags().String("addr", fmt.Sprintf("%s:%d", defaults.Host, defaults.Port), "address to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	feed := httpapi.NewFeed()
	server := httpapi.NewServer(feed)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sig:
		fmt.Println("shutting down status server...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
