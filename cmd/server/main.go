// Command server starts the relay: a websocket chat server with named rooms,
// a durable room directory, and admin moderation commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"relaychat/internal/directory"
	"relaychat/internal/server"
)

func main() {
	// Load local .env (dev only).
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "relaychat",
		Usage: "room-scoped websocket chat relay",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address (overrides SERVER_PORT)"},
			&cli.StringFlag{Name: "rooms-file", Usage: "path of the persisted room list (overrides ROOMS_FILE)"},
			&cli.StringFlag{Name: "static-dir", Usage: "static asset directory (overrides STATIC_DIR)"},
			&cli.StringFlag{Name: "env", Usage: "runtime environment, dev or prod (overrides APP_ENV)"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := server.NewConfigFromEnv()
	if v := cmd.String("addr"); v != "" {
		cfg.Port = v
	}
	if v := cmd.String("rooms-file"); v != "" {
		cfg.RoomsFile = v
	}
	if v := cmd.String("static-dir"); v != "" {
		cfg.StaticDir = v
	}
	if v := cmd.String("env"); v != "" {
		cfg.Env = v
	}
	server.SetConfig(cfg)

	logger := server.NewLogger(cfg.Env)
	if cfg.AdminUser == "" || cfg.AdminPass == "" {
		logger.Warn("admin credentials not configured, login and room creation are disabled")
	}

	rooms, err := directory.Open(cfg.RoomsFile)
	if err != nil {
		return fmt.Errorf("failed to open room directory: %w", err)
	}
	logger.Info("room directory loaded", "path", cfg.RoomsFile, "rooms", len(rooms.List()))

	hub := server.NewHub(logger, rooms)
	api := server.NewRoomsAPI(logger, rooms)
	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(logger, hub, api))

	// Cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Port)
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info("shutting down")
	if err := server.ShutdownServer(httpServer, 10*time.Second); err != nil {
		logger.Error("http shutdown failed", "err", err)
	}
	if err := hub.Shutdown(5 * time.Second); err != nil {
		logger.Error("hub shutdown incomplete", "err", err)
	}
	logger.Info("shutdown complete")
	return nil
}
