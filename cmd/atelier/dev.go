package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/atelier-dev/atelier/internal/config"
	"github.com/atelier-dev/atelier/internal/devserver"
)

func devCmd() *cobra.Command {
	var (
		port    int
		host    string
		seed    bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start the local platform emulator",
		Long: `Start the local platform emulator.

The emulator serves the REST endpoints the platform client consumes,
the auth session endpoint, the realtime room hub and a Prometheus
/metrics endpoint, all backed by in-memory tables.

Examples:
  atelier dev
  atelier dev --port=8080 --seed
  atelier dev --host=0.0.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(port, host, seed, verbose)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from atelier.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from atelier.json)")
	cmd.Flags().BoolVar(&seed, "seed", false, "Seed demo images and sessions")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	return cmd
}

func runDev(port int, host string, seed, verbose bool) error {
	cfg, err := config.LoadWithEnv(".")
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Dev.Port = port
	}
	if host != "" {
		cfg.Dev.Host = host
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))

	store := devserver.NewStore()
	if seed {
		seedDemoData(store)
	}

	hub := devserver.NewHub(logger)
	var opts []devserver.ServerOption
	if cfg.AnonKey != "" {
		opts = append(opts, devserver.WithAnonKey(cfg.AnonKey))
	}
	srv := devserver.NewServer(store, hub, logger, opts...)

	addr := net.JoinHostPort(cfg.Dev.Host, strconv.Itoa(cfg.Dev.Port))
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	printBanner()
	fmt.Println("  dev")
	fmt.Println()
	success("Emulator listening on http://%s", addr)
	info("REST      http://%s/rest/v1", addr)
	info("Realtime  ws://%s/realtime/v1/ws", addr)
	info("Metrics   http://%s/metrics", addr)
	if seed {
		info("Seeded demo data (token: demo-token)")
	}
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		fmt.Println("\n  Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}

// seedDemoData loads a handful of images and one signed-in user so the
// emulator is usable straight away.
func seedDemoData(store *devserver.Store) {
	for i := int64(1); i <= 12; i++ {
		store.SeedImage(devserver.ImageRow{
			ID:        i,
			ImageURL:  fmt.Sprintf("https://cdn.atelier.local/designs/%d.png", i),
			CreatorID: fmt.Sprintf("creator-%d", (i%3)+1),
			LikeCount: int(i % 5),
			IsPublic:  true,
		})
	}
	store.SeedSession("demo-token", devserver.SessionRow{
		UserID:    "demo-user",
		Name:      "Demo User",
		AvatarURL: "https://cdn.atelier.local/avatars/demo.png",
	})
}
