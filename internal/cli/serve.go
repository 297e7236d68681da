package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	api "tasktimer/cmd/api"
	"tasktimer/internal/task/dto"
	"tasktimer/internal/task/scheduler"
	"tasktimer/pkg/assetcache"
	"tasktimer/pkg/sse"
)

func serveCmd(configPath func() string) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API with live timers and cross-process sync",
		Long: `Start the HTTP API.

Examples:
  tasktimer serve
  tasktimer serve --port 9090
  SYNC_MODE=pubsub GOOGLE_PROJECT_ID=my-project tasktimer serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, configPath(), port)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "port to listen on (overrides PORT)")
	return cmd
}

func runServe(ctx context.Context, configPath, port string) error {
	a, err := openApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg
	if port == "" {
		port = cfg.Port
	}

	syncCtrl, err := a.watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start %s sync: %w", cfg.SyncMode, err)
	}
	defer syncCtrl.Stop()

	// Initialize SSE Manager
	sseManager := sse.NewManager()
	go sseManager.Run()
	defer sseManager.Stop()

	views := dto.NewBuilder(a.clock)
	ticker := scheduler.NewTimerTicker(a.store, views, api.NewTickBroadcaster(sseManager), a.clock, cfg.TickInterval)
	ticker.Start(ctx)
	defer ticker.Stop()

	var assets *assetcache.Cache
	if cfg.AssetOrigin != "" {
		assets, err = assetcache.New(assetcache.Options{
			Origin:      cfg.AssetOrigin,
			Limit:       cfg.AssetCacheLimit,
			OfflinePage: cfg.AssetOfflinePage,
			Shell:       cfg.AssetShell,
		})
		if err != nil {
			return err
		}
		go assets.Precache(ctx)
	} else {
		log.Println("[AssetCache] ASSET_ORIGIN not configured, asset cache disabled")
	}

	handler := api.NewHandler(a.store, views, sseManager, cfg, assets)
	defer handler.Close()

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s (storage: %s, sync: %s)", port, cfg.StorageDriver, cfg.SyncMode)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down server")
	// event streams never finish on their own
	sseManager.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
