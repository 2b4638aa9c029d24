package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/cme-volume-scraper/internal/api"
	"github.com/JakeFAU/cme-volume-scraper/internal/clock/system"
	"github.com/JakeFAU/cme-volume-scraper/internal/id/uuid"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serves the HTTP API",
		Long: `Starts the HTTP server. Scrapes happen on demand through GET /scrape;
there is no background schedule.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, appInstance, newHTTPServer(appInstance))
}

func newHTTPServer(appInstance App) *http.Server {
	cfg := appInstance.Config()
	apiServer := api.NewServer(
		appInstance.Service(),
		uuid.NewGenerator(),
		system.New(),
		cfg,
		Version,
		appInstance.Logger(),
	)
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serve runs srv until ctx is canceled or the listener fails, then drains
// in-flight requests.
func serve(ctx context.Context, appInstance App, srv *http.Server) error {
	logger := appInstance.Logger()
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
