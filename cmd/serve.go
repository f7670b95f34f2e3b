package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/khanhnv2901/seca-posture/internal/api"
	jobs "github.com/khanhnv2901/seca-posture/internal/infrastructure/api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the posture scanner as a REST API service",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		cfg := appCtx.Config.Serve
		logger := appCtx.Logger

		// Background scans outlive the request that started them but not
		// the process.
		jobCtx, cancelJobs := context.WithCancel(context.Background())
		scanner := newScanner(appCtx)
		scanJobs := jobs.NewScanJobs(jobCtx, jobs.NewJobManager(), scanner, logger)
		defer drainJobs(cancelJobs, scanJobs)
		health := &serveHealth{}

		server := api.NewServer(api.Config{
			Scanner:     scanner,
			Health:      health,
			Jobs:        scanJobs,
			AuthToken:   cfg.AuthToken,
			Logger:      logger,
			CORSOrigins: cfg.CORSOrigins,
		})

		httpServer := &http.Server{
			Addr:              cfg.Addr,
			Handler:           server,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       120 * time.Second,
			// No WriteTimeout: /jobs-stream holds the connection open.
		}
		httpServer.RegisterOnShutdown(server.CloseStreams)

		out := cmd.OutOrStdout()
		serverErrors := make(chan error, 1)
		go func() {
			fmt.Fprintf(out, "%s API server listening on %s\n", colorInfo("→"), cfg.Addr)
			fmt.Fprintf(out, "%s Press Ctrl+C to gracefully shutdown\n", colorInfo("→"))
			serverErrors <- httpServer.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case sig := <-shutdown:
			fmt.Fprintf(out, "\n%s Received signal %v, initiating graceful shutdown...\n", colorInfo("→"), sig)
			health.draining.Store(true)

			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(ctx); err != nil {
				if closeErr := httpServer.Close(); closeErr != nil {
					return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
				}
				return fmt.Errorf("failed to gracefully shutdown server: %w", err)
			}

			logger.Info("server_stopped", zap.String("addr", cfg.Addr))
			fmt.Fprintf(out, "%s Server shutdown complete\n", colorInfo("✓"))
		}

		return nil
	},
}

// drainJobs cancels background scans and waits for them to record their
// final status. Runs on every exit path of serve.
func drainJobs(cancel context.CancelFunc, scanJobs *jobs.ScanJobs) {
	cancel()
	scanJobs.Wait()
}

// serveHealth reports live until the process exits and ready until a
// shutdown begins.
type serveHealth struct {
	draining atomic.Bool
}

func (h *serveHealth) Check(context.Context) error {
	return nil
}

func (h *serveHealth) Ready(context.Context) error {
	if h.draining.Load() {
		return errors.New("shutting down")
	}
	return nil
}

func init() {
	serveCmd.Flags().StringVar(&cliConfig.Serve.Addr, "addr", cliConfig.Serve.Addr, "Address for the API server")
	serveCmd.Flags().StringVar(&cliConfig.Serve.AuthToken, "auth-token", "", "Token clients must send in the X-Auth-Token header (empty = no auth)")
	serveCmd.Flags().DurationVar(&cliConfig.Serve.ShutdownTimeout, "shutdown-timeout", cliConfig.Serve.ShutdownTimeout, "Graceful shutdown timeout")
	serveCmd.Flags().StringSliceVar(&cliConfig.Serve.CORSOrigins, "cors-origins", []string{}, "Allowed CORS origins (empty = allow all)")
}
