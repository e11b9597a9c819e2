package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/vigilab/comptrack/internal/api"
	"github.com/vigilab/comptrack/internal/recorder"
	"github.com/vigilab/comptrack/internal/registry"
	"github.com/vigilab/comptrack/internal/store"
	"github.com/vigilab/comptrack/internal/trialindex"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr          string
	BatchSize     int
	FlushInterval time.Duration
	WarnOrdering  bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the recording API over HTTP",
		Long: `Start the HTTP API: participant enrollment, the trial index, and
the continuous sample log.

Example:
  comptrack serve --db ./study.db --addr :8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", recorder.DefaultBatchSize, "samples per flush batch")
	cmd.Flags().DurationVar(&opts.FlushInterval, "flush-interval", recorder.DefaultFlushInterval, "max buffering latency")
	cmd.Flags().BoolVar(&opts.WarnOrdering, "warn-ordering", false, "accept out-of-order samples with a warning instead of rejecting")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	slog.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ordering := recorder.OrderingReject
	if opts.WarnOrdering {
		ordering = recorder.OrderingWarn
	}
	rec, err := recorder.New(cmd.Context(), st,
		recorder.WithBatchSize(opts.BatchSize),
		recorder.WithFlushInterval(opts.FlushInterval),
		recorder.WithOrderingPolicy(ordering))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create recorder", err)
	}

	if !opts.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := &api.Handler{
		Store:    st,
		Registry: registry.New(st),
		Trials:   trialindex.New(st),
		Recorder: rec,
	}

	srv := &http.Server{
		Addr:    opts.Addr,
		Handler: handler.Router(),
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("api listening", "addr", opts.Addr, "db", opts.Database)
		errChan <- srv.ListenAndServe()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "API listening on %s. Press Ctrl-C to stop.\n", opts.Addr)

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
	case <-ctx.Done():
	}

	// Stop accepting requests first, then drain session buffers.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
	if err := rec.Close(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "draining sessions failed", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
