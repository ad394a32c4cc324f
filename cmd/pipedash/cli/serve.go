package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/davarch/pipedash/internal/infrastructure/config"
	"github.com/davarch/pipedash/internal/infrastructure/http_api"
	"github.com/davarch/pipedash/internal/infrastructure/logging"
	"github.com/davarch/pipedash/internal/infrastructure/progress"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve dashboards, runs, config text and progress events over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		log := logging.New(debug || cfg.Log.Debug)
		defer func() { _ = log.Sync() }()

		if err := cfg.RequireToken(); err != nil {
			log.Info("no default token, requests must carry credentials")
		}

		addr := cfg.Server.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		hub := progress.NewHub()
		api := http_api.New(log, newDashboardService(cfg, log, hub), hub, cfg.Dashboard.RecentRuns, cfg.Dashboard.Timeout)

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		// progress streams end with ctx so Shutdown does not wait on them.
		srv := &http.Server{
			Addr:              addr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}

		errc := make(chan error, 1)
		go func() {
			log.Info("listening", zap.String("addr", addr), zap.String("version", version))
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		log.Info("stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "listen", "", "listen address (default server.listen_addr)")

	rootCmd.AddCommand(serveCmd)
}
