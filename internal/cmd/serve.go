package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rostralabs/rostra/internal/ai"
	"github.com/rostralabs/rostra/internal/config"
	"github.com/rostralabs/rostra/internal/event"
	"github.com/rostralabs/rostra/internal/logging"
	"github.com/rostralabs/rostra/internal/metrics"
	"github.com/rostralabs/rostra/internal/presence"
	"github.com/rostralabs/rostra/internal/registry"
	"github.com/rostralabs/rostra/internal/relay"
	"github.com/rostralabs/rostra/internal/router"
	"github.com/rostralabs/rostra/internal/store"
	"github.com/rostralabs/rostra/internal/transport/rest"
	"github.com/rostralabs/rostra/internal/transport/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the debate orchestrator server",
	Long: `Serve starts the orchestrator: the websocket channel, the REST
fallback, the session registry over the configured store backend, and,
when enabled, the AI debater driver.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "0.0.0.0", "listen address")
	serveCmd.Flags().Int("port", 8080, "listen port")
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	defer st.Close()
	log.Info("store ready", "backend", cfg.Store.Backend)

	bus := event.NewBus(log)

	reg, err := registry.New(registry.Config{
		Store:  st,
		Bus:    bus,
		Logger: log,
		Debate: cfg.Debate,
	})
	if err != nil {
		return fmt.Errorf("building registry: %w", err)
	}
	defer reg.Close()

	rly := relay.New(bus, reg, cfg.Relay.MaxFrameBytes, log)
	rly.WatchPhases()

	rt, err := router.New(router.Config{
		Registry: reg,
		Presence: presence.NewTracker(),
		Relay:    rly,
		Bus:      bus,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("building router: %w", err)
	}

	metrics.ObserveBus(bus)
	metrics.TrackSessions(reg.Resident)
	metrics.TrackRooms(bus.RoomCount)

	if cfg.AI.Enabled {
		provider := ai.NewFromConfig(cfg.AI, log)
		driver, err := ai.NewDriver(ai.DriverConfig{
			Router:      rt,
			Registry:    reg,
			Bus:         bus,
			Generator:   provider,
			Synthesizer: provider,
			Logger:      log,
			TurnTimeout: cfg.AI.Timeout(),
		})
		if err != nil {
			return fmt.Errorf("building ai driver: %w", err)
		}
		driver.Watch()
		defer driver.Close()
		log.Info("ai debaters enabled")
	}

	wsrv, err := ws.New(ws.Config{
		Router:        rt,
		Logger:        log,
		Server:        cfg.Server,
		MaxFrameBytes: cfg.Relay.MaxFrameBytes,
	})
	if err != nil {
		return fmt.Errorf("building websocket server: %w", err)
	}

	mux, err := rest.NewRouter(rest.Config{
		Registry:  reg,
		Store:     st,
		Logger:    log,
		Websocket: wsrv,
	})
	if err != nil {
		return fmt.Errorf("building http router: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	// Log level follows the config file without a restart; everything
	// else needs one.
	config.Watch(func(updated *config.Config) {
		log.SetLevel(updated.Logging.Level)
		log.Info("configuration reloaded", "level", updated.Logging.Level)
	}, func(err error) {
		log.Warn("configuration reload rejected", "error", err.Error())
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()

	if err := wsrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("websocket drain incomplete", "error", err.Error())
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
