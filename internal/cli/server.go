package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"escape-room-service/internal/config"
	transport "escape-room-service/internal/transport/http"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string, envPort string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the escape-room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", envPort, "port to listen on (overrides server.port)")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	var verifier *transport.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier = transport.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	}

	ws := transport.NewWSHandler(transport.WSConfig{
		Gateway:        b.store,
		Rounds:         b.rounds,
		RoundID:        roundID(cfg),
		Options:        roundOptions(cfg),
		Rules:          scoringRules(cfg),
		Verifier:       verifier,
		Presence:       b.presence,
		Logger:         logger,
		PersistTimeout: config.Duration(cfg.Round.PersistTimeout, 10*time.Second),
		ResyncEvery:    cfg.Round.ResyncEvery,
	})
	router := transport.NewRouter(transport.RouterConfig{
		Logger:      logger,
		WS:          ws,
		Leaderboard: b.store,
		Checks:      b.checks,
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting escape-room service", "addr", server.Addr, "round", roundID(cfg), "driver", cfg.StoreDriver())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
