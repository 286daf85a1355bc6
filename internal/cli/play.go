package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"escape-room-service/internal/catalog"
	"escape-room-service/internal/config"
	"escape-room-service/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewPlayCmd runs a round in the terminal against the configured store.
func NewPlayCmd(configPath *string) *cobra.Command {
	var logPath string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a round in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("play needs an interactive terminal")
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			// the screen belongs to the client, so logs go to a file or nowhere
			var logOut io.Writer = io.Discard
			if logPath != "" {
				f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				logOut = f
			}
			logger := newLogger(cfg, logOut)

			ctx := cmd.Context()
			b, err := openBackend(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer b.Close()

			round, err := b.rounds.GetRound(ctx, roundID(cfg))
			if err != nil {
				return fmt.Errorf("load round: %w", err)
			}
			cat, err := catalog.New(round)
			if err != nil {
				return err
			}

			return tui.Run(ctx, tui.Config{
				Gateway:        b.store,
				Catalog:        cat,
				Options:        roundOptions(cfg),
				Rules:          scoringRules(cfg),
				Logger:         logger,
				PersistTimeout: config.Duration(cfg.Round.PersistTimeout, 10*time.Second),
				ResyncEvery:    cfg.Round.ResyncEvery,
			})
		},
	}
	cmd.Flags().StringVar(&logPath, "log-file", "", "write logs to this file")
	return cmd
}
