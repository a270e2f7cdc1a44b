package command

import (
	"context"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/go-ledger-wallet/internal/config"
	"github/chapool/go-ledger-wallet/internal/metrics"
	"github/chapool/go-ledger-wallet/internal/util"
)

// NewSubcommandGroup returns a command without a Run function that only groups
// the given subcommands, printing its help when invoked directly.
func NewSubcommandGroup(name string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: name + " related subcommands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(subcommands...)

	return cmd
}

// WithConfig configures the global logger from cfg, attaches a logger tagged
// with a fresh invocation id to ctx and runs f.
func WithConfig(ctx context.Context, cfg config.Server, f func(ctx context.Context, cfg config.Server) error) error {
	closer := util.ConfigureLogger(cfg.Logger)
	defer func() {
		if err := closer.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close log file")
		}
	}()

	logger := log.With().Str("invocation", uuid.NewString()).Logger()

	return f(util.WithLogger(ctx, logger), cfg)
}

// WithMetrics runs f with collectors registered on a private registry. If
// textfile is set, the gathered metrics are written there afterwards, also
// when f fails.
func WithMetrics(ctx context.Context, textfile string, f func(m *metrics.Service) error) error {
	reg := prometheus.NewRegistry()

	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	runErr := f(m)

	if textfile != "" {
		if err := metrics.WriteTextfile(textfile, reg); err != nil {
			util.LogFromContext(ctx).Error().Err(err).Msg("Failed to write metrics textfile")
			if runErr == nil {
				return err
			}
		}
	}

	return runErr
}
