package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"demand-matrix/internal/config"
	"demand-matrix/internal/directory"
	"demand-matrix/internal/logging"
	"demand-matrix/internal/matrix"
	"demand-matrix/internal/mcp"
	"demand-matrix/internal/period"
	"demand-matrix/internal/recurrence"
	"demand-matrix/internal/resolve"
	"demand-matrix/internal/snapshot"
	"demand-matrix/internal/store"
	"demand-matrix/internal/tasks"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "demand-matrix",
	Short: "Skill x month demand forecasting for recurring client work",
	Long: `Builds a demand matrix (required hours per skill per month) from recurring task
definitions, and serves it to MCP clients over stdio. Subcommands print the same
matrix, drill-downs and monthly totals to the terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Reports own the terminal; only the MCP server logs to stderr in full.
		logging.Init(logging.Options{Verbose: verbose, Quiet: cmd != cmd.Root()})

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Bool("directory", cfg.UseDirectory()).
			Msg("demand-matrix starting")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		mcp.Version = Version
		server := mcp.NewServer(cfg, b.engine, b.resolver, b.tasks, b.periods)
		return server.Serve(cmd.Context())
	},
}

// Execute runs the root command with a context cancelled on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// backend bundles the task source, name directory and engine for one run.
type backend struct {
	tasks    tasks.Source
	periods  period.Source
	resolver *resolve.Service
	engine   *matrix.Engine
	closers  []func() error
}

// openBackend reads from the remote directory when one is configured,
// otherwise from the local database.
func openBackend(cfg *config.AppConfig) (*backend, error) {
	b := &backend{}
	var lookup resolve.Lookup

	if cfg.UseDirectory() {
		client := directory.NewClient(cfg.Directory)
		lookup = client
		b.tasks = snapshot.NewCachedSource(client, cfg.CacheDir)
		b.periods = client
		log.Info().Str("url", cfg.Directory.BaseURL).Msg("Using remote directory")
	} else {
		st, err := store.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		lookup = st
		b.tasks = st
		b.periods = st
		b.closers = append(b.closers, st.Close)
		log.Info().Str("path", cfg.DBPath).Msg("Using local database")
	}

	b.resolver = resolve.NewService(lookup, resolve.Options{
		TTL:         cfg.ResolveTTL,
		Concurrency: cfg.ResolveConcurrency,
	})
	b.engine = matrix.NewEngine(b.resolver, engineOptions(cfg))
	return b, nil
}

func engineOptions(cfg *config.AppConfig) matrix.Options {
	opts := matrix.Options{
		MaxPeriods: cfg.MaxPeriods,
		MaxSkills:  cfg.MaxSkills,
		Timeout:    cfg.ForecastTimeout,
	}
	if cfg.WeekdayMode == config.WeekdayCalendar {
		opts.Weekdays = recurrence.CalendarWeekdayStrategy{}
	}
	return opts
}

func (b *backend) Close() {
	for _, c := range b.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("Failed to close backend")
		}
	}
}
