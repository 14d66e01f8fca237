package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rileyhilliard/fleetwatch/internal/dashboard"
	"github.com/rileyhilliard/fleetwatch/internal/errors"
	"github.com/rileyhilliard/fleetwatch/internal/logger"
	"github.com/rileyhilliard/fleetwatch/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	serverDashboard bool
	serverLogFile   string
	serverQuiet     bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the collector",
	Long: `Listen for agent connections, store their samples, and answer admin
commands. With --dashboard the terminal dashboard runs alongside and quitting
it stops the server.

Logs go to stderr unless --quiet is set or the dashboard owns the terminal;
--log-file sends them to a file in either case.

Examples:
  fleetwatch server
  fleetwatch server --dashboard --log-file /var/log/fleetwatch.log`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	serverCmd.Flags().BoolVar(&serverDashboard, "dashboard", false, "show the dashboard while serving")
	serverCmd.Flags().StringVar(&serverLogFile, "log-file", "", "append logs to this file")
	serverCmd.Flags().BoolVarP(&serverQuiet, "quiet", "q", false, "discard logs")
	rootCmd.AddCommand(serverCmd)
}

// serverLogger picks where server logs go. The returned closer is never nil.
func serverLogger() (logger.Logger, func() error, error) {
	noClose := func() error { return nil }
	if serverLogFile != "" {
		f, err := os.OpenFile(serverLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, noClose, errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot open log file "+serverLogFile,
				"Check the path and its permissions")
		}
		return logger.NewWriterLogger(f, "[server]"), f.Close, nil
	}
	if serverQuiet || serverDashboard {
		return logger.Noop(), noClose, nil
	}
	return logger.NewEnvLogger("[server]"), noClose, nil
}

func runServer(parent context.Context) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	if serverDashboard {
		if err := requireTerminal("server --dashboard"); err != nil {
			return err
		}
	}

	log, closeLog, err := serverLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := env.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	reg, err := env.openRegistry()
	if err != nil {
		return err
	}

	opts := server.OptionsFromSettings(env.settings.Server)
	opts.Logger = log
	srv := server.New(st, reg, opts)
	if err := srv.Prepare(ctx); err != nil {
		return err
	}

	// The server or the dashboard finishing stops everything else.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return srv.ListenAndServe(gctx)
	})

	// admin-add and local remove edit server.json while the server runs.
	g.Go(func() error {
		if err := reg.Watch(gctx, env.paths.Server(), log); err != nil {
			log.Warn("registry edits need 'fleetwatch reload-remote': %v", err)
		}
		return nil
	})

	if addr := env.settings.Server.MetricsAddr; addr != "" {
		g.Go(func() error {
			return srv.Metrics().ServeMetrics(gctx, addr, log)
		})
	}

	if serverDashboard {
		dopts := dashboard.OptionsFromSettings(env.settings.Dashboard)
		dopts.Skip = reg.IsAdminID
		g.Go(func() error {
			defer cancel()
			return dashboard.Run(gctx, st, dopts)
		})
	}

	log.Info("serving on %s", env.settings.Server.Listen)
	return g.Wait()
}
