package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rileyhilliard/fleetwatch/internal/agent"
	"github.com/rileyhilliard/fleetwatch/internal/config"
	"github.com/rileyhilliard/fleetwatch/internal/logger"
	"github.com/spf13/cobra"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Sample this machine and send metrics to the server",
	Long: `Sample RAM, CPU, process count and network traffic, and send one
report every client.send_interval (120s by default) until interrupted.

client.json is re-read before every send, so 'fleetwatch config-set' takes
effect without a restart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		if _, _, err := env.registeredClient(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := logger.NewEnvLogger("[client]")
		identity := func() (*config.ClientConfig, error) {
			return config.LoadClientConfig(env.paths)
		}
		a := agent.New(
			agent.NewSampler(agent.NewHostSource()),
			identity,
			agent.SenderFor(env.settings.Client.Timeout),
			env.settings.Client.SendInterval,
			log,
		)
		log.Info("sending metrics every %s", env.settings.Client.SendInterval)
		return a.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(clientCmd)
}
