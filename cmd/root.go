package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/moolen/publicenv/pkg/injector"
)

type rootOptions struct {
	logLevel string
	keys     []string
}

// newRootCmd represents the base command when called without any subcommands
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "publicenv",
		Short: "Forward public environment values into a web app's build configuration",
		Long: `publicenv reads PUBLIC_DEPLOYED_URL (and any other configured keys) from the
process environment and republishes them, unchanged, as the "env" field of a
build configuration record. Unset variables are left out, empty ones are kept.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			logrus.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringSliceVarP(&opts.keys, "key", "k", nil, "Additional environment variable to forward besides "+injector.DeployedURL+"; repeatable")

	rootCmd.AddCommand(
		newRenderCmd(opts),
		newSubstituteCmd(opts),
		newApplyCmd(opts),
	)
	return rootCmd
}

// inject evaluates the configured keys against the process environment.
func (o *rootOptions) inject() (*injector.Record, error) {
	inj, err := injector.New(o.keys...)
	if err != nil {
		return nil, err
	}
	rec := inj.Inject(injector.OS())
	for _, k := range rec.Forwarded {
		_, set := rec.Lookup(k)
		logrus.Debugf("Forwarding %s (set=%t)", k, set)
	}
	return rec, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
