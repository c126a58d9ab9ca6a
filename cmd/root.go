package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"snowpilot/internal/config"
	"snowpilot/internal/ui"
)

var (
	cfgFile string
	envName string
	verbose bool
	quiet   bool

	rootCmd = &cobra.Command{
		Use:   "snowpilot",
		Short: "Autonomic warehouse tuning for Snowflake",
		Long: `SnowPilot watches warehouse telemetry, aggregates it into signals,
proposes tuning actions through an ordered rule chain and applies the
safe ones automatically. Everything it does lands in a hash-chained
audit log.

Run 'snowpilot setup' to create a configuration, then 'snowpilot run'
to start the loop.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.snowpilot/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&envName, "env", "e", "", "named environment to connect with")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
}

func initConfig() {
	if cfgFile != "" {
		os.Setenv(config.EnvConfigFile, cfgFile)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	home, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(home + "/.snowpilot")
	}
	viper.SetEnvPrefix("SNOWPILOT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is okay for now
	}
}
