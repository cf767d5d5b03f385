package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"authflow/internal/config"
)

var configFile string

// NewRootCmd serves the API when run without a subcommand.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "authflow",
		Short:        "Account signup, confirmation, login and password reset API",
		SilenceUsage: true,
		RunE:         runServe,
	}
	cmd.PersistentPreRun = func(*cobra.Command, []string) {
		// a missing .env is normal outside development
		_ = godotenv.Load()
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "YAML config file")
	pf.String("port", "", "HTTP listen port")
	pf.String("base-url", "", "public URL emailed links point at")
	pf.String("log-format", "", "log format: json or text")
	pf.String("metrics-addr", "", "metrics and health listen address, empty to disable")

	cmd.AddCommand(NewMigrateCmd())
	return cmd
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}
