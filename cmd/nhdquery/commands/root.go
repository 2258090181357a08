// Package commands defines the nhdquery CLI.
package commands

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/openhydro/nhdquery/internal/config"
	"github.com/openhydro/nhdquery/internal/httpclient"
	"github.com/openhydro/nhdquery/internal/logger"
	"github.com/openhydro/nhdquery/internal/nldi"
	"github.com/openhydro/nhdquery/internal/resolver"
	"github.com/openhydro/nhdquery/internal/waterdata"
)

var (
	logLevel string
	baseURL  string

	queries  *waterdata.Client
	resolves *resolver.Client
)

func Execute() error {
	root := &cobra.Command{
		Use:           "nhdquery",
		Short:         "Query NHDPlus hydrography layers and resolve network identifiers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			cfg := config.FromEnv()
			if baseURL != "" {
				cfg.WaterServiceURL = baseURL
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			log := logger.Build(logger.Config{
				Level:     cfg.LogLevel,
				Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) != "false",
				Component: "nhdquery",
			}, os.Stderr)

			retry := httpclient.WithRetry(cfg.RetryMax, cfg.BackoffCap)
			queries = waterdata.New(cfg.WaterServiceURL, httpclient.New("geoserver", log, retry), log)
			refs := nldi.New(httpclient.New("nldi", log, retry), log)
			resolves = resolver.New(queries, refs, log)
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&baseURL, "service-url", "", "water service base URL")

	root.AddCommand(queryIDsCmd(), queryBoxCmd(), resolveCmd())
	return root.Execute()
}
