package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/openhydro/nhdquery/internal/config"
	"github.com/openhydro/nhdquery/internal/httpclient"
	"github.com/openhydro/nhdquery/internal/logger"
	"github.com/openhydro/nhdquery/internal/nldi"
	"github.com/openhydro/nhdquery/internal/observability"
	"github.com/openhydro/nhdquery/internal/resolver"
	"github.com/openhydro/nhdquery/internal/server"
	"github.com/openhydro/nhdquery/internal/waterdata"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "nhd-server",
	}, os.Stdout)

	observability.ExposeBuildInfo(Version)
	log.Info().
		Str("addr", cfg.Addr).
		Str("version", Version).
		Str("water_service", cfg.WaterServiceURL).
		Msg("starting server")

	retry := httpclient.WithRetry(cfg.RetryMax, cfg.BackoffCap)
	wd := waterdata.New(cfg.WaterServiceURL, httpclient.New("geoserver", log, retry), log)
	refs := nldi.New(httpclient.New("nldi", log, retry), log)
	rs := resolver.New(wd, refs, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, log, wd, rs); err != nil {
		log.Error().Err(err).Msg("server failed")
		return 1
	}
	return 0
}
