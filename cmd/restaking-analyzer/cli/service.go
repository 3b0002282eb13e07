package cli

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/MinterGMT/restaking-research-visuals/internal/clients/duneclient"
	"github.com/MinterGMT/restaking-research-visuals/internal/config"
	"github.com/MinterGMT/restaking-research-visuals/internal/db"
	dbmodel "github.com/MinterGMT/restaking-research-visuals/internal/db/model"
	"github.com/MinterGMT/restaking-research-visuals/internal/observability/metrics"
	"github.com/MinterGMT/restaking-research-visuals/internal/observability/tracing"
	"github.com/MinterGMT/restaking-research-visuals/internal/services"
)

// buildService assembles the full analysis stack every subcommand runs on:
// config, database, Dune client and the metrics server.
func buildService(ctx context.Context) (context.Context, *services.Service, error) {
	ctx = tracing.InjectTraceID(ctx)
	log := log.Ctx(ctx)

	cfgPath := GetConfigPath()
	cfg, err := config.New(cfgPath)
	if err != nil {
		log.Error().Err(err).Str("path", cfgPath).Msg("error while loading config file")
		return ctx, nil, err
	}

	if err := dbmodel.Setup(ctx, &cfg.Db); err != nil {
		log.Error().Err(err).Msg("error while setting up db model")
		return ctx, nil, err
	}

	var dbClient db.DbInterface
	dbClient, err = db.New(ctx, cfg.Db)
	if err != nil {
		log.Error().Err(err).Msg("error while creating db client")
		return ctx, nil, err
	}
	dbClient = db.NewDbWithMetrics(dbClient)

	var duneClient duneclient.DuneInterface = duneclient.New(&cfg.Dune)
	duneClient = duneclient.NewDuneClientWithMetrics(duneClient)

	metrics.Init(cfg.Metrics.GetMetricsPort())

	return ctx, services.NewService(cfg, dbClient, duneClient), nil
}
