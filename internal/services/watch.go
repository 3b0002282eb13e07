package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/MinterGMT/restaking-research-visuals/internal/observability/metrics"
	"github.com/MinterGMT/restaking-research-visuals/internal/utils/poller"
)

// Watch runs the operator concentration analysis immediately and then on the
// configured interval until the context is cancelled, keeping summaries and
// artifacts fresh while the market moves.
func (s *Service) Watch(ctx context.Context) error {
	if err := s.RunOperatorConcentration(ctx); err != nil {
		// The first run surfaces configuration mistakes; later failures are
		// transient and only logged by the poller.
		return err
	}

	log.Ctx(ctx).Info().
		Dur("interval", s.cfg.Analysis.WatchInterval).
		Msg("watching operator concentration")

	p := poller.NewPoller(
		s.cfg.Analysis.WatchInterval,
		metrics.RecordPollerDuration(ModuleOperatorConcentration, s.RunOperatorConcentration),
	)
	p.Start(ctx)
	return nil
}
