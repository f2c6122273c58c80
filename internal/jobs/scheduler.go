package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type ResetTokenSweeper interface {
	ClearExpiredResetTokens(ctx context.Context) (int64, error)
}

type SessionIndexPruner interface {
	PruneIndexes(ctx context.Context) (int64, error)
}

// Scheduler runs periodic housekeeping for the API process.
type Scheduler struct {
	cron     *cron.Cron
	tokens   ResetTokenSweeper
	sessions SessionIndexPruner
	log      zerolog.Logger
}

func NewScheduler(tokens ResetTokenSweeper, sessions SessionIndexPruner, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:     c,
		tokens:   tokens,
		sessions: sessions,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 5 * * * *", s.sweepResetTokens); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 35 * * * *", s.pruneSessionIndexes); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish or ctx to end, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) sweepResetTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.tokens.ClearExpiredResetTokens(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("clear expired reset tokens failed")
		return
	}
	if n > 0 {
		s.log.Info().Int64("cleared", n).Msg("expired reset tokens cleared")
	}
}

func (s *Scheduler) pruneSessionIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.sessions.PruneIndexes(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("prune session indexes failed")
		return
	}
	if n > 0 {
		s.log.Info().Int64("pruned", n).Msg("stale session index entries pruned")
	}
}
