package application

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/davarch/pipedash/internal/domain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Poller interface {
	PollOnce(ctx context.Context, t domain.Target) error
}

type Scheduler struct {
	log       *zap.Logger
	use       Poller
	every     time.Duration
	pauseFile string

	mu      sync.RWMutex
	targets []domain.Target
}

func NewScheduler(l *zap.Logger, u Poller, targets []domain.Target, every time.Duration, pauseFile string) *Scheduler {
	return &Scheduler{
		log: l, use: u, targets: targets, every: every, pauseFile: pauseFile,
	}
}

func (s *Scheduler) UpdateTargets(targets []domain.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = targets
	s.log.Info("config reloaded", zap.Int("projects", len(targets)))
}

func (s *Scheduler) Targets() []domain.Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Target, len(s.targets))
	copy(out, s.targets)
	return out
}

func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.every)
	defer t.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.isPaused() {
		s.log.Debug("paused: skipping poll")
		return
	}
	if err := s.runAll(ctx); err != nil {
		s.log.Warn("poll failed", zap.Errors("errors", multierr.Errors(err)))
	}
}

func (s *Scheduler) isPaused() bool {
	if s.pauseFile == "" {
		return false
	}
	_, err := os.Stat(s.pauseFile)
	return err == nil
}

func (s *Scheduler) runAll(ctx context.Context) error {
	var errs error
	for _, t := range s.Targets() {
		if ctx.Err() != nil {
			return errs
		}
		if err := s.use.PollOnce(ctx, t); err != nil {
			s.log.Debug("poll target failed", zap.String("target", t.String()), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
