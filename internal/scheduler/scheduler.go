package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/guilherme-santos/calsync/internal/syncer"
)

const DefaultMaxConcurrent = 4

type Accounts interface {
	AccountIDs(context.Context) ([]int64, error)
}

type Syncer interface {
	Sync(_ context.Context, accountID int64, min, max time.Time) (*syncer.Result, error)
}

type Config struct {
	// Spec is a standard five field cron expression.
	Spec          string
	MaxConcurrent int
	Location      *time.Location
	Logger        *slog.Logger
}

// Scheduler syncs every account periodically. A tick is skipped while the
// previous one is still running.
type Scheduler struct {
	accounts Accounts
	syncer   Syncer
	cfg      Config
	logger   *slog.Logger
	cron     *cron.Cron
}

func New(accounts Accounts, s Syncer, cfg Config) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With(slog.String("component", "scheduler"))
	cronLog := cronLogger{logger}

	return &Scheduler{
		accounts: accounts,
		syncer:   s,
		cfg:      cfg,
		logger:   logger,
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
	}
}

// Start schedules RunOnce. Runs use ctx, cancel it to abort them.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Spec, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("Scheduled sync failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("scheduler: invalid spec %q: %w", s.cfg.Spec, err)
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", slog.String("spec", s.cfg.Spec))
	return nil
}

// Stop stops scheduling. The returned context is done once the running
// job, if any, has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce syncs every account, at most MaxConcurrent at a time. Failures of
// one account are logged and do not affect the others.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ids, err := s.accounts.AccountIDs(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: listing accounts: %w", err)
	}

	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.cfg.MaxConcurrent)
	)
loop:
	for _, id := range ids {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break loop
		}

		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			defer func() { <-sem }()

			logger := s.logger.With(slog.Int64("account_id", id))
			res, err := s.syncer.Sync(ctx, id, time.Time{}, time.Time{})
			if err != nil {
				logger.Error("Unable to sync account", slog.Any("error", err))
				return
			}
			logger.Debug("Account synced", slog.Int("processed", res.Processed), slog.Int("errors", res.Errors))
		}(id)
	}
	wg.Wait()
	return ctx.Err()
}

type cronLogger struct {
	*slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.Logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.Logger.Error(msg, append(keysAndValues, slog.Any("error", err))...)
}
