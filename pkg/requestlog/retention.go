package requestlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig controls age/count-based pruning of the sqlite mirror.
// The in-memory ring is never pruned by this: it self-evicts on overflow.
type RetentionConfig struct {
	RetentionDays int    // 0 disables age-based pruning
	MaxRecords    int64  // 0 disables count-based pruning
	Schedule      string // cron expression; empty disables scheduled pruning
}

// Pruner enforces RetentionConfig against a Mirror.
type Pruner struct {
	mirror *Mirror
	config RetentionConfig
	logger *slog.Logger
}

// NewPruner builds a Pruner. A nil logger discards output.
func NewPruner(mirror *Mirror, cfg RetentionConfig, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pruner{mirror: mirror, config: cfg, logger: logger}
}

// Prune runs one pruning cycle (age then count) and returns the total rows
// deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -p.config.RetentionDays)
		n, err := p.mirror.PruneByAge(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune by age: %w", err)
		}
		total += n
	}

	if p.config.MaxRecords > 0 {
		n, err := p.mirror.PruneByCount(ctx, p.config.MaxRecords)
		if err != nil {
			return total, fmt.Errorf("prune by count: %w", err)
		}
		total += n
	}

	if total > 0 {
		p.logger.Info("request log mirror pruned", "deleted", total)
	}
	return total, nil
}

// Scheduler runs a Pruner on a cron schedule until Stop is called.
type Scheduler struct {
	pruner *Pruner
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler builds a Scheduler around pruner.
func NewScheduler(pruner *Pruner) *Scheduler {
	return &Scheduler{pruner: pruner, cron: cron.New(), logger: pruner.logger}
}

// Start schedules pruning per pruner.config.Schedule. A blank schedule is a
// no-op: the mirror is only pruned on demand.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.pruner.config.Schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(s.pruner.config.Schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", s.pruner.config.Schedule, err)
	}

	_, err := s.cron.AddFunc(s.pruner.config.Schedule, func() {
		if _, err := s.pruner.Prune(ctx); err != nil {
			s.logger.Error("scheduled request log pruning failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule request log pruning: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for any in-flight pruning run to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
