package ledger

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/elettra-ics/inau/pkg/storage"
)

// RetentionConfig controls archival of closed versions. Active versions and
// the projection are never touched.
type RetentionConfig struct {
	Enabled       bool          // Whether the sweeper runs. Default false.
	MaxAge        time.Duration // Closed versions older than this are deleted. Default 4 years.
	SweepInterval time.Duration // How often the sweeper runs. Default 24h.
}

// DefaultRetentionConfig returns the default retention configuration.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		Enabled:       false,
		MaxAge:        4 * 365 * 24 * time.Hour,
		SweepInterval: 24 * time.Hour,
	}
}

// RetentionConfigFromEnv loads config from INAU_RETENTION_ENABLED,
// INAU_RETENTION_MAX_AGE_DAYS and INAU_RETENTION_SWEEP_HOURS.
func RetentionConfigFromEnv() *RetentionConfig {
	cfg := DefaultRetentionConfig()
	if v := os.Getenv("INAU_RETENTION_ENABLED"); v != "" {
		cfg.Enabled, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("INAU_RETENTION_MAX_AGE_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxAge = time.Duration(n) * 24 * time.Hour
		}
	}
	if v := os.Getenv("INAU_RETENTION_SWEEP_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SweepInterval = time.Duration(n) * time.Hour
		}
	}
	return cfg
}

// ArchiveBefore deletes closed versions whose validity ended before cutoff
// and returns how many were removed. This is the only sanctioned deletion
// path for version records.
func (l *Ledger) ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	regs, err := l.router.List(ctx, Category.Name)
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, reg := range regs {
		res := l.db.WithContext(ctx).
			Exec("DELETE FROM "+reg.SegmentID().Table()+" WHERE valid_to IS NOT NULL AND valid_to < ?", cutoff)
		if res.Error != nil {
			return removed, storage.Storagef("archive %s: %v", reg.SegmentID().Table(), res.Error)
		}
		removed += res.RowsAffected
	}
	return removed, nil
}

// RetentionSweeper periodically archives old closed versions.
type RetentionSweeper struct {
	ledger *Ledger
	cfg    *RetentionConfig
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewRetentionSweeper creates a RetentionSweeper.
func NewRetentionSweeper(l *Ledger, cfg *RetentionConfig, logger *slog.Logger) *RetentionSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionSweeper{ledger: l, cfg: cfg, logger: logger}
}

// Run sweeps on the configured interval until ctx is cancelled, then waits
// for an in-flight sweep to finish.
func (s *RetentionSweeper) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("retention sweeper disabled")
		return
	}

	s.logger.Info("retention sweeper starting",
		"maxAge", s.cfg.MaxAge.String(),
		"sweepInterval", s.cfg.SweepInterval.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("retention sweeper stopped")
}

func (s *RetentionSweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.MaxAge)
	removed, err := s.ledger.ArchiveBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("retention sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("retention sweep removed closed versions", "count", removed, "cutoff", cutoff)
	}
}
