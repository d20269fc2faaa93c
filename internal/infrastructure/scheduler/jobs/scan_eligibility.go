// Package jobs contains the academy's scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
	"github.com/faixamestre/dojo-hub/pkg/logger"
	"github.com/faixamestre/dojo-hub/pkg/retry"
	"github.com/faixamestre/dojo-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCAN ELIGIBILITY JOB
// ══════════════════════════════════════════════════════════════════════════════

// ScanEligibilityJobName is the scheduler key of ScanEligibilityJob.
const ScanEligibilityJobName = "scan_eligibility"

// ScanEligibilityJob evaluates every active student and publishes a
// PromotionEligibleEvent for each one who may advance. A student is
// announced once per offered rank: later scans stay quiet until the offer
// changes, and a student who drops out of eligibility can be announced
// again. The memory is per process.
type ScanEligibilityJob struct {
	students  student.Repository
	publisher shared.EventPublisher
	log       *logger.Logger
	config    ScanEligibilityConfig
	retrier   *retry.Retrier

	mu        sync.Mutex
	announced map[string]string // student ID -> offered rank

	lastRunStats atomic.Pointer[ScanEligibilityStats]
}

// ScanEligibilityConfig configures ScanEligibilityJob.
type ScanEligibilityConfig struct {
	// PageSize is how many students are loaded per query.
	PageSize int

	// Location decides which calendar day "today" is.
	Location *time.Location

	// Clock overrides the current time.
	Clock timeutil.Clock

	// RetryIf reports storage errors worth retrying, e.g. postgres.IsTransient.
	RetryIf func(error) bool
}

// DefaultScanEligibilityConfig returns sensible defaults.
func DefaultScanEligibilityConfig() ScanEligibilityConfig {
	return ScanEligibilityConfig{
		PageSize: 200,
		Location: time.UTC,
		Clock:    timeutil.SystemClock,
	}
}

// ScanEligibilityStats describes the last run.
type ScanEligibilityStats struct {
	AsOf      time.Time     `json:"as_of"`
	Scanned   int           `json:"scanned"`
	Eligible  int           `json:"eligible"`
	Announced int           `json:"announced"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// NewScanEligibilityJob creates the job.
func NewScanEligibilityJob(
	students student.Repository,
	publisher shared.EventPublisher,
	log *logger.Logger,
	config ScanEligibilityConfig,
) *ScanEligibilityJob {
	if log == nil {
		log = logger.Nop()
	}
	if config.PageSize <= 0 {
		config.PageSize = 200
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Clock == nil {
		config.Clock = timeutil.SystemClock
	}
	if config.RetryIf == nil {
		config.RetryIf = func(error) bool { return false }
	}

	return &ScanEligibilityJob{
		students:  students,
		publisher: publisher,
		log:       log.With(logger.Component("job"), logger.String("job", ScanEligibilityJobName)),
		config:    config,
		retrier:   retry.DatabaseRetrier(config.RetryIf),
		announced: make(map[string]string),
	}
}

// Name implements scheduler.Job.
func (j *ScanEligibilityJob) Name() string { return ScanEligibilityJobName }

// Description implements scheduler.Job.
func (j *ScanEligibilityJob) Description() string {
	return "Announces active students who have become eligible for their next rank"
}

// Run implements scheduler.Job. It stops early only when ctx is done or a
// page cannot be loaded.
func (j *ScanEligibilityJob) Run(ctx context.Context) error {
	started := time.Now()
	asOf := timeutil.Today(j.config.Clock, j.config.Location)
	stats := &ScanEligibilityStats{AsOf: asOf}
	defer func() {
		stats.Duration = time.Since(started)
		j.lastRunStats.Store(stats)
	}()

	opts := student.ListOptions{Limit: j.config.PageSize}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var page []*student.Student
		err := j.retrier.Do(ctx, func(ctx context.Context) error {
			var err error
			page, err = j.students.List(ctx, opts)
			return err
		})
		if err != nil {
			return fmt.Errorf("list students at offset %d: %w", opts.Offset, err)
		}

		for _, s := range page {
			stats.Scanned++
			j.check(s, asOf, stats)
		}

		if len(page) < opts.Limit {
			break
		}
		opts.Offset += opts.Limit
	}

	j.log.Info("eligibility scan finished",
		logger.String("as_of", timeutil.FormatDateStr(asOf)),
		logger.Int("scanned", stats.Scanned),
		logger.Int("eligible", stats.Eligible),
		logger.Int("announced", stats.Announced),
		logger.Int("failed", stats.Failed),
	)
	return nil
}

func (j *ScanEligibilityJob) check(s *student.Student, asOf time.Time, stats *ScanEligibilityStats) {
	verdict := s.Eligibility(asOf)
	if !verdict.Eligible {
		j.forget(s.ID)
		return
	}
	stats.Eligible++

	next := verdict.NextRank.String()
	if !j.remember(s.ID, next) {
		return
	}

	event := shared.NewPromotionEligibleEvent(s.ID, s.CurrentRank.String(), next, verdict.Reason, asOf)
	if err := j.publisher.Publish(event); err != nil {
		stats.Failed++
		j.forget(s.ID)
		j.log.Warn("failed to publish eligibility",
			logger.StudentID(s.ID),
			logger.Err(err),
		)
		return
	}
	stats.Announced++
	j.log.Debug("student eligible",
		logger.StudentID(s.ID),
		logger.Rank(next),
		logger.Category(string(s.Category)),
	)
}

// remember records the offer and reports whether it is new.
func (j *ScanEligibilityJob) remember(id, next string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.announced[id] == next {
		return false
	}
	j.announced[id] = next
	return true
}

func (j *ScanEligibilityJob) forget(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.announced, id)
}

// LastRunStats returns the stats of the last run, or nil before the first.
func (j *ScanEligibilityJob) LastRunStats() *ScanEligibilityStats {
	return j.lastRunStats.Load()
}
