// Package scheduler runs the periodic assignment batch over unassigned spots
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	businessflow "github.com/adscope-labs/spotgrid/business_flow"
	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/repository"
	"github.com/adscope-labs/spotgrid/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	spotsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotgrid_spots_processed_total",
			Help: "Total spots processed by the assignment engine, by outcome",
		},
		[]string{"outcome"},
	)

	batchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spotgrid_batch_duration_seconds",
			Help:    "Assignment batch run durations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	batchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotgrid_batch_runs_total",
			Help: "Total assignment batch runs, by result",
		},
		[]string{"result"},
	)
)

// AssignmentScheduler periodically drains unassigned spots through the
// assignment flow. Spots are partitioned by market so each market's grid
// resolutions stay on one worker, keeping the resolver cache hot and free of
// cross-worker races.
type AssignmentScheduler struct {
	spotRepo   repository.SpotRepository
	assignFlow businessflow.AssignmentFlow
	resolver   businessflow.GridResolverFlow
	collisions businessflow.CollisionFlow
	logger     *log.Logger
	interval   time.Duration
	workers    int
	pageSize   int

	runMu   sync.Mutex
	running bool

	logFile *os.File
}

// NewAssignmentScheduler creates a new assignment scheduler
func NewAssignmentScheduler(
	spotRepo repository.SpotRepository,
	assignFlow businessflow.AssignmentFlow,
	resolver businessflow.GridResolverFlow,
	collisions businessflow.CollisionFlow,
	logger *log.Logger,
	interval time.Duration,
	workers int,
	pageSize int,
) *AssignmentScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if workers <= 0 {
		workers = utils.DefaultBatchWorkers
	}
	if pageSize <= 0 {
		pageSize = utils.DefaultSpotPageSize
	}

	s := &AssignmentScheduler{
		spotRepo:   spotRepo,
		assignFlow: assignFlow,
		resolver:   resolver,
		collisions: collisions,
		logger:     logger,
		interval:   interval,
		workers:    workers,
		pageSize:   pageSize,
	}

	if s.logger == nil {
		if err := s.initSchedulerLogger(); err != nil {
			s.logger = log.Default()
			s.logger.Printf("scheduler: failed to initialize file logger: %v", err)
		}
	}

	return s
}

// initSchedulerLogger configures a logger that writes to both stdout and a persistent file under data/ (or /data)
func (s *AssignmentScheduler) initSchedulerLogger() error {
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		logPath := filepath.Join(dir, "scheduler.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		s.logFile = f
		s.logger = log.New(io.MultiWriter(os.Stdout, f), "scheduler: ", log.LstdFlags|log.LUTC)
		return nil
	}
	return fmt.Errorf("no writable log directory among %v", candidates)
}

// Start runs the scheduler loop until the context is cancelled
func (s *AssignmentScheduler) Start(ctx context.Context) {
	s.logger.Printf("assignment scheduler started (interval=%s workers=%d)", s.interval, s.workers)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("assignment scheduler stopped: %v", ctx.Err())
			if s.logFile != nil {
				s.logFile.Close()
			}
			return
		case <-ticker.C:
			summary, err := s.RunBatch(ctx)
			if err != nil {
				s.logger.Printf("batch run failed: %v", err)
				continue
			}
			if summary.Total > 0 {
				s.logger.Printf("batch done: %d assigned, %d no coverage, %d multi-block, %d failed, %d need attention",
					summary.Assigned, summary.NoGridCoverage, summary.MultiBlock, summary.Failed, len(summary.AttentionSpotIDs))
			}
		}
	}
}

// RunBatch assigns every spot currently missing an assignment and returns the
// aggregated outcome counts. Ingestion is never blocked on these outcomes; a
// coverage gap is a count, not a failure. Only store unavailability aborts
// the run, and an aborted run is safe to resume because writes are keyed
// uniquely by spot.
func (s *AssignmentScheduler) RunBatch(ctx context.Context) (*businessflow.BatchSummary, error) {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return nil, businessflow.ErrBatchAlreadyRunning
	}
	s.running = true
	s.runMu.Unlock()
	defer func() {
		s.runMu.Lock()
		s.running = false
		s.runMu.Unlock()
	}()

	started := utils.UTCNow()
	summary := &businessflow.BatchSummary{StartedAt: started}

	// No engine state survives across runs; the store is the source of truth.
	s.resolver.ResetRunCache()

	if gaps, err := s.collisions.ScanGaps(ctx, started); err != nil {
		s.logger.Printf("schedule gap scan failed: %v", err)
	} else {
		for _, gap := range gaps {
			s.logger.Printf("schedule gap logged: %s", gap.Description)
		}
	}

	spots, err := s.collectUnassigned(ctx)
	if err != nil {
		batchRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	if len(spots) == 0 {
		summary.FinishedAt = utils.UTCNow()
		batchRunsTotal.WithLabelValues("empty").Inc()
		return summary, nil
	}

	s.logger.Printf("batch starting: %d unassigned spots", len(spots))

	partitions := partitionByMarket(spots)
	marketCh := make(chan uint, len(partitions))
	for marketID := range partitions {
		marketCh <- marketID
	}
	close(marketCh)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg        sync.WaitGroup
		summaryMu sync.Mutex
		firstErr  error
	)

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for marketID := range marketCh {
				for _, spot := range partitions[marketID] {
					// Cancellation is honored between spots, never mid-spot.
					select {
					case <-runCtx.Done():
						return
					default:
					}

					outcome, err := s.assignFlow.Assign(runCtx, spot)
					summaryMu.Lock()
					if err != nil {
						// Store-level failure: abort remaining work. Partial
						// progress is fine, guessing without the store is not.
						if firstErr == nil {
							firstErr = err
							summary.Aborted = true
							cancel()
						}
						summaryMu.Unlock()
						return
					}
					summary.Record(outcome)
					summaryMu.Unlock()
					spotsProcessedTotal.WithLabelValues(outcomeLabel(outcome)).Inc()
				}
			}
		}()
	}

	wg.Wait()

	summary.FinishedAt = utils.UTCNow()
	batchDuration.Observe(summary.FinishedAt.Sub(started).Seconds())

	if firstErr != nil {
		batchRunsTotal.WithLabelValues("aborted").Inc()
		return summary, fmt.Errorf("batch aborted after %d spots: %w", summary.Total, firstErr)
	}

	batchRunsTotal.WithLabelValues("ok").Inc()
	return summary, nil
}

// collectUnassigned drains the unassigned spot pages into memory. Offset
// paging is safe here because assignment rows are only written by this run,
// and every page is read before the first write happens.
func (s *AssignmentScheduler) collectUnassigned(ctx context.Context) ([]*models.Spot, error) {
	var all []*models.Spot
	offset := 0
	for {
		page, err := s.spotRepo.ListUnassigned(ctx, s.pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to collect unassigned spots: %w", err)
		}
		all = append(all, page...)
		if len(page) < s.pageSize {
			return all, nil
		}
		offset += s.pageSize
	}
}

// partitionByMarket groups spots so all rows for one market land on the same
// worker.
func partitionByMarket(spots []*models.Spot) map[uint][]*models.Spot {
	partitions := make(map[uint][]*models.Spot)
	for _, spot := range spots {
		partitions[spot.MarketID] = append(partitions[spot.MarketID], spot)
	}
	return partitions
}

func outcomeLabel(outcome *businessflow.SpotOutcome) string {
	switch {
	case outcome.Failed:
		return "failed"
	case outcome.Assignment.Intent == models.IntentNoGridCoverage:
		return "no_grid_coverage"
	case outcome.Assignment.MultiBlock:
		return "multi_block"
	default:
		return "assigned"
	}
}
