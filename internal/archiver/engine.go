package archiver

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"go-photos-archiver/internal/models"

	"github.com/gosuri/uilive"
	"github.com/oklog/ulid/v2"
	log "github.com/sirupsen/logrus"
)

const DefaultWorkers = 100

const (
	StateArchived  = "archived"
	StateSkipped   = "skipped"
	StateFailed    = "failed"
	StateAbandoned = "abandoned"
)

// Outcome is the terminal result for one submitted item. Abandoned items were
// never run, or were interrupted, because the run was cancelled; they are not
// failures.
type Outcome struct {
	Item      models.MediaItem
	Archived  bool
	Err       error
	Abandoned bool
}

func (o Outcome) State() string {
	switch {
	case o.Abandoned:
		return StateAbandoned
	case o.Err != nil:
		return StateFailed
	case o.Archived:
		return StateArchived
	default:
		return StateSkipped
	}
}

type EngineOptions struct {
	// Workers bounds concurrent tasks. Zero means DefaultWorkers.
	Workers int
	Logger  log.FieldLogger
	Metrics *Metrics
	// Progress, when set, receives one live status line per worker.
	Progress *uilive.Writer
}

// Engine schedules one Archiver call per media item onto a fixed pool of
// workers.
type Engine struct {
	archiver Archiver
	workers  int
	logger   log.FieldLogger
	metrics  *Metrics
	progress *uilive.Writer
}

func NewEngine(a Archiver, opts EngineOptions) (*Engine, error) {
	if a == nil {
		return nil, errors.New("archiver is required")
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNoWorkers, opts.Workers)
	}
	if opts.Workers == 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	return &Engine{
		archiver: a,
		workers:  opts.Workers,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		progress: opts.Progress,
	}, nil
}

// Start pulls items lazily and archives each on the worker pool, linking into
// albumPath when it is not empty. The returned channel yields one Outcome per
// pulled item in completion order and is closed once every worker is done.
// Callers must drain it.
//
// An enumeration error from items is reported as a failed Outcome with an
// empty Item. Cancelling ctx stops pulling further items; items already
// pulled but not yet started come back abandoned.
func (e *Engine) Start(ctx context.Context, items iter.Seq2[models.MediaItem, error], albumPath string) <-chan Outcome {
	logger := e.logger.WithField("run", ulid.Make().String())
	if albumPath != "" {
		logger = logger.WithField("album", albumPath)
	}

	jobs := make(chan models.MediaItem)
	results := make(chan Outcome, e.workers)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		e.produce(ctx, items, jobs, results, logger)
	}()

	for i := 1; i <= e.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			e.work(ctx, id, albumPath, jobs, results, logger.WithField("worker", id))
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
		logger.Debug("All workers finished")
	}()

	logger.WithField("workers", e.workers).Info("Archival run started")
	return results
}

func (e *Engine) produce(ctx context.Context, items iter.Seq2[models.MediaItem, error], jobs chan<- models.MediaItem, results chan<- Outcome, logger log.FieldLogger) {
	submitted := 0
	for item, err := range items {
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				e.producerCancelled(logger, submitted)
				return
			}
			logger.WithError(err).Error("Failed to enumerate media items")
			o := Outcome{Err: fmt.Errorf("enumerating media items: %w", err)}
			e.metrics.observe(o)
			results <- o
			continue
		}
		if ctx.Err() != nil {
			e.abandon(item, results)
			e.producerCancelled(logger, submitted)
			return
		}
		select {
		case jobs <- item:
			submitted++
		case <-ctx.Done():
			e.abandon(item, results)
			e.producerCancelled(logger, submitted)
			return
		}
	}
	logger.WithField("submitted", submitted).Debug("Producer finished")
}

func (e *Engine) producerCancelled(logger log.FieldLogger, submitted int) {
	logger.Warn("Run cancelled, no further media items will be scheduled")
	logger.WithField("submitted", submitted).Debug("Producer stopped")
}

func (e *Engine) work(ctx context.Context, id int, albumPath string, jobs <-chan models.MediaItem, results chan<- Outcome, logger log.FieldLogger) {
	for item := range jobs {
		if ctx.Err() != nil {
			e.abandon(item, results)
			continue
		}
		if e.progress != nil {
			fmt.Fprintf(e.progress.Newline(), "Worker %d: Archiving %s...\n", id, item.Filename)
		}

		archived, err := e.archiver.Archive(ctx, item, albumPath)
		o := Outcome{Item: item, Archived: archived, Err: err}
		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			logger.WithField("mediaItemId", item.ID).Debug("Task interrupted by cancellation")
			o = Outcome{Item: item, Abandoned: true}
		} else if err != nil {
			logger.WithError(err).WithField("mediaItemId", item.ID).Error("Failed to archive media item")
		}

		if e.progress != nil {
			fmt.Fprintf(e.progress.Newline(), "Worker %d: %s %s\n", id, o.State(), item.Filename)
		}
		e.metrics.observe(o)
		results <- o
	}
}

func (e *Engine) abandon(item models.MediaItem, results chan<- Outcome) {
	o := Outcome{Item: item, Abandoned: true}
	e.metrics.observe(o)
	results <- o
}

// Run starts a run and blocks until it is summarised.
func (e *Engine) Run(ctx context.Context, items iter.Seq2[models.MediaItem, error], albumPath string) Summary {
	return Summarize(e.Start(ctx, items, albumPath))
}

// Summary tallies a drained completion stream. Err joins every failure.
type Summary struct {
	Archived  int
	Skipped   int
	Failed    int
	Abandoned int
	Err       error
}

func (s Summary) Total() int {
	return s.Archived + s.Skipped + s.Failed + s.Abandoned
}

// Summarize drains outcomes completely before returning, whatever fails.
func Summarize(outcomes <-chan Outcome) Summary {
	var (
		s    Summary
		errs []error
	)
	for o := range outcomes {
		switch o.State() {
		case StateArchived:
			s.Archived++
		case StateSkipped:
			s.Skipped++
		case StateAbandoned:
			s.Abandoned++
		case StateFailed:
			s.Failed++
			errs = append(errs, o.Err)
		}
	}
	s.Err = errors.Join(errs...)
	return s
}

// Aggregate returns the number of newly archived items and every failure
// joined together. It always drains the channel.
func Aggregate(outcomes <-chan Outcome) (int, error) {
	s := Summarize(outcomes)
	return s.Archived, s.Err
}
