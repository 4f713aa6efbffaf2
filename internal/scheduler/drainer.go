// Package scheduler drains the invalidation queue in bounded batches on a
// fixed interval. A batch leaves the queue only when every purge request
// for it succeeded.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"edgepurge/internal/cdn"
	"edgepurge/internal/invalidation"
	"edgepurge/internal/queue"
	"edgepurge/internal/ratelog"
)

const (
	DefaultHookName  = "edgepurge.process_queue"
	DefaultInterval  = time.Minute
	DefaultBatchSize = 30
)

type State string

const (
	Idle     State = "idle"
	Draining State = "draining"
)

type Result string

const (
	ResultEmpty   Result = "empty"
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Observer receives one outcome per run. *metrics.Metrics implements it.
type Observer interface {
	DrainRun(outcome string)
}

type Options struct {
	HookName string
	Interval time.Duration
	// BatchSize is read at the start of every run so saved settings apply
	// without a restart. Values below 1 fall back to DefaultBatchSize.
	BatchSize   func() int
	MaxPrefixes int
	Logger      zerolog.Logger
	Observer    Observer
	// RunTimeout bounds a timer-triggered run.
	RunTimeout time.Duration
}

// Report describes one drain run.
type Report struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Result    Result    `json:"result"`
	Batch     int       `json:"batch"`
	Files     int       `json:"files"`
	Prefixes  int       `json:"prefixes"`
	Requests  int       `json:"requests"`
	Remaining int       `json:"remaining"`
}

type Status struct {
	State      State     `json:"state"`
	Scheduled  bool      `json:"scheduled"`
	Interval   string    `json:"interval"`
	LastRunAt  time.Time `json:"last_run_at,omitempty"`
	LastRunID  string    `json:"last_run_id,omitempty"`
	LastResult Result    `json:"last_result,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	Pending    int       `json:"pending"`
}

type Drainer struct {
	queue  *queue.Queue
	purger cdn.Purger
	timer  Timer
	opts   Options
	log    zerolog.Logger

	missing  *ratelog.Logger
	failures *ratelog.Logger

	group singleflight.Group

	mu     sync.Mutex
	state  State
	last   Report
	lastEr string
}

func New(q *queue.Queue, p cdn.Purger, t Timer, opts Options) *Drainer {
	if opts.HookName == "" {
		opts.HookName = DefaultHookName
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.BatchSize == nil {
		opts.BatchSize = func() int { return DefaultBatchSize }
	}
	if opts.MaxPrefixes <= 0 || opts.MaxPrefixes > cdn.MaxPrefixesPerRequest {
		opts.MaxPrefixes = cdn.MaxPrefixesPerRequest
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 5 * time.Minute
	}
	return &Drainer{
		queue:    q,
		purger:   p,
		timer:    t,
		opts:     opts,
		log:      opts.Logger,
		missing:  ratelog.New(opts.Logger, opts.Interval),
		failures: ratelog.New(opts.Logger, opts.Interval),
		state:    Idle,
	}
}

// Schedule registers the recurring hook unconditionally.
func (d *Drainer) Schedule() {
	d.timer.Register(d.opts.HookName, d.opts.Interval, d.tick)
	d.log.Info().Str("hook", d.opts.HookName).Dur("every", d.opts.Interval).Msg("[scheduler] drain scheduled")
}

// EnsureScheduled re-registers the hook if the timer lost it and reports
// whether it had to.
func (d *Drainer) EnsureScheduled() bool {
	if d.timer.Registered(d.opts.HookName) {
		return false
	}
	d.timer.Register(d.opts.HookName, d.opts.Interval, d.tick)
	d.missing.Warn().Str("hook", d.opts.HookName).Msg("[scheduler] drain hook was not registered, re-registered")
	return true
}

func (d *Drainer) Unschedule() {
	d.timer.Unregister(d.opts.HookName)
}

func (d *Drainer) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.RunTimeout)
	defer cancel()
	if _, err := d.Run(ctx); err != nil {
		d.failures.Error().Err(err).Msg("[scheduler] drain failed, will retry next tick")
	}
}

// Run drains one batch now. Concurrent calls share a single run.
func (d *Drainer) Run(ctx context.Context) (Report, error) {
	d.EnsureScheduled()
	v, err, shared := d.group.Do("drain", func() (any, error) {
		return d.run(ctx)
	})
	if shared {
		d.log.Debug().Msg("[scheduler] joined in-flight drain")
	}
	rep, _ := v.(Report)
	return rep, err
}

func (d *Drainer) run(ctx context.Context) (rep Report, err error) {
	rep = Report{RunID: uuid.NewString(), StartedAt: time.Now()}
	d.setState(Draining)
	defer func() {
		d.finish(rep, err)
	}()

	size := d.opts.BatchSize()
	if size < 1 {
		size = DefaultBatchSize
	}

	batch, remainder, err := d.queue.Drain(ctx, size)
	if err != nil {
		rep.Result = ResultFailure
		return rep, err
	}
	rep.Batch = len(batch)
	rep.Remaining = len(batch) + len(remainder)
	if len(batch) == 0 {
		rep.Result = ResultEmpty
		return rep, nil
	}

	files, prefixes := invalidation.Partition(batch)
	rep.Files, rep.Prefixes = len(files), len(prefixes)

	if err := d.purgeBatch(ctx, files, prefixes, &rep); err != nil {
		rep.Result = ResultFailure
		return rep, err
	}

	if err := d.queue.Commit(ctx, batch); err != nil {
		// Purged but still queued; the next run purges these again.
		rep.Result = ResultFailure
		return rep, err
	}
	rep.Remaining = len(remainder)
	rep.Result = ResultSuccess
	d.log.Info().
		Str("run_id", rep.RunID).
		Int("files", rep.Files).
		Int("prefixes", rep.Prefixes).
		Int("requests", rep.Requests).
		Int("remaining", rep.Remaining).
		Msg("[scheduler] batch purged")
	return rep, nil
}

// purgeBatch sends files as one request and prefixes in chunks no larger
// than the prefix ceiling, stopping at the first failure.
func (d *Drainer) purgeBatch(ctx context.Context, files, prefixes []string, rep *Report) error {
	if len(files) > 0 {
		rep.Requests++
		if err := d.purger.PurgeFiles(ctx, files); err != nil {
			return fmt.Errorf("purge %d files: %w", len(files), err)
		}
	}
	for start := 0; start < len(prefixes); start += d.opts.MaxPrefixes {
		end := min(start+d.opts.MaxPrefixes, len(prefixes))
		rep.Requests++
		if err := d.purger.PurgePrefixes(ctx, prefixes[start:end]); err != nil {
			return fmt.Errorf("purge prefixes %d-%d of %d: %w", start+1, end, len(prefixes), err)
		}
	}
	return nil
}

func (d *Drainer) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

func (d *Drainer) finish(rep Report, err error) {
	d.mu.Lock()
	d.state = Idle
	d.last = rep
	d.lastEr = ""
	if err != nil {
		d.lastEr = err.Error()
	}
	d.mu.Unlock()

	if d.opts.Observer != nil {
		d.opts.Observer.DrainRun(string(rep.Result))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		d.log.Debug().Err(err).Str("run_id", rep.RunID).Msg("[scheduler] batch left in queue")
	}
}

// Status reports the drain state and the pending count. It also repairs a
// missing timer registration.
func (d *Drainer) Status(ctx context.Context) (Status, error) {
	d.EnsureScheduled()
	pending, err := d.queue.Size(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	st := Status{
		State:      d.state,
		Scheduled:  d.timer.Registered(d.opts.HookName),
		Interval:   d.opts.Interval.String(),
		LastRunAt:  d.last.StartedAt,
		LastRunID:  d.last.RunID,
		LastResult: d.last.Result,
		LastError:  d.lastEr,
		Pending:    pending,
	}
	return st, err
}
