// Package orchestrator reacts to content change events: it purges the
// high-priority targets inline and queues the low-priority ones.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"edgepurge/internal/cdn"
	"edgepurge/internal/content"
	"edgepurge/internal/invalidation"
	"edgepurge/internal/queue"
	"edgepurge/internal/resolver"
)

const DefaultPurgeTimeout = 30 * time.Second

// Observer receives per-event outcomes. *metrics.Metrics implements it.
type Observer interface {
	ImmediatePurge(outcome string)
	Event(entity, handling string)
}

type Options struct {
	// RequeueFailedImmediate queues high-priority items whose inline purge
	// failed so the next drain retries them.
	RequeueFailedImmediate bool
	PurgeTimeout           time.Duration
	Logger                 zerolog.Logger
	Observer               Observer
}

// Outcome summarizes what one event caused.
type Outcome struct {
	Skipped         bool   `json:"skipped"`
	Immediate       int    `json:"immediate"`
	ImmediateFailed bool   `json:"immediate_failed"`
	ImmediateError  string `json:"immediate_error,omitempty"`
	Queued          int    `json:"queued"`
}

type Orchestrator struct {
	resolver *resolver.Resolver
	purger   cdn.Purger
	queue    *queue.Queue
	opts     Options
	log      zerolog.Logger
}

func New(r *resolver.Resolver, p cdn.Purger, q *queue.Queue, opts Options) *Orchestrator {
	if opts.PurgeTimeout <= 0 {
		opts.PurgeTimeout = DefaultPurgeTimeout
	}
	return &Orchestrator{resolver: r, purger: p, queue: q, opts: opts, log: opts.Logger}
}

// OnChange handles one event. A failed inline purge never fails the call;
// only a queue persistence error is returned.
func (o *Orchestrator) OnChange(ctx context.Context, ev content.ChangeEvent) (Outcome, error) {
	entity := string(ev.EntityType)
	if !ev.Canonical() {
		o.observeEvent(entity, "skipped")
		return Outcome{Skipped: true}, nil
	}

	items := o.resolver.Resolve(ev)
	out := Outcome{Immediate: len(items.High)}
	low := items.Low

	if err := o.PurgeNow(ctx, items.High); err != nil {
		out.ImmediateFailed = true
		out.ImmediateError = err.Error()
		o.log.Warn().
			Err(err).
			Str("entity", entity).
			Int("items", len(items.High)).
			Bool("requeued", o.opts.RequeueFailedImmediate).
			Msg("[orchestrator] immediate purge failed")
		if o.opts.RequeueFailedImmediate {
			low = invalidation.Dedupe(append(append([]invalidation.Item{}, items.High...), low...))
		}
	}

	added, err := o.queue.Enqueue(ctx, low)
	if err != nil {
		o.observeEvent(entity, "queue_error")
		return out, fmt.Errorf("orchestrator: enqueue: %w", err)
	}
	out.Queued = added
	o.observeEvent(entity, "processed")

	o.log.Debug().
		Str("entity", entity).
		Str("action", string(ev.Action)).
		Str("from", string(ev.PreviousState)).
		Str("to", string(ev.NewState)).
		Int("immediate", out.Immediate).
		Int("queued", out.Queued).
		Msg("[orchestrator] change handled")
	return out, nil
}

// PurgeNow purges items synchronously, files first, bounded by the purge
// timeout.
func (o *Orchestrator) PurgeNow(ctx context.Context, items []invalidation.Item) error {
	if len(items) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, o.opts.PurgeTimeout)
	defer cancel()

	files, prefixes := invalidation.Partition(items)
	var err error
	if len(files) > 0 {
		err = o.purger.PurgeFiles(ctx, files)
	}
	if err == nil && len(prefixes) > 0 {
		err = o.purger.PurgePrefixes(ctx, prefixes)
	}
	if o.opts.Observer != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		o.opts.Observer.ImmediatePurge(outcome)
	}
	return err
}

func (o *Orchestrator) observeEvent(entity, handling string) {
	if o.opts.Observer != nil {
		o.opts.Observer.Event(entity, handling)
	}
}
