// Package queue persists the deduplicated set of low-priority invalidation
// items awaiting a batch purge.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"edgepurge/internal/invalidation"
	"edgepurge/internal/ratelog"
	"edgepurge/internal/store"
)

// DefaultMaxItems is the soft cap applied when none is configured.
const DefaultMaxItems = 1000

// Observer receives queue gauges. *metrics.Metrics implements it.
type Observer interface {
	QueueSize(n int)
	QueueDropped(n int)
}

type Options struct {
	// MaxItems is a soft cap on persisted items; 0 disables it.
	MaxItems int
	Key      string
	Logger   zerolog.Logger
	Observer Observer
}

// Queue keeps its items in a single store slot. Every write is
// read-merge-write; the mutex serializes writers within this process and
// idempotent merges make cross-process races harmless.
type Queue struct {
	store    store.Store
	key      string
	maxItems int
	log      zerolog.Logger
	overflow *ratelog.Logger
	obs      Observer

	mu sync.Mutex
}

func New(s store.Store, opts Options) *Queue {
	if opts.Key == "" {
		opts.Key = store.KeyQueue
	}
	if opts.MaxItems < 0 {
		opts.MaxItems = 0
	}
	return &Queue{
		store:    s,
		key:      opts.Key,
		maxItems: opts.MaxItems,
		log:      opts.Logger,
		overflow: ratelog.New(opts.Logger, time.Minute),
		obs:      opts.Observer,
	}
}

// Enqueue merges items into the persisted set and reports how many were new.
// Nothing is written when the merge changes nothing.
func (q *Queue) Enqueue(ctx context.Context, items []invalidation.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	cur, err := q.load(ctx)
	if err != nil {
		return 0, err
	}

	seen := make(map[invalidation.Key]struct{}, len(cur)+len(items))
	for _, it := range cur {
		seen[it.Key()] = struct{}{}
	}
	merged := cur
	added := 0
	dropped := 0
	for _, it := range items {
		k := it.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		if q.maxItems > 0 && len(merged) >= q.maxItems {
			dropped++
			continue
		}
		merged = append(merged, it)
		added++
	}

	if dropped > 0 {
		q.observeDropped(dropped)
		q.overflow.Warn().
			Int("dropped", dropped).
			Int("max_items", q.maxItems).
			Msg("[queue] soft cap reached, items not queued")
	}
	if added == 0 {
		return 0, nil
	}
	if err := q.save(ctx, merged); err != nil {
		return 0, err
	}
	q.log.Debug().Int("added", added).Int("size", len(merged)).Msg("[queue] items enqueued")
	return added, nil
}

// Drain returns the first max items as the batch and the rest as the
// remainder. It never writes; committing is the caller's decision.
func (q *Queue) Drain(ctx context.Context, max int) (batch, remainder []invalidation.Item, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cur, err := q.load(ctx)
	if err != nil {
		return nil, nil, err
	}
	if max < 0 {
		max = 0
	}
	if max > len(cur) {
		max = len(cur)
	}
	batch = append([]invalidation.Item(nil), cur[:max]...)
	remainder = append([]invalidation.Item(nil), cur[max:]...)
	return batch, remainder, nil
}

// Commit removes batch from the persisted set. Items enqueued after the
// batch was drained are kept.
func (q *Queue) Commit(ctx context.Context, batch []invalidation.Item) error {
	if len(batch) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	cur, err := q.load(ctx)
	if err != nil {
		return err
	}
	done := make(map[invalidation.Key]struct{}, len(batch))
	for _, it := range batch {
		done[it.Key()] = struct{}{}
	}
	rest := make([]invalidation.Item, 0, len(cur))
	for _, it := range cur {
		if _, ok := done[it.Key()]; ok {
			continue
		}
		rest = append(rest, it)
	}
	if len(rest) == len(cur) {
		return nil
	}
	return q.save(ctx, rest)
}

func (q *Queue) Size(ctx context.Context) (int, error) {
	items, err := q.Items(ctx)
	return len(items), err
}

// Items returns a snapshot of the persisted set in stored order.
func (q *Queue) Items(ctx context.Context) ([]invalidation.Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.store.Delete(ctx, q.key); err != nil {
		return fmt.Errorf("queue: clear: %w", err)
	}
	q.observeSize(0)
	return nil
}

func (q *Queue) load(ctx context.Context) ([]invalidation.Item, error) {
	b, err := q.store.Get(ctx, q.key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: load: %w", err)
	}
	var raw []invalidation.Item
	if err := json.Unmarshal(b, &raw); err != nil {
		// An unreadable slot can never drain; start over rather than wedge.
		q.log.Error().Err(err).Msg("[queue] stored queue is corrupt, treating as empty")
		return nil, nil
	}
	items := make([]invalidation.Item, 0, len(raw))
	for _, it := range raw {
		if it.URL == "" || (it.Kind != invalidation.File && it.Kind != invalidation.Prefix) {
			continue
		}
		items = append(items, it)
	}
	return invalidation.Dedupe(items), nil
}

func (q *Queue) save(ctx context.Context, items []invalidation.Item) error {
	if items == nil {
		items = []invalidation.Item{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("queue: encode: %w", err)
	}
	if err := q.store.Set(ctx, q.key, b); err != nil {
		return fmt.Errorf("queue: save: %w", err)
	}
	q.observeSize(len(items))
	return nil
}

func (q *Queue) observeSize(n int) {
	if q.obs != nil {
		q.obs.QueueSize(n)
	}
}

func (q *Queue) observeDropped(n int) {
	if q.obs != nil {
		q.obs.QueueDropped(n)
	}
}
