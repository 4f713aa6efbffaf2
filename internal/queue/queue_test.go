package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgepurge/internal/invalidation"
	"edgepurge/internal/store"
)

type gauges struct {
	size    int
	dropped int
}

func (g *gauges) QueueSize(n int)    { g.size = n }
func (g *gauges) QueueDropped(n int) { g.dropped += n }

type failingStore struct {
	store.Store
	failGet bool
	failSet bool
	sets    int
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet {
		return nil, errors.New("boom")
	}
	return f.Store.Get(ctx, key)
}

func (f *failingStore) Set(ctx context.Context, key string, value []byte) error {
	f.sets++
	if f.failSet {
		return errors.New("boom")
	}
	return f.Store.Set(ctx, key, value)
}

func items(n int) []invalidation.Item {
	out := make([]invalidation.Item, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = invalidation.Item{Kind: invalidation.File, URL: fmt.Sprintf("https://example.com/p/%d/", i)}
		} else {
			out[i] = invalidation.Item{Kind: invalidation.Prefix, URL: fmt.Sprintf("example.com/tag/%d", i)}
		}
	}
	return out
}

func newQueue(s store.Store, max int) *Queue {
	return New(s, Options{MaxItems: max, Logger: zerolog.Nop()})
}

func TestEnqueueDedupes(t *testing.T) {
	ctx := context.Background()
	q := newQueue(store.NewMemory(), 0)

	a := invalidation.Item{Kind: invalidation.File, URL: "https://example.com/"}
	b := invalidation.Item{Kind: invalidation.Prefix, URL: "example.com"}
	c := invalidation.Item{Kind: invalidation.File, URL: "https://example.com/feed/"}

	added, err := q.Enqueue(ctx, []invalidation.Item{a, b, a})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = q.Enqueue(ctx, []invalidation.Item{b, c})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	got, err := q.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, []invalidation.Item{a, b, c}, got)
}

func TestEnqueueNoChangeSkipsWrite(t *testing.T) {
	ctx := context.Background()
	fs := &failingStore{Store: store.NewMemory()}
	q := newQueue(fs, 0)

	_, err := q.Enqueue(ctx, items(3))
	require.NoError(t, err)
	assert.Equal(t, 1, fs.sets)

	added, err := q.Enqueue(ctx, items(3))
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, 1, fs.sets)

	added, err = q.Enqueue(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, 1, fs.sets)
}

func TestEnqueueNeverStoresDuplicates(t *testing.T) {
	ctx := context.Background()
	q := newQueue(store.NewMemory(), 0)
	pool := items(25)
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		n := rng.Intn(10)
		batch := make([]invalidation.Item, n)
		for i := range batch {
			batch[i] = pool[rng.Intn(len(pool))]
		}
		_, err := q.Enqueue(ctx, batch)
		require.NoError(t, err)

		if round%7 == 0 {
			b, _, err := q.Drain(ctx, rng.Intn(5)+1)
			require.NoError(t, err)
			require.NoError(t, q.Commit(ctx, b))
		}

		got, err := q.Items(ctx)
		require.NoError(t, err)
		seen := map[invalidation.Key]bool{}
		for _, it := range got {
			require.False(t, seen[it.Key()], "duplicate %s", it)
			seen[it.Key()] = true
		}
	}
}

func TestDrainBatchBoundary(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct{ n, max int }{
		{0, 30}, {10, 30}, {30, 30}, {40, 30}, {40, 1}, {5, 0},
	} {
		t.Run(fmt.Sprintf("n=%d,max=%d", tc.n, tc.max), func(t *testing.T) {
			q := newQueue(store.NewMemory(), 0)
			orig := items(tc.n)
			_, err := q.Enqueue(ctx, orig)
			require.NoError(t, err)

			batch, rest, err := q.Drain(ctx, tc.max)
			require.NoError(t, err)

			want := tc.max
			if tc.n < want {
				want = tc.n
			}
			assert.Len(t, batch, want)
			assert.Len(t, rest, tc.n-want)
			assert.ElementsMatch(t, orig, append(append([]invalidation.Item{}, batch...), rest...))

			size, err := q.Size(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.n, size, "drain must not mutate")
		})
	}
}

func TestCommitRemovesOnlyBatch(t *testing.T) {
	ctx := context.Background()
	q := newQueue(store.NewMemory(), 0)
	all := items(40)
	_, err := q.Enqueue(ctx, all)
	require.NoError(t, err)

	batch, rest, err := q.Drain(ctx, 30)
	require.NoError(t, err)

	late := invalidation.Item{Kind: invalidation.File, URL: "https://example.com/late/"}
	_, err = q.Enqueue(ctx, []invalidation.Item{late})
	require.NoError(t, err)

	require.NoError(t, q.Commit(ctx, batch))
	got, err := q.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, append(rest, late), got)
}

func TestSoftCap(t *testing.T) {
	ctx := context.Background()
	g := &gauges{}
	q := New(store.NewMemory(), Options{MaxItems: 5, Logger: zerolog.Nop(), Observer: g})

	added, err := q.Enqueue(ctx, items(8))
	require.NoError(t, err)
	assert.Equal(t, 5, added)
	assert.Equal(t, 3, g.dropped)
	assert.Equal(t, 5, g.size)

	got, err := q.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, items(5), got)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	g := &gauges{}
	q := New(store.NewMemory(), Options{Logger: zerolog.Nop(), Observer: g})
	_, err := q.Enqueue(ctx, items(4))
	require.NoError(t, err)

	require.NoError(t, q.Clear(ctx))
	size, err := q.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)
	assert.Zero(t, g.size)
}

func TestCorruptSlotIsTreatedAsEmpty(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.Set(ctx, store.KeyQueue, []byte("{not json")))
	q := newQueue(mem, 0)

	size, err := q.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)

	_, err = q.Enqueue(ctx, items(2))
	require.NoError(t, err)
	size, err = q.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, size)
}

func TestLoadSkipsInvalidStoredItems(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.Set(ctx, store.KeyQueue, []byte(
		`[{"type":"file","url":"https://example.com/"},{"type":"tag","url":"x"},{"type":"prefix","url":""},{"type":"file","url":"https://example.com/"}]`,
	)))
	q := newQueue(mem, 0)

	got, err := q.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, []invalidation.Item{{Kind: invalidation.File, URL: "https://example.com/"}}, got)
}

func TestStoreErrorsSurface(t *testing.T) {
	ctx := context.Background()
	fs := &failingStore{Store: store.NewMemory(), failSet: true}
	q := newQueue(fs, 0)

	_, err := q.Enqueue(ctx, items(1))
	assert.Error(t, err)

	fs.failGet = true
	_, _, err = q.Drain(ctx, 10)
	assert.Error(t, err)
}
