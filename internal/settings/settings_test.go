package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgepurge/internal/store"
)

func TestSanitize(t *testing.T) {
	testCases := []struct {
		name      string
		in        Settings
		want      Settings
		wantErr   bool
		wantFatal bool
	}{
		{
			name: "valid",
			in:   Settings{ZoneID: "abc123", APIToken: "tok", BatchSize: 10},
			want: Settings{ZoneID: "abc123", APIToken: "tok", BatchSize: 10},
		},
		{
			name:    "zero_batch_coerced",
			in:      Settings{ZoneID: "abc123", BatchSize: 0},
			want:    Settings{ZoneID: "abc123", BatchSize: DefaultBatchSize},
			wantErr: true,
		},
		{
			name:    "negative_batch_coerced",
			in:      Settings{BatchSize: -5},
			want:    Settings{BatchSize: DefaultBatchSize},
			wantErr: true,
		},
		{
			name: "whitespace_trimmed",
			in:   Settings{ZoneID: "  abc123\n", APIToken: " tok ", BatchSize: 1},
			want: Settings{ZoneID: "abc123", APIToken: "tok", BatchSize: 1},
		},
		{
			name:      "bad_zone_fatal",
			in:        Settings{ZoneID: "not/a/zone", BatchSize: 30},
			want:      Settings{ZoneID: "not/a/zone", BatchSize: 30},
			wantErr:   true,
			wantFatal: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Sanitize(tc.in)
			assert.Equal(t, tc.want, got)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tc.wantFatal, ve.Fatal())
		})
	}
}

func TestValidationErrorUsesJSONNames(t *testing.T) {
	_, err := Sanitize(Settings{ZoneID: "zone id with spaces", BatchSize: 0})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Fields, 2)
	assert.Equal(t, "batch_size", ve.Fields[0].Field)
	assert.True(t, ve.Fields[0].Coerced)
	assert.Equal(t, "zone_id", ve.Fields[1].Field)
	assert.False(t, ve.Fields[1].Coerced)
	assert.Contains(t, ve.Error(), "zone_id")
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "", MaskToken(""))
	assert.Equal(t, "*****", MaskToken("short"))
	assert.Equal(t, "********cdef", MaskToken("0123456789abcdef"[4:]))
	s := Settings{ZoneID: "z", APIToken: "supersecrettoken"}.Masked()
	assert.Equal(t, "z", s.ZoneID)
	assert.Equal(t, "************oken", s.APIToken)
}

func TestManagerLoadDefaults(t *testing.T) {
	m := NewManager(store.NewMemory(), Settings{ZoneID: "seed", APIToken: "t"}, zerolog.Nop())

	s, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Settings{ZoneID: "seed", APIToken: "t", BatchSize: DefaultBatchSize}, s)
	assert.Equal(t, s, m.Current())
}

func TestManagerSaveAndReload(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := NewManager(st, Settings{}, zerolog.Nop())

	var seen []Settings
	m.OnChange(func(s Settings) { seen = append(seen, s) })

	saved, err := m.Save(ctx, Settings{ZoneID: "abc", APIToken: "tok", BatchSize: 12, Debug: true})
	require.NoError(t, err)
	assert.Equal(t, 12, saved.BatchSize)
	require.Len(t, seen, 1)
	assert.True(t, seen[0].Debug)

	other := NewManager(st, Settings{ZoneID: "ignored"}, zerolog.Nop())
	loaded, err := other.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestManagerSaveCoercedIsPersisted(t *testing.T) {
	ctx := context.Background()
	m := NewManager(store.NewMemory(), Settings{}, zerolog.Nop())

	saved, err := m.Save(ctx, Settings{ZoneID: "abc", APIToken: "tok", BatchSize: 0})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.False(t, ve.Fatal())
	assert.Equal(t, DefaultBatchSize, saved.BatchSize)
	assert.Equal(t, saved, m.Current())
}

func TestManagerSaveFatalPersistsNothing(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := NewManager(st, Settings{ZoneID: "seed"}, zerolog.Nop())

	_, err := m.Save(ctx, Settings{ZoneID: "bad zone", BatchSize: 5})
	require.Error(t, err)
	_, getErr := st.Get(ctx, store.KeySettings)
	assert.ErrorIs(t, getErr, store.ErrNotFound)
	assert.Equal(t, "seed", m.Current().ZoneID)
}

func TestManagerCorruptSlotFallsBack(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.Set(ctx, store.KeySettings, []byte("{not json")))
	m := NewManager(st, Settings{ZoneID: "seed"}, zerolog.Nop())

	s, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "seed", s.ZoneID)
}

func TestManagerReset(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := NewManager(st, Settings{ZoneID: "seed"}, zerolog.Nop())
	_, err := m.Save(ctx, Settings{ZoneID: "other", BatchSize: 3})
	require.NoError(t, err)

	require.NoError(t, m.Reset(ctx))
	assert.Equal(t, "seed", m.Current().ZoneID)
	_, getErr := st.Get(ctx, store.KeySettings)
	assert.ErrorIs(t, getErr, store.ErrNotFound)
}

func TestManagerNotifiesListenersInOrder(t *testing.T) {
	ctx := context.Background()
	m := NewManager(store.NewMemory(), Settings{ZoneID: "seed"}, zerolog.Nop())

	var calls []string
	m.OnChange(func(s Settings) { calls = append(calls, "first:"+s.ZoneID) })
	m.OnChange(func(s Settings) {
		calls = append(calls, "second:"+s.ZoneID)
		// Registering from inside a listener applies to the next change only.
		if len(calls) == 2 {
			m.OnChange(func(s Settings) { calls = append(calls, "late:"+s.ZoneID) })
		}
	})

	_, err := m.Save(ctx, Settings{ZoneID: "abc", BatchSize: 5})
	require.NoError(t, err)
	require.NoError(t, m.Reset(ctx))

	assert.Equal(t, []string{
		"first:abc", "second:abc",
		"first:seed", "second:seed", "late:seed",
	}, calls)
}

func TestConnectivityCache(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	_, ok, err := LoadConnectivity(ctx, st)
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, SaveConnectivity(ctx, st, Connectivity{OK: true, CheckedAt: at, ZoneName: "example.com"}))

	c, ok, err := LoadConnectivity(ctx, st)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, c.OK)
	assert.True(t, at.Equal(c.CheckedAt))
	assert.Equal(t, "example.com", c.ZoneName)
}
