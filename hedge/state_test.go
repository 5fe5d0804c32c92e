package hedge

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hedge_state.json")
	s := NewStore(path, zap.NewNop())

	ticket := int64(123456)
	until := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	st := State{
		Active:        true,
		ActiveTradeID: &ticket,
		CooldownUntil: &until,
		ProfitMax:     42.5,
		ProfitMin:     -3.25,
	}
	require.NoError(t, s.Save(st))

	got := s.Load()
	require.NotNil(t, got.ActiveTradeID)
	assert.Equal(t, ticket, *got.ActiveTradeID)
	require.NotNil(t, got.CooldownUntil)
	assert.True(t, until.Equal(*got.CooldownUntil))
	assert.True(t, got.Active)
	assert.InDelta(t, 42.5, got.ProfitMax, 1e-9)
	assert.InDelta(t, -3.25, got.ProfitMin, 1e-9)
}

func TestStore_MissingFileDefaults(t *testing.T) {
	t.Parallel()

	s := NewStore(filepath.Join(t.TempDir(), "nope.json"), zap.NewNop())
	got := s.Load()
	assert.Equal(t, DefaultState(), got)
}

func TestStore_MalformedFileDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hedge_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s := NewStore(path, zap.NewNop())
	assert.Equal(t, DefaultState(), s.Load())
}

func TestStore_SaveReplacesExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hedge_state.json")
	s := NewStore(path, zap.NewNop())

	ticket := int64(1)
	require.NoError(t, s.Save(State{Active: true, ActiveTradeID: &ticket}))
	require.NoError(t, s.Save(DefaultState()))

	got := s.Load()
	assert.False(t, got.Active)
	assert.Nil(t, got.ActiveTradeID)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
