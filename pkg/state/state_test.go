package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heiparta/cbase2influxdb/pkg/errors"
)

func TestStore_LoadMissing(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state.json"))
	st, err := s.Load()
	require.NoError(t, err)
	assert.True(t, st.Watermark.IsZero())
	assert.Empty(t, st.RunID)
}

func TestStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s := NewStore(path)

	started := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	want := &RunState{
		RunID:         "5f0c",
		StartedAt:     started,
		FinishedAt:    started.Add(2 * time.Second),
		Status:        StatusSuccess,
		Rows:          48,
		PointsWritten: 48,
		Watermark:     started.Add(47 * time.Hour),
	}
	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want.RunID, got.RunID)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, 48, got.PointsWritten)
	assert.True(t, want.Watermark.Equal(got.Watermark))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"watermark": "2024-06-02T23:00:00Z"`)
	assert.NotContains(t, string(raw), `"error"`)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestStore_Overwrite(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, s.Save(&RunState{RunID: "a", Status: StatusSuccess}))
	require.NoError(t, s.Save(&RunState{RunID: "b", Status: StatusFailed, Error: "write failed"}))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "b", got.RunID)
	assert.Equal(t, "write failed", got.Error)
}

func TestStore_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewStore(path).Load()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestRunState_Advance(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	st := &RunState{Watermark: base}
	assert.Equal(t, base.Add(time.Hour), st.Advance(base.Add(time.Hour)))
	assert.Equal(t, base, st.Advance(base.Add(-time.Hour)))
	assert.Equal(t, base, st.Advance(time.Time{}))
}
