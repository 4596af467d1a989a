package archive

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/heiparta/cbase2influxdb/pkg/compression"
	"github.com/heiparta/cbase2influxdb/pkg/config"
	"github.com/heiparta/cbase2influxdb/pkg/errors"
)

var payload = []byte("time,pv_po\n2024-06-01T08:00:00Z,1830.5\n")

func TestKey(t *testing.T) {
	at := time.Date(2024, 6, 1, 23, 30, 0, 0, time.FixedZone("EEST", 3*3600))
	assert.Equal(t, "cbase/2024/06/01/run-1.csv.gz", Key("cbase/", at, "run-1", compression.Gzip))
	assert.Equal(t, "2024/06/01/run-1.csv", Key("", at, "run-1", compression.None))
}

func TestArchiver_FileBackend(t *testing.T) {
	dir := t.TempDir()
	a, err := New(context.Background(), config.ArchiveConfig{
		Enabled:     true,
		Backend:     "file",
		Path:        dir,
		Prefix:      "cbase/",
		Compression: "zstd",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, a)
	defer a.Close()

	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	key, err := a.Store(context.Background(), "abc", at, payload)
	require.NoError(t, err)
	assert.Equal(t, "cbase/2024/06/01/abc.csv.zst", key)

	stored, err := os.ReadFile(filepath.Join(dir, "cbase", "2024", "06", "01", "abc.csv.zst"))
	require.NoError(t, err)

	comp, err := compression.NewCompressor(&compression.Config{Algorithm: compression.Zstd})
	require.NoError(t, err)
	raw, err := comp.Decompress(stored)
	require.NoError(t, err)
	assert.Equal(t, payload, raw)

	leftovers, err := filepath.Glob(filepath.Join(dir, "cbase", "2024", "06", "01", ".archive-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestNew_Disabled(t *testing.T) {
	a, err := New(context.Background(), config.ArchiveConfig{Backend: "s3"}, nil)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), config.ArchiveConfig{Enabled: true, Backend: "ftp"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

type memStore struct {
	objects map[string][]byte
	meta    map[string]Metadata
	fail    error
}

func (m *memStore) Put(_ context.Context, key string, body io.Reader, meta Metadata) error {
	if m.fail != nil {
		return m.fail
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = b
	m.meta[key] = meta
	return nil
}

func (m *memStore) Location(key string) string { return "mem://" + key }
func (m *memStore) Close() error               { return nil }

func TestArchiver_Metadata(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}, meta: map[string]Metadata{}}
	a, err := NewArchiver(store, "", "none", nil)
	require.NoError(t, err)

	key, err := a.Store(context.Background(), "r1", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), payload)
	require.NoError(t, err)
	assert.Equal(t, payload, store.objects[key])
	assert.Equal(t, Metadata{ContentType: "text/csv", RunID: "r1"}, store.meta[key])

	a, err = NewArchiver(store, "", "lz4", nil)
	require.NoError(t, err)
	key, err = a.Store(context.Background(), "r2", time.Now(), payload)
	require.NoError(t, err)
	assert.Equal(t, "lz4", store.meta[key].ContentEncoding)
	assert.False(t, bytes.Equal(payload, store.objects[key]))
}

func TestArchiver_StoreFailure(t *testing.T) {
	store := &memStore{fail: errors.New(errors.ErrorTypeConnection, "bucket gone")}
	a, err := NewArchiver(store, "p/", "gzip", nil)
	require.NoError(t, err)

	_, err = a.Store(context.Background(), "r1", time.Now(), payload)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}
