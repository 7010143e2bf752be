package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchDownloadsOnce(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("SQLite format 3\x00"))
	}))
	defer server.Close()

	dir := t.TempDir()
	d := NewDownloader(dir)

	var progress bytes.Buffer
	d.Progress = func(total int64, name string) io.Writer {
		assert.Equal(t, "chinook.db", name)
		return &progress
	}

	res, err := d.Fetch(context.Background(), server.URL+"/data/chinook.db")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, filepath.Join(dir, "chinook.db"), res.Path)
	assert.Equal(t, int64(16), res.Size)
	assert.Equal(t, "SQLite format 3\x00", progress.String())

	res, err = d.Fetch(context.Background(), server.URL+"/data/chinook.db")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	m, err := LoadManifest(dir)
	require.NoError(t, err)
	entry, ok := m.Files[server.URL+"/data/chinook.db"]
	require.True(t, ok)
	assert.Equal(t, "chinook.db", entry.Filename)
	assert.Equal(t, int64(16), entry.Size)
}

func TestDownloadBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone fishing", http.StatusNotFound)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "x.db")
	_, err := NewDownloader(t.TempDir()).Download(context.Background(), server.URL+"/x.db", dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDownloadStatus)
	assert.Contains(t, err.Error(), "404 Not Found")
	assert.Contains(t, err.Error(), "gone fishing")

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFilename(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://example.com/files/northwind.sqlite", "northwind.sqlite", false},
		{"https://example.com/", "example.com", false},
		{"https://example.com/a/b%3Fc.db", "b_c.db", false},
		{"ftp://example.com/x.db", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := Filename(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadManifestMissing(t *testing.T) {
	m, err := LoadManifest(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, m.Files)
}
