package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var ErrDownloadStatus = errors.New("unexpected http status")

// Result describes a completed or skipped download.
type Result struct {
	URL     string
	Path    string
	Size    int64
	Skipped bool
}

// Downloader fetches remote files into a cache directory and records them in
// the directory's manifest.
type Downloader struct {
	Client   *http.Client
	CacheDir string
	// Progress, when set, receives a writer for each transfer given the
	// expected content length (-1 if unknown).
	Progress func(total int64, name string) io.Writer
}

func NewDownloader(cacheDir string) *Downloader {
	return &Downloader{
		Client:   &http.Client{Timeout: 10 * time.Minute},
		CacheDir: cacheDir,
	}
}

// Fetch downloads rawURL into the cache directory under Filename(rawURL),
// skipping the transfer when the file already exists.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	name, err := Filename(rawURL)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(d.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	res, err := d.Download(ctx, rawURL, filepath.Join(d.CacheDir, name))
	if err != nil {
		return nil, err
	}

	m, err := LoadManifest(d.CacheDir)
	if err != nil {
		return nil, err
	}
	if _, ok := m.Files[rawURL]; !ok || !res.Skipped {
		m.Files[rawURL] = Entry{
			URL:          rawURL,
			Filename:     name,
			Size:         res.Size,
			DownloadedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := m.Save(d.CacheDir); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// Download writes rawURL to dest. An existing dest is left untouched and
// reported as skipped. The body is streamed to a temporary file in the same
// directory and renamed into place, so dest never holds a partial file.
func (d *Downloader) Download(ctx context.Context, rawURL, dest string) (*Result, error) {
	if info, err := os.Stat(dest); err == nil {
		return &Result{URL: rawURL, Path: dest, Size: info.Size(), Skipped: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", rawURL, err)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w %s while downloading %s: %s", ErrDownloadStatus, resp.Status, rawURL, strings.TrimSpace(string(body)))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", dest, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	var w io.Writer = tmp
	if d.Progress != nil {
		if pw := d.Progress(resp.ContentLength, filepath.Base(dest)); pw != nil {
			w = io.MultiWriter(tmp, pw)
		}
	}

	written, err := io.Copy(w, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write file locally: %w", err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		return nil, fmt.Errorf("downloaded file was not the expected length: expected %d and got %d bytes", resp.ContentLength, written)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return nil, fmt.Errorf("failed to move download into place: %w", err)
	}

	return &Result{URL: rawURL, Path: dest, Size: written}, nil
}

// Filename derives a cache file name from the last path segment of rawURL.
func Filename(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		name = u.Hostname()
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '?', '*', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	return name, nil
}
