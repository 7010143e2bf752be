package fetch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const manifestName = "manifest.json"

type Entry struct {
	URL          string
	Filename     string
	Size         int64
	DownloadedAt string
}

// Manifest lists every file fetched into a cache directory, keyed by URL.
type Manifest struct {
	Files map[string]Entry
}

func LoadManifest(dir string) (*Manifest, error) {
	var manifest Manifest
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("unexpected error reading download manifest: %w", err)
	}

	if err == nil {
		if err := json.Unmarshal(data, &manifest); err != nil {
			return nil, fmt.Errorf("unexpected error parsing download manifest: %w", err)
		}
	}
	if manifest.Files == nil {
		manifest.Files = make(map[string]Entry)
	}

	return &manifest, nil
}

func (m *Manifest) Save(dir string) error {
	data, err := json.MarshalIndent(m, "", " ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest for updating: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), data, 0644); err != nil {
		return fmt.Errorf("failed to write updated manifest: %w", err)
	}
	return nil
}
