package character

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/aveline-ai/companiond/internal/ambient"
)

// TrackEntry is one ambient catalog row.
type TrackEntry struct {
	File        string `yaml:"file"`
	Description string `yaml:"description"`
}

type catalogPayload struct {
	Tracks map[string]TrackEntry `yaml:"tracks"`
}

// Catalog is the read-only sound-key to track mapping shared with the mixer.
type Catalog struct {
	baseDir string
	tracks  map[string]TrackEntry
}

// LoadCatalog executes the loadCatalog function. Track file paths resolve
// relative to the catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read track catalog: %w", err)
	}
	var payload catalogPayload
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse track catalog: %w", err)
	}
	return &Catalog{
		baseDir: filepath.Dir(path),
		tracks:  payload.Tracks,
	}, nil
}

// Lookup resolves a sound key to a playable track.
func (c *Catalog) Lookup(key string) (ambient.Track, bool) {
	entry, ok := c.tracks[key]
	if !ok {
		return ambient.Track{}, false
	}
	path := entry.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.baseDir, path)
	}
	return ambient.Track{Key: key, Path: path, Description: entry.Description}, true
}

// Keys returns every known sound key, sorted.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.tracks))
	for key := range c.tracks {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Tracks returns every catalog entry, sorted by key.
func (c *Catalog) Tracks() []ambient.Track {
	tracks := make([]ambient.Track, 0, len(c.tracks))
	for _, key := range c.Keys() {
		track, _ := c.Lookup(key)
		tracks = append(tracks, track)
	}
	return tracks
}
