package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/trawlkit/trawl/models"
)

// Catalogue is the read/write view over a data directory holding one
// file store per profile. Each profile keeps its own dataset and
// summary so the publish guard's baseline is per source; the catalogue
// reads across all of them for the status API and the MCP server.
type Catalogue struct {
	root string
}

// NewCatalogue creates a catalogue rooted at the data directory.
func NewCatalogue(root string) *Catalogue {
	return &Catalogue{root: root}
}

// ProfileStore returns the file store for one profile.
func (c *Catalogue) ProfileStore(name string) *FileStore {
	return NewFileStore(filepath.Join(c.root, name))
}

// ReadSummary returns the most recently published run summary across
// all profiles, by summary timestamp.
func (c *Catalogue) ReadSummary(ctx context.Context) (models.RunSummary, error) {
	var (
		latest models.RunSummary
		found  bool
	)
	for _, dir := range c.profileDirs() {
		sum, err := NewFileStore(dir).ReadSummary(ctx)
		if err != nil {
			continue
		}
		if !found || sum.Timestamp.After(latest.Timestamp) {
			latest = sum
			found = true
		}
	}
	if !found {
		return latest, models.NewScrapeError(models.ErrCodeStore, "no run summary under "+c.root, nil)
	}
	return latest, nil
}

// ReadDataset concatenates the published datasets of every profile,
// in directory order.
func (c *Catalogue) ReadDataset(ctx context.Context) ([]models.Record, error) {
	var all []models.Record
	read := false
	for _, dir := range c.profileDirs() {
		recs, err := NewFileStore(dir).ReadDataset(ctx)
		if err != nil {
			continue
		}
		all = append(all, recs...)
		read = true
	}
	if !read {
		return nil, models.NewScrapeError(models.ErrCodeStore, "no dataset under "+c.root, nil)
	}
	return all, nil
}

func (c *Catalogue) profileDirs() []string {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(c.root, e.Name()))
		}
	}
	return dirs
}
