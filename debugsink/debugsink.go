// Package debugsink writes anomaly artifacts (page markup, screenshots,
// structured diagnostics) for post-mortem inspection. A sink write is
// diagnostic output about a page that already went wrong, so every
// failure here is logged and swallowed rather than propagated.
package debugsink

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/trawlkit/trawl/config"
	"github.com/trawlkit/trawl/normalize"
)

// Sink writes artifacts under one per-run directory. Files are keyed
// <query>_p<page>_<timestamp> so repeated dumps for the same page never
// overwrite each other.
type Sink struct {
	dir     string
	enabled bool
}

// New creates a sink rooted at <cfg.Dir>/<runID>. The directory is
// created on first write, not here, so a clean run leaves no empty
// debug directories behind.
func New(cfg config.DebugConfig, runID string) *Sink {
	return &Sink{
		dir:     filepath.Join(cfg.Dir, runID),
		enabled: cfg.Enabled,
	}
}

// Dir returns the directory artifacts are written to.
func (s *Sink) Dir() string { return s.dir }

// WriteMarkup dumps the raw rendered HTML of an anomalous page.
func (s *Sink) WriteMarkup(query string, page int, markup string) {
	s.write(query, page, ".html", []byte(markup))
}

// WriteScreenshot dumps a PNG capture of an anomalous page.
func (s *Sink) WriteScreenshot(query string, page int, png []byte) {
	s.write(query, page, ".png", png)
}

// WriteDiag dumps a structured diagnostic payload as indented JSON.
func (s *Sink) WriteDiag(query string, page int, payload any) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		slog.Warn("debug sink: diagnostic payload did not marshal",
			"query", query,
			"page", page,
			"error", err,
		)
		return
	}
	s.write(query, page, ".json", data)
}

func (s *Sink) write(query string, page int, ext string, data []byte) {
	if s == nil || !s.enabled {
		return
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		slog.Warn("debug sink: create artifact directory",
			"dir", s.dir,
			"error", err,
		)
		return
	}

	stamp := time.Now().Format("20060102-150405.000")
	name := fmt.Sprintf("%s_p%d_%s%s", normalize.Slug(query), page, stamp, ext)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		slog.Warn("debug sink: write artifact",
			"path", path,
			"error", err,
		)
		return
	}

	slog.Debug("debug sink: wrote artifact",
		"path", path,
		"bytes", len(data),
	)
}
