package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trawlkit/trawl/models"
)

// Tracker holds the live run snapshot served by GET /api/v1/status.
// The run loop writes it, the API reads it; both sides see a copy.
type Tracker struct {
	mu  sync.Mutex
	cur models.RunStatus
}

// NewTracker creates an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{cur: models.RunStatus{State: "idle"}}
}

// StartRun marks a profile run as active.
func (t *Tracker) StartRun(source string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur = models.RunStatus{
		State:     "running",
		Source:    source,
		StartedAt: time.Now().UTC(),
	}
}

// Progress records the traversal position within the active run.
func (t *Tracker) Progress(query string, page, records int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.Query = query
	t.cur.Page = page
	t.cur.Records = records
}

// Publishing marks the active run as writing its output.
func (t *Tracker) Publishing() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.State = "publishing"
}

// Idle resets the tracker between runs.
func (t *Tracker) Idle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur = models.RunStatus{State: "idle"}
}

// Snapshot returns the current status by value.
func (t *Tracker) Snapshot() models.RunStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur
}

// Status returns a handler for GET /api/v1/status.
func Status(tracker *Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, tracker.Snapshot())
	}
}
