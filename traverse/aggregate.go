package traverse

import "github.com/trawlkit/trawl/models"

// Aggregate accumulates deduplicated records for one query run. The
// first record to claim an identity key wins; a later record matching
// any already-claimed key is dropped whole, so a sku-less card linking
// to an already-seen product page never produces a second record.
// Records with no derivable key are appended to the output but take no
// part in dedup accounting.
type Aggregate struct {
	records []models.Record
	index   map[string]int
}

// NewAggregate creates an empty aggregate.
func NewAggregate() *Aggregate {
	return &Aggregate{index: make(map[string]int)}
}

// Add inserts rec unless one of its identity keys is already claimed.
// Every key of a kept record is registered, duplicates register
// nothing. Reports whether the record was kept.
func (a *Aggregate) Add(rec models.Record) bool {
	keys := rec.IdentityKeys()
	for _, k := range keys {
		if _, claimed := a.index[k]; claimed {
			return false
		}
	}

	a.records = append(a.records, rec)
	pos := len(a.records) - 1
	for _, k := range keys {
		a.index[k] = pos
	}
	return true
}

// Len returns the number of records held, keyless ones included.
func (a *Aggregate) Len() int { return len(a.records) }

// Keyed returns the number of records tracked in the dedup index.
func (a *Aggregate) Keyed() int {
	seen := make(map[int]bool, len(a.index))
	for _, pos := range a.index {
		seen[pos] = true
	}
	return len(seen)
}

// Records returns the accumulated records in first-seen order. The
// returned slice is the aggregate's own backing store; callers must
// not mutate it while the aggregate is still in use.
func (a *Aggregate) Records() []models.Record { return a.records }
