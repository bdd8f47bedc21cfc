package engine

import (
	"sync"
	"time"
)

// DomainMemory remembers which engine last worked for a domain so a
// detail pass over one site pays for the race once. Entries expire
// after the TTL; expired entries are pruned lazily on writes.
type DomainMemory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]domainEntry
}

type domainEntry struct {
	engine    string
	expiresAt time.Time
}

// NewDomainMemory creates a memory with the given entry TTL.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	return &DomainMemory{ttl: ttl, entries: make(map[string]domainEntry)}
}

// Get returns the remembered engine name, or "" when unknown or expired.
func (m *DomainMemory) Get(domain string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[domain]
	if !ok {
		return ""
	}
	if time.Now().After(e.expiresAt) {
		delete(m.entries, domain)
		return ""
	}
	return e.engine
}

// Set records the engine that just succeeded for a domain.
func (m *DomainMemory) Set(domain, engine string) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for d, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, d)
		}
	}
	m.entries[domain] = domainEntry{engine: engine, expiresAt: now.Add(m.ttl)}
}

// Delete drops the memory for a domain after its engine failed.
func (m *DomainMemory) Delete(domain string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, domain)
}
