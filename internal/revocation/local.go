package revocation

import (
	"sync"
	"time"
)

// localStore is the in-process fallback: revoked id -> expiry.
type localStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

func newLocalStore() *localStore {
	return &localStore{entries: make(map[string]time.Time)}
}

func (l *localStore) put(id string, expiresAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.entries[id]; ok && cur.After(expiresAt) {
		return
	}
	l.entries[id] = expiresAt
}

// revoked reports whether id is revoked at now, dropping it if it has expired.
func (l *localStore) revoked(id string, now time.Time) bool {
	l.mu.RLock()
	expiresAt, ok := l.entries[id]
	l.mu.RUnlock()
	if !ok {
		return false
	}
	if now.Before(expiresAt) {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// Re-check: a concurrent put may have extended the entry.
	cur, ok := l.entries[id]
	if !ok {
		return false
	}
	if now.Before(cur) {
		return true
	}
	delete(l.entries, id)
	return false
}

// purge removes every entry expired at now and returns how many were removed.
func (l *localStore) purge(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, expiresAt := range l.entries {
		if !now.Before(expiresAt) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

func (l *localStore) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
