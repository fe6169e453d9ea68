package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/bobarin/auctioneer/internal/models"
)

// Memory is the in-process ledger used when no Redis is configured.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	entry   models.LedgerEntry
	expires time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Record(ctx context.Context, jobID string, mode models.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)
	m.entries[jobID] = &memoryEntry{
		entry: models.LedgerEntry{
			JobID:       jobID,
			Mode:        mode,
			SubmittedAt: now,
		},
		expires: now.Add(m.ttl),
	}
	return nil
}

func (m *Memory) Observe(ctx context.Context, jobID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[jobID]
	if !ok || now.After(e.expires) {
		delete(m.entries, jobID)
		return ErrNotFound
	}

	e.entry.Polls++
	e.entry.LastStatus = status
	e.entry.CheckedAt = &now
	e.expires = now.Add(m.ttl)
	return nil
}

func (m *Memory) Get(ctx context.Context, jobID string) (*models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[jobID]
	if !ok || m.now().After(e.expires) {
		return nil, ErrNotFound
	}

	out := e.entry
	if e.entry.CheckedAt != nil {
		t := *e.entry.CheckedAt
		out.CheckedAt = &t
	}
	return &out, nil
}

func (m *Memory) Close() error { return nil }

// sweep drops expired entries; callers hold mu.
func (m *Memory) sweep(now time.Time) {
	for id, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, id)
		}
	}
}
