package presence

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	count         int64
	lastHeartbeat time.Time
	leaseUntil    time.Time
	isStaff       bool
}

// Memory — in-memory реализация Store с теми же lease-семантиками.
// Используется в dev-режиме без Redis и в тестах (часы подменяемые).
type Memory struct {
	mu       sync.Mutex
	records  map[string]*memoryRecord
	sets     map[string]map[string]struct{} // online_staff / online_users
	leaseTTL time.Duration
	offline  time.Duration

	Now func() time.Time
}

func NewMemory(leaseTTL, offlineTTL time.Duration) *Memory {
	if leaseTTL <= 0 {
		leaseTTL = 30 * time.Second
	}
	if offlineTTL <= 0 {
		offlineTTL = 60 * time.Second
	}
	return &Memory{
		records: make(map[string]*memoryRecord),
		sets: map[string]map[string]struct{}{
			"online_staff": {},
			"online_users": {},
		},
		leaseTTL: leaseTTL,
		offline:  offlineTTL,
		Now:      time.Now,
	}
}

// live возвращает запись, если её lease ещё не истёк; истёкшую — чистит.
func (m *Memory) live(userID string) *memoryRecord {
	rec, ok := m.records[userID]
	if !ok {
		return nil
	}
	if m.Now().After(rec.leaseUntil) {
		delete(m.records, userID)
		delete(m.sets[onlineSetName(rec.isStaff)], userID)
		return nil
	}
	return rec
}

func (m *Memory) Increment(_ context.Context, userID string, isStaff bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	rec := m.live(userID)
	if rec == nil {
		rec = &memoryRecord{isStaff: isStaff}
		m.records[userID] = rec
	}
	rec.count++
	rec.lastHeartbeat = now
	rec.leaseUntil = now.Add(m.leaseTTL)
	if rec.count == 1 {
		m.sets[onlineSetName(isStaff)][userID] = struct{}{}
	}
	return rec.count, nil
}

func (m *Memory) Decrement(_ context.Context, userID string, isStaff bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	rec := m.live(userID)
	if rec == nil || rec.count <= 1 {
		delete(m.records, userID)
		delete(m.sets[onlineSetName(isStaff)], userID)
		return 0, nil
	}
	rec.count--
	rec.leaseUntil = now.Add(m.leaseTTL)
	return rec.count, nil
}

func (m *Memory) Heartbeat(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.live(userID)
	if rec == nil || rec.count == 0 {
		// запись истекла — тихий no-op
		return nil
	}
	now := m.Now()
	rec.lastHeartbeat = now
	rec.leaseUntil = now.Add(m.leaseTTL)
	return nil
}

func (m *Memory) IsOnline(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.live(userID)
	return rec != nil && rec.count > 0, nil
}

func (m *Memory) ListOnline(_ context.Context, staff bool) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.sets[onlineSetName(staff)]
	out := make([]string, 0, len(set))
	for id := range set {
		if rec := m.live(id); rec != nil && rec.count > 0 {
			out = append(out, id)
		} else {
			delete(set, id)
		}
	}
	return out, nil
}

func (m *Memory) Status(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec := m.live(userID); rec != nil && rec.count > 0 {
		return StatusOnline, nil
	}
	return StatusOffline, nil
}
