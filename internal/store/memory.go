package store

import (
	"context"
	"slices"
	"sync"

	"github.com/civmodel/civkernel/internal/game"
)

type memoryEntry struct {
	info Info
	data []byte
}

// Memory keeps snapshots in process memory.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	seq     map[string]int
	next    int
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		seq:     make(map[string]int),
	}
}

func (m *Memory) Save(_ context.Context, s *game.Snapshot) (Info, error) {
	info, data, err := encode(s)
	if err != nil {
		return Info{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[info.ID] = memoryEntry{info: info, data: data}
	m.seq[info.ID] = m.next
	m.next++
	return info, nil
}

func (m *Memory) Load(_ context.Context, id string) (*game.Snapshot, error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}
	return decode(id, e.info.Checksum, e.data)
}

func (m *Memory) List(_ context.Context, gameID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Info
	for _, e := range m.entries {
		if e.info.GameID == gameID {
			out = append(out, e.info)
		}
	}
	slices.SortFunc(out, func(a, b Info) int {
		if a.SubTurn != b.SubTurn {
			return a.SubTurn - b.SubTurn
		}
		return m.seq[a.ID] - m.seq[b.ID]
	})
	return out, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return notFound(id)
	}
	delete(m.entries, id)
	delete(m.seq, id)
	return nil
}

func (m *Memory) Close() error { return nil }
