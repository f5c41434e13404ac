package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"habitat/internal/model"
)

type memoryEntry struct {
	payload []byte
	updated time.Time
}

// MemorySnapshotStore keeps snapshots in process memory. Payloads are
// encoded on save so later changes to the caller's slice do not leak in.
type MemorySnapshotStore struct {
	mu    sync.Mutex
	holes map[string]memoryEntry
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{holes: make(map[string]memoryEntry)}
}

func (m *MemorySnapshotStore) Save(ctx context.Context, key string, nodes []model.Node) error {
	if key == "" {
		return ErrEmptyKey
	}
	payload, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holes[key] = memoryEntry{payload: payload, updated: time.Now()}
	return nil
}

func (m *MemorySnapshotStore) Load(ctx context.Context, key string) ([]model.Node, bool, error) {
	m.mu.Lock()
	e, ok := m.holes[key]
	m.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	var nodes []model.Node
	if err := json.Unmarshal(e.payload, &nodes); err != nil || len(nodes) == 0 {
		return nil, false, nil
	}
	return nodes, true, nil
}

func (m *MemorySnapshotStore) List(ctx context.Context) ([]model.HoleInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.HoleInfo, 0, len(m.holes))
	for k, e := range m.holes {
		var nodes []model.Node
		_ = json.Unmarshal(e.payload, &nodes)
		out = append(out, model.HoleInfo{Key: k, NodeCount: len(nodes), Checksum: checksum(e.payload), Updated: e.updated})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Updated.Equal(out[j].Updated) {
			return out[i].Updated.After(out[j].Updated)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (m *MemorySnapshotStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holes, key)
	return nil
}
