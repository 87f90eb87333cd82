package store

import (
	"context"
	"sync"
	"sync/atomic"

	"trpc.group/trpc-go/grape-engine/grapeerr"
)

// MemClient is an in-memory Client, grounded on the teacher's
// session/inmemory service: a mutex-guarded map plus a name→id
// indirection table. DelData of an absent id reports
// grapeerr.NotFound.
type MemClient struct {
	mu     sync.RWMutex
	nextID atomic.Int64
	blobs  map[int64][]byte
	names  map[string]int64
}

// NewMemClient creates an empty in-memory store.
func NewMemClient() *MemClient {
	return &MemClient{
		blobs: make(map[int64][]byte),
		names: make(map[string]int64),
	}
}

// Put implements Client.
func (m *MemClient) Put(_ context.Context, blob []byte) (int64, error) {
	id := m.nextID.Add(1)
	cp := make([]byte, len(blob))
	copy(cp, blob)

	m.mu.Lock()
	m.blobs[id] = cp
	m.mu.Unlock()
	return id, nil
}

// Get implements Client.
func (m *MemClient) Get(_ context.Context, id int64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[id]
	if !ok {
		return nil, grapeerr.New(grapeerr.StoreError, "object %d not found", id)
	}
	return blob, nil
}

// PutName implements Client.
func (m *MemClient) PutName(_ context.Context, name string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[name] = id
	return nil
}

// GetName implements Client.
func (m *MemClient) GetName(_ context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.names[name]
	if !ok {
		return 0, grapeerr.New(grapeerr.StoreError, "name %q not found", name)
	}
	return id, nil
}

// DelData implements Client.
func (m *MemClient) DelData(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[id]; !ok {
		return grapeerr.New(grapeerr.NotFound, "object %d not found", id)
	}
	delete(m.blobs, id)
	for name, boundID := range m.names {
		if boundID == id {
			delete(m.names, name)
		}
	}
	return nil
}

// ConstructFragmentGroup implements Client by persisting the member id
// list as the group's own blob and binding name to it.
func (m *MemClient) ConstructFragmentGroup(ctx context.Context, name string, memberIDs []int64) (int64, error) {
	payload := make([]byte, 0, 8*len(memberIDs))
	for _, id := range memberIDs {
		payload = append(payload, encodeInt64(id)...)
	}
	groupID, err := m.Put(ctx, payload)
	if err != nil {
		return 0, grapeerr.Wrap(grapeerr.StoreError, err, "construct fragment group %q", name)
	}
	if err := m.PutName(ctx, name, groupID); err != nil {
		return 0, grapeerr.Wrap(grapeerr.StoreError, err, "bind fragment group name %q", name)
	}
	return groupID, nil
}

func encodeInt64(v int64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}
