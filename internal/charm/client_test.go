// ABOUTME: Tests for snapshot push/pull over an in-memory KV store
// ABOUTME: The store mimics charm KV's missing-key error
package charm

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/harper/ragcore/internal/models"
)

type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	syncs  int
	closed bool
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (m *memStore) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Get(key []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, errors.New("Key not found")
	}
	return v, nil
}

func (m *memStore) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *memStore) Keys() ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys [][]byte
	for k := range m.data {
		keys = append(keys, []byte(k))
	}
	return keys, nil
}

func (m *memStore) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs++
	return nil
}

func (m *memStore) Close() error {
	m.closed = true
	return nil
}

func TestPushPullSnapshot(t *testing.T) {
	store := newMemStore()
	c := NewWithStore(store, Config{DBName: "test", AutoSync: true})

	data := []byte(`{"config":{"vector_dimension":3},"vectors":[]}`)
	info, err := c.PushSnapshot("work", data)
	if err != nil {
		t.Fatalf("PushSnapshot() error = %v", err)
	}
	if info.Size != len(data) || len(info.SHA256) != 64 {
		t.Errorf("info = %+v", info)
	}
	if _, ok := store.data["kb:work"]; !ok {
		t.Error("snapshot key kb:work not written")
	}
	if store.syncs != 1 {
		t.Errorf("syncs = %d, want 1 with AutoSync", store.syncs)
	}

	got, err := c.PullSnapshot("work")
	if err != nil {
		t.Fatalf("PullSnapshot() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("PullSnapshot() = %s", got)
	}
}

func TestPullSnapshotErrors(t *testing.T) {
	store := newMemStore()
	c := NewWithStore(store, Config{DBName: "test"})

	if _, err := c.PullSnapshot("missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing snapshot error = %v", err)
	}
	if _, err := c.PullSnapshot("bad:name"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("bad name error = %v", err)
	}

	if _, err := c.PushSnapshot("work", []byte("original")); err != nil {
		t.Fatal(err)
	}
	store.data["kb:work"] = []byte("tampered")
	if _, err := c.PullSnapshot("work"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("checksum mismatch error = %v", err)
	}
	if _, err := c.PushSnapshot("empty", nil); !errors.Is(err, models.ErrValidation) {
		t.Errorf("empty push error = %v", err)
	}
}

func TestListAndDeleteSnapshots(t *testing.T) {
	c := NewWithStore(newMemStore(), Config{DBName: "test"})

	for _, name := range []string{"zeta", "alpha"} {
		if _, err := c.PushSnapshot(name, []byte("data-"+name)); err != nil {
			t.Fatal(err)
		}
	}
	list, err := c.ListSnapshots()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "alpha" || list[1].Name != "zeta" {
		t.Errorf("ListSnapshots() = %+v", list)
	}

	if err := c.DeleteSnapshot("alpha"); err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteSnapshot("alpha"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete error = %v", err)
	}
	list, _ = c.ListSnapshots()
	if len(list) != 1 {
		t.Errorf("ListSnapshots() after delete = %+v", list)
	}
}

func TestClosedClient(t *testing.T) {
	store := newMemStore()
	c := NewWithStore(store, Config{DBName: "test"})
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if !store.closed {
		t.Error("store not closed")
	}
	if _, err := c.PushSnapshot("x", []byte("y")); !errors.Is(err, models.ErrState) {
		t.Errorf("push after close error = %v", err)
	}
}
