package movie

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinesim/internal/db"
	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/modality"
	dommovie "github.com/kailas-cloud/cinesim/internal/domain/movie"
)

// --- Mocks ---

// mockStore implements the consumer interfaces for tests over an in-memory hash map.
type mockStore struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	calls  int // HGetAllMulti calls

	scanErr    error
	multiErr   error
	indexes    map[string]bool
	createErr  error
	createdDef *db.IndexDefinition
}

func newMockStore() *mockStore {
	return &mockStore{hashes: map[string]map[string]string{}, indexes: map[string]bool{}}
}

func (m *mockStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		m.hashes[it.Key] = it.Fields
	}
	return nil
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.hashes[key]; ok {
		return h, nil
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.multiErr != nil {
		return nil, m.multiErr
	}
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = m.hashes[k]
	}
	return out, nil
}

func (m *mockStore) Scan(_ context.Context, _ string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	keys := make([]string, 0, len(m.hashes))
	for k := range m.hashes {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *mockStore) IndexExists(_ context.Context, name string) (bool, error) {
	return m.indexes[name], nil
}

func (m *mockStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.createdDef = def
	m.indexes[def.Name] = true
	return nil
}

func newTestRepo(t *testing.T, cfg Config) (*Repo, *mockStore) {
	t.Helper()
	s := newMockStore()
	return New(s, cfg, zap.NewNop()), s
}

func testMovie(t *testing.T, title string, narrative []float32) dommovie.Movie {
	t.Helper()
	it, err := item.New("", title, []string{"Crime", "Drama"}, "A story about "+title, 1995, "https://youtu.be/x")
	if err != nil {
		t.Fatalf("item.New: %v", err)
	}
	m, err := dommovie.New(it, map[modality.Axis][]float32{
		modality.Narrative: narrative,
		modality.Visual:    {0.5, 0.5},
	}, map[modality.Axis]string{modality.Narrative: "[NARRATIVE_ARC]: heist, betrayal"})
	if err != nil {
		t.Fatalf("movie.New: %v", err)
	}
	return m
}
