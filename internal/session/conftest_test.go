package session

import (
	"context"
	"strings"
	"sync"

	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/weights"
	"github.com/kailas-cloud/cinesim/internal/usecase/similar"
)

// --- Mocks ---

// taskQueue captures spawned lookups so tests decide when (and in which order) they complete.
type taskQueue struct {
	mu    sync.Mutex
	tasks []func()
}

func (q *taskQueue) spawn(task func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *taskQueue) run(i int) {
	q.mu.Lock()
	task := q.tasks[i]
	q.mu.Unlock()
	task()
}

// containsMatcher matches titles containing the query, ignoring case.
type containsMatcher struct{}

func (containsMatcher) Match(query string, corpus []item.Item) []item.Item {
	q := strings.ToLower(query)
	out := []item.Item{}
	for _, it := range corpus {
		if strings.Contains(strings.ToLower(it.Title()), q) {
			out = append(out, it)
		}
	}
	return out
}

type stubSearch struct {
	mu      sync.Mutex
	results map[string][]item.Item
	err     error
	queries []string
}

func (s *stubSearch) Search(_ context.Context, query string) ([]item.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.results[query], nil
}

type stubSimilarity struct {
	mu    sync.Mutex
	cands map[string][]similar.Candidate // by reference id
	err   error
	calls int
}

func (s *stubSimilarity) Breakdown(_ context.Context, ref item.Item, _ weights.Vector) ([]similar.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.cands[ref.ID()], nil
}

func mkItem(id, title string) item.Item {
	return item.Reconstruct(id, title, nil, "", 0, "")
}

func testCorpus() []item.Item {
	return []item.Item{
		mkItem("heat", "Heat"),
		mkItem("heathers", "Heathers"),
		mkItem("ronin", "Ronin"),
		mkItem("up", "Up"),
	}
}

func titlesOf(items []item.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title()
	}
	return out
}
