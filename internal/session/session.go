// Package session hosts one interactive similarity session: the search dropdown,
// the weights and the ranked list of a single user.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinesim/internal/domain"
	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/modality"
	"github.com/kailas-cloud/cinesim/internal/domain/suggest"
	"github.com/kailas-cloud/cinesim/internal/domain/weights"
)

// ErrClosed is returned for events sent to a closed session.
var ErrClosed = errors.New("session closed")

// EventType names a UI event.
type EventType string

// UI events.
const (
	EventQuery   EventType = "query" // Text
	EventKey     EventType = "key"   // Key
	EventFocus   EventType = "focus"
	EventBlur    EventType = "blur"
	EventClear   EventType = "clear"
	EventSelect  EventType = "select"  // ItemID
	EventAdjust  EventType = "adjust"  // Axis, Value
	EventWeights EventType = "weights" // Weights
	EventReset   EventType = "reset"
)

// Event is one UI event.
type Event struct {
	Type    EventType
	Text    string
	Key     suggest.Key
	ItemID  string
	Axis    modality.Axis
	Value   float64
	Weights weights.Vector
}

// Config tunes a session.
type Config struct {
	Search   SearchConfig
	PageSize int
}

// Deps are the collaborators of a session.
type Deps struct {
	Local      LocalMatcher
	Search     SearchBackend
	Similarity SimilarityBackend
	Corpus     []item.Item
}

// Snapshot is the full renderable state.
type Snapshot struct {
	ID         string
	Search     SearchSnapshot
	Similarity SimilaritySnapshot
}

// Session routes UI events to its controllers and signals state changes on Updates.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	search     *SearchController
	similarity *SimilarityController
	byID       map[string]item.Item

	updates chan struct{}

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a session. Close must be called to stop in-flight lookups.
func New(id string, deps Deps, cfg Config, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:      id,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With(zap.String("session_id", id)),
		byID:    make(map[string]item.Item, len(deps.Corpus)),
		updates: make(chan struct{}, 1),
	}
	for _, it := range deps.Corpus {
		s.byID[it.ID()] = it
	}

	s.similarity = NewSimilarityController(deps.Similarity, cfg.PageSize, s.logger,
		WithSimilaritySpawner(s.spawn),
		OnSimilarityChange(s.notify),
	)
	s.search = NewSearchController(deps.Local, deps.Search, cfg.Search, s.logger,
		WithSpawner(s.spawn),
		OnSelect(func(it item.Item) { s.similarity.SetReference(s.ctx, it) }),
		OnClear(s.similarity.Clear),
		OnSearchChange(s.notify),
	)
	s.search.SetCorpus(deps.Corpus)
	s.similarity.SetCorpus(deps.Corpus)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Updates signals that the snapshot changed. Signals coalesce.
func (s *Session) Updates() <-chan struct{} { return s.updates }

// Handle applies one UI event.
func (s *Session) Handle(ev Event) error {
	if s.ctx.Err() != nil {
		return ErrClosed
	}

	switch ev.Type {
	case EventQuery:
		s.search.DispatchQuery(s.ctx, ev.Text)
	case EventKey:
		switch ev.Key {
		case suggest.KeyDown, suggest.KeyUp, suggest.KeyEnter, suggest.KeyEscape:
			s.search.Navigate(ev.Key)
		default:
			return fmt.Errorf("%w: unknown key %q", domain.ErrInvalidQuery, ev.Key)
		}
	case EventFocus:
		s.search.Focus()
	case EventBlur:
		s.search.Blur()
	case EventClear:
		s.search.Clear()
	case EventSelect:
		it, ok := s.resolve(ev.ItemID)
		if !ok {
			return fmt.Errorf("item %q: %w", ev.ItemID, domain.ErrNotFound)
		}
		s.search.Select(it)
	case EventAdjust:
		if _, err := modality.Parse(string(ev.Axis)); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
		}
		if _, err := s.similarity.Adjust(s.ctx, ev.Axis, ev.Value); err != nil {
			return err //nolint:wrapcheck // sentinel-carrying domain error
		}
	case EventWeights:
		if _, err := s.similarity.SetWeights(s.ctx, ev.Weights); err != nil {
			return err //nolint:wrapcheck // sentinel-carrying domain error
		}
	case EventReset:
		if _, err := s.similarity.Reset(s.ctx); err != nil {
			return err //nolint:wrapcheck // sentinel-carrying domain error
		}
	default:
		return fmt.Errorf("%w: unknown event %q", domain.ErrInvalidQuery, ev.Type)
	}
	return nil
}

// resolve finds an item among the shown suggestions, then the corpus.
func (s *Session) resolve(id string) (item.Item, bool) {
	for _, it := range s.search.Snapshot().Items {
		if it.ID() == id {
			return it, true
		}
	}
	it, ok := s.byID[id]
	return it, ok
}

// Snapshot returns the current state of both controllers.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:         s.id,
		Search:     s.search.Snapshot(),
		Similarity: s.similarity.Snapshot(),
	}
}

// Close cancels in-flight lookups and waits for them to return.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Session) spawn(task func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		task()
	}()
}

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
