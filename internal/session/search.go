package session

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinesim/internal/domain"
	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/suggest"
	"github.com/kailas-cloud/cinesim/internal/metrics"
)

// DefaultMaxSuggestions caps every displayed result set.
const DefaultMaxSuggestions = 10

// SearchConfig tunes the search controller.
type SearchConfig struct {
	MinQueryLength int
	MaxResults     int
}

// SearchSnapshot is the renderable dropdown state.
type SearchSnapshot struct {
	Text       string
	Generation uint64
	Source     suggest.Source
	Items      []item.Item
	Open       bool
	Focused    bool
	Highlight  int
}

// SearchController reconciles synchronous local matches with async remote lookups.
// Every qualifying keystroke mints a generation; a response is applied only while its
// generation is current, and within one generation remote results replace local ones.
type SearchController struct {
	local  LocalMatcher
	remote SearchBackend
	cfg    SearchConfig
	spawn  Spawner
	logger *zap.Logger

	onSelect func(item.Item)
	onClear  func()
	onChange func()

	mu         sync.Mutex
	text       string
	generation uint64
	results    suggest.ResultSet
	open       bool
	focused    bool
	nav        suggest.Nav
	corpus     []item.Item
}

// SearchOption configures a SearchController.
type SearchOption func(*SearchController)

// WithSpawner overrides how remote lookups are started.
func WithSpawner(s Spawner) SearchOption {
	return func(c *SearchController) { c.spawn = s }
}

// OnSelect registers the selection callback.
func OnSelect(f func(item.Item)) SearchOption {
	return func(c *SearchController) { c.onSelect = f }
}

// OnClear registers the reset callback.
func OnClear(f func()) SearchOption {
	return func(c *SearchController) { c.onClear = f }
}

// OnSearchChange registers a callback fired after every visible state change.
func OnSearchChange(f func()) SearchOption {
	return func(c *SearchController) { c.onChange = f }
}

// NewSearchController creates a controller in the Idle state.
func NewSearchController(
	local LocalMatcher, remote SearchBackend, cfg SearchConfig, logger *zap.Logger, opts ...SearchOption,
) *SearchController {
	if cfg.MinQueryLength <= 0 {
		cfg.MinQueryLength = suggest.MinQueryLength
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxSuggestions
	}
	c := &SearchController{
		local:   local,
		remote:  remote,
		cfg:     cfg,
		spawn:   goSpawn,
		logger:  logger,
		nav:     suggest.NewNav(),
		results: suggest.ResultSet{Source: suggest.Local, Items: []item.Item{}},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetCorpus replaces the items the local matcher scans.
func (c *SearchController) SetCorpus(items []item.Item) {
	c.mu.Lock()
	c.corpus = slices.Clone(items)
	c.mu.Unlock()
}

// DispatchQuery handles a text edit and returns the generation it minted.
// Short text returns to Idle. Otherwise local matches are shown at once and a
// remote lookup is started for the same generation.
func (c *SearchController) DispatchQuery(ctx context.Context, text string) uint64 {
	c.mu.Lock()
	c.text = text
	c.generation++
	gen := c.generation
	c.nav = suggest.NewNav()

	if !suggest.Qualifies(text, c.cfg.MinQueryLength) {
		c.results = suggest.ResultSet{Generation: gen, Source: suggest.Local, Items: []item.Item{}}
		c.open = false
		c.mu.Unlock()
		c.changed()
		return gen
	}

	local := c.capped(c.local.Match(text, c.corpus))
	c.results = suggest.ResultSet{Generation: gen, Source: suggest.Local, Items: local}
	c.open = true
	c.focused = true
	c.mu.Unlock()

	metrics.ResultSetsAppliedTotal.WithLabelValues(string(suggest.Local)).Inc()
	c.changed()

	if c.remote != nil {
		c.spawn(func() { c.lookup(ctx, gen, text) })
	}
	return gen
}

func (c *SearchController) lookup(ctx context.Context, gen uint64, text string) {
	items, err := c.remote.Search(ctx, text)
	if err != nil {
		metrics.RemoteFailuresTotal.WithLabelValues("search").Inc()
		c.logger.Debug("Remote search failed, keeping local results",
			zap.Uint64("generation", gen), zap.Error(err))
		return
	}
	c.ApplyResponse(suggest.ResultSet{Generation: gen, Source: suggest.Remote, Items: items})
}

// ApplyResponse applies a result set if it supersedes the shown one.
// Stale sets and empty remote sets (local fallback) are dropped.
func (c *SearchController) ApplyResponse(set suggest.ResultSet) bool {
	c.mu.Lock()
	if set.Generation < c.generation {
		cur := c.generation
		c.mu.Unlock()
		metrics.StaleResponsesTotal.WithLabelValues("search").Inc()
		c.logger.Debug("Dropping search response", zap.Error(domain.NewStaleResponse(set.Generation, cur)))
		return false
	}
	if !suggest.Qualifies(c.text, c.cfg.MinQueryLength) ||
		(set.Source == suggest.Remote && len(set.Items) == 0) ||
		!set.Supersedes(c.results) {
		c.mu.Unlock()
		return false
	}

	set.Items = c.capped(set.Items)
	c.results = set
	c.nav = suggest.NewNav()
	c.mu.Unlock()

	metrics.ResultSetsAppliedTotal.WithLabelValues(string(set.Source)).Inc()
	c.changed()
	return true
}

// Navigate handles a navigation key. Enter returns the selected item.
// Keys are ignored while the dropdown is closed.
func (c *SearchController) Navigate(key suggest.Key) (item.Item, bool) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return item.Item{}, false
	}

	switch key {
	case suggest.KeyDown:
		c.nav = c.nav.Down(len(c.results.Items))
	case suggest.KeyUp:
		c.nav = c.nav.Up()
	case suggest.KeyEscape:
		c.open = false
		c.focused = false
		c.nav = suggest.NewNav()
	case suggest.KeyEnter:
		idx, ok := c.nav.Pick(len(c.results.Items))
		if !ok {
			c.mu.Unlock()
			return item.Item{}, false
		}
		selected := c.results.Items[idx]
		c.mu.Unlock()
		c.Select(selected)
		return selected, true
	default:
		c.mu.Unlock()
		return item.Item{}, false
	}
	c.mu.Unlock()
	c.changed()
	return item.Item{}, false
}

// Select picks an item: the input shows its title (no new lookup), the dropdown
// closes, in-flight lookups for the typed text go stale and the selection callback fires.
func (c *SearchController) Select(it item.Item) {
	c.mu.Lock()
	c.text = it.Title()
	c.generation++
	c.open = false
	c.nav = suggest.NewNav()
	c.mu.Unlock()

	if c.onSelect != nil {
		c.onSelect(it)
	}
	c.changed()
}

// Focus reopens the dropdown when the text qualifies.
func (c *SearchController) Focus() {
	c.mu.Lock()
	c.focused = true
	if suggest.Qualifies(c.text, c.cfg.MinQueryLength) {
		c.open = true
	}
	c.mu.Unlock()
	c.changed()
}

// Blur closes the dropdown (click outside).
func (c *SearchController) Blur() {
	c.mu.Lock()
	c.focused = false
	c.open = false
	c.mu.Unlock()
	c.changed()
}

// Clear empties the input and results, invalidates in-flight lookups and fires the reset callback.
func (c *SearchController) Clear() {
	c.mu.Lock()
	c.text = ""
	c.generation++
	c.results = suggest.ResultSet{Generation: c.generation, Source: suggest.Local, Items: []item.Item{}}
	c.open = false
	c.focused = true
	c.nav = suggest.NewNav()
	c.mu.Unlock()

	if c.onClear != nil {
		c.onClear()
	}
	c.changed()
}

// Generation returns the current generation.
func (c *SearchController) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Snapshot returns a copy of the visible state.
func (c *SearchController) Snapshot() SearchSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return SearchSnapshot{
		Text:       c.text,
		Generation: c.generation,
		Source:     c.results.Source,
		Items:      slices.Clone(c.results.Items),
		Open:       c.open,
		Focused:    c.focused,
		Highlight:  c.nav.Index(),
	}
}

func (c *SearchController) capped(items []item.Item) []item.Item {
	if len(items) > c.cfg.MaxResults {
		items = items[:c.cfg.MaxResults]
	}
	return slices.Clone(items)
}

func (c *SearchController) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
