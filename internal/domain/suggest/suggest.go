// Package suggest holds the search-as-you-type value types: generation-tagged
// queries, result sets and the dropdown navigation state.
package suggest

import (
	"unicode/utf8"

	"github.com/kailas-cloud/cinesim/internal/domain/item"
)

// MinQueryLength is the shortest query (in runes) that triggers a lookup.
const MinQueryLength = 2

// Source tells where a result set came from.
type Source string

const (
	// Local is the in-process fuzzy index.
	Local Source = "local"
	// Remote is the authoritative search endpoint.
	Remote Source = "remote"
)

// Rank orders sources by authority. Remote beats local for the same generation.
func (s Source) Rank() int {
	if s == Remote {
		return 1
	}
	return 0
}

// Query is a keystroke-triggered lookup.
type Query struct {
	Text       string
	Generation uint64
}

// Qualifies reports whether text is long enough to search.
func Qualifies(text string, minLen int) bool {
	return utf8.RuneCountInString(text) >= minLen
}

// ResultSet is an ordered lookup result tagged with its generation.
type ResultSet struct {
	Generation uint64
	Source     Source
	Items      []item.Item
}

// Supersedes reports whether s should replace the currently displayed set cur.
// Older generations never win. Within one generation remote wins over local
// and a set never replaces a more authoritative one.
func (s ResultSet) Supersedes(cur ResultSet) bool {
	if s.Generation != cur.Generation {
		return s.Generation > cur.Generation
	}
	return s.Source.Rank() >= cur.Source.Rank()
}

// NoSelection is the openIndex value when nothing is highlighted.
const NoSelection = -1

// Key is a navigation key.
type Key string

const (
	// KeyDown moves the highlight down.
	KeyDown Key = "ArrowDown"
	// KeyUp moves the highlight up.
	KeyUp Key = "ArrowUp"
	// KeyEnter selects the highlighted or top item.
	KeyEnter Key = "Enter"
	// KeyEscape closes the dropdown and blurs the input.
	KeyEscape Key = "Escape"
)

// Nav is the dropdown highlight state over a result list.
type Nav struct {
	openIndex int
}

// NewNav returns a state with nothing highlighted.
func NewNav() Nav { return Nav{openIndex: NoSelection} }

// Index returns the highlighted position or NoSelection.
func (n Nav) Index() int { return n.openIndex }

// Down moves the highlight one step down, clamped at size-1.
func (n Nav) Down(size int) Nav {
	if n.openIndex < size-1 {
		n.openIndex++
	}
	return n
}

// Up moves the highlight one step up, clamped at NoSelection.
func (n Nav) Up() Nav {
	if n.openIndex > NoSelection {
		n.openIndex--
	}
	return n
}

// Pick returns the index Enter should select: the highlight, else the top item.
// ok is false when the list is empty.
func (n Nav) Pick(size int) (int, bool) {
	if size == 0 {
		return NoSelection, false
	}
	if n.openIndex >= 0 && n.openIndex < size {
		return n.openIndex, true
	}
	return 0, true
}
