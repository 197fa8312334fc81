package item

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// MaxTitleLength is the maximum title size in bytes.
const MaxTitleLength = 512

// Item is a catalog entry (immutable value object).
type Item struct {
	id          string
	title       string
	genres      []string
	description string
	year        int
	trailer     string
}

// New validates and creates an Item. An empty id is derived from the title.
func New(id, title string, genres []string, description string, year int, trailer string) (Item, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Item{}, fmt.Errorf("item title is required")
	}
	if len(title) > MaxTitleLength {
		return Item{}, fmt.Errorf("item title too long (max %d)", MaxTitleLength)
	}
	if year < 0 {
		return Item{}, fmt.Errorf("item year must not be negative")
	}
	if id == "" {
		id = Slug(title)
	}
	if id == "" {
		return Item{}, fmt.Errorf("cannot derive id from title %q", title)
	}

	return Item{
		id:          id,
		title:       title,
		genres:      slices.Clone(genres),
		description: description,
		year:        year,
		trailer:     trailer,
	}, nil
}

// Reconstruct creates an Item without validation (storage hydration).
func Reconstruct(id, title string, genres []string, description string, year int, trailer string) Item {
	return Item{id: id, title: title, genres: genres, description: description, year: year, trailer: trailer}
}

// ID returns the stable identifier.
func (i Item) ID() string { return i.id }

// Title returns the display title.
func (i Item) Title() string { return i.title }

// Genres returns the genre set in source order.
func (i Item) Genres() []string { return i.genres }

// Description returns the free-text description.
func (i Item) Description() string { return i.description }

// Year returns the release year, 0 when unknown.
func (i Item) Year() int { return i.year }

// Trailer returns the trailer link, empty when unknown.
func (i Item) Trailer() string { return i.trailer }

// IsZero reports whether the item is unset.
func (i Item) IsZero() bool { return i.id == "" }

// Slug derives a lowercase dash-separated id from a title.
func Slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Hit is an item matched by a search together with its relevance in [0,1].
type Hit struct {
	Item      Item
	Relevance float64
}
