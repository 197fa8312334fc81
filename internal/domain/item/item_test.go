package item

import "testing"

func TestNew_Valid(t *testing.T) {
	genres := []string{"Drama"}
	it, err := New("", "  The Matrix ", genres, "desc", 1999, "https://youtu.be/x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.ID() != "the-matrix" {
		t.Errorf("id = %q", it.ID())
	}
	if it.Title() != "The Matrix" {
		t.Errorf("title = %q", it.Title())
	}
	if it.Year() != 1999 || it.Trailer() != "https://youtu.be/x" || it.Description() != "desc" {
		t.Errorf("unexpected fields: %+v", it)
	}

	genres[0] = "mutated"
	if it.Genres()[0] != "Drama" {
		t.Error("genres must be copied on construction")
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		title string
		year  int
	}{
		{"empty title", "   ", 0},
		{"negative year", "Alien", -1},
		{"no slug", "!!!", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New("", tc.title, nil, "", tc.year, ""); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNew_ExplicitID(t *testing.T) {
	it, err := New("tt0133093", "The Matrix", nil, "", 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if it.ID() != "tt0133093" {
		t.Errorf("id = %q", it.ID())
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Spider-Man: No Way Home": "spider-man-no-way-home",
		"Amélie":                  "amélie",
		"  2001: A Space Odyssey": "2001-a-space-odyssey",
		"WALL·E":                  "wall-e",
	}
	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsZero(t *testing.T) {
	if !(Item{}).IsZero() {
		t.Error("zero item must report IsZero")
	}
	if Reconstruct("a", "A", nil, "", 0, "").IsZero() {
		t.Error("reconstructed item must not be zero")
	}
}
