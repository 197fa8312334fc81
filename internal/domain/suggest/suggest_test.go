package suggest

import "testing"

func TestQualifies(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", false},
		{"a", false},
		{"ab", true},
		{"é", false},
		{"éa", true},
	}
	for _, tc := range tests {
		if got := Qualifies(tc.text, MinQueryLength); got != tc.want {
			t.Errorf("Qualifies(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestSupersedes(t *testing.T) {
	tests := []struct {
		name string
		next ResultSet
		cur  ResultSet
		want bool
	}{
		{"newer local beats older remote", ResultSet{Generation: 6, Source: Local}, ResultSet{Generation: 5, Source: Remote}, true},
		{"older local loses to newer remote", ResultSet{Generation: 5, Source: Local}, ResultSet{Generation: 6, Source: Remote}, false},
		{"remote beats local same gen", ResultSet{Generation: 3, Source: Remote}, ResultSet{Generation: 3, Source: Local}, true},
		{"local loses to remote same gen", ResultSet{Generation: 3, Source: Local}, ResultSet{Generation: 3, Source: Remote}, false},
		{"local replaces local same gen", ResultSet{Generation: 3, Source: Local}, ResultSet{Generation: 3, Source: Local}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.next.Supersedes(tc.cur); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNav_DownUpClamp(t *testing.T) {
	n := NewNav()
	if n.Index() != NoSelection {
		t.Fatalf("initial index = %d", n.Index())
	}

	n = n.Down(3)
	if n.Index() != 0 {
		t.Errorf("first down = %d, want 0", n.Index())
	}
	n = n.Down(3).Down(3)
	if n.Index() != 2 {
		t.Errorf("index = %d, want 2", n.Index())
	}
	n = n.Down(3)
	if n.Index() != 2 {
		t.Errorf("down at last index must be a no-op, got %d", n.Index())
	}

	n = n.Up().Up().Up()
	if n.Index() != NoSelection {
		t.Errorf("index = %d, want -1", n.Index())
	}
	n = n.Up()
	if n.Index() != NoSelection {
		t.Errorf("up at -1 must be a no-op, got %d", n.Index())
	}
}

func TestNav_DownOnEmptyList(t *testing.T) {
	if got := NewNav().Down(0).Index(); got != NoSelection {
		t.Errorf("down on empty list = %d", got)
	}
}

func TestNav_Pick(t *testing.T) {
	if _, ok := NewNav().Pick(0); ok {
		t.Error("pick on empty list must fail")
	}
	if idx, ok := NewNav().Pick(4); !ok || idx != 0 {
		t.Errorf("pick without highlight = %d, %v", idx, ok)
	}
	n := NewNav().Down(4).Down(4)
	if idx, ok := n.Pick(4); !ok || idx != 1 {
		t.Errorf("pick with highlight = %d, %v", idx, ok)
	}
}
