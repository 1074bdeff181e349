package matcher

import (
	"math"
	"reflect"
	"testing"
)

func TestMatch(t *testing.T) {
	m := New([]Known{
		{Name: "alice", Encoding: Encoding{0, 0, 0}},
		{Name: "bob", Encoding: Encoding{0.3, 0, 0}},
		{Name: "alice", Encoding: Encoding{1, 1, 1}},
	}, 0.45)

	tests := []struct {
		name string
		enc  Encoding
		want string
	}{
		{"exact", Encoding{0, 0, 0}, "alice"},
		{"closest wins over first", Encoding{0.25, 0, 0}, "bob"},
		{"second encoding of identity", Encoding{1, 1, 0.9}, "alice"},
		{"outside tolerance", Encoding{0, 0.5, 0}, ""},
		{"wrong dimension", Encoding{0, 0}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Match(tt.enc)
			if got.Name != tt.want {
				t.Fatalf("Match(%v) = %+v, want %q", tt.enc, got, tt.want)
			}
			if got.Recognized() != (tt.want != "") {
				t.Fatalf("Recognized() = %v", got.Recognized())
			}
		})
	}
}

func TestToleranceIsInclusive(t *testing.T) {
	m := New([]Known{{Name: "carol", Encoding: Encoding{0, 0}}}, 0.5)
	if got := m.Match(Encoding{0.3, 0.4}); got.Name != "carol" {
		t.Fatalf("distance equal to tolerance must match, got %+v", got)
	}
}

func TestDistance(t *testing.T) {
	if d := Distance(Encoding{0, 3}, Encoding{4, 0}); d != 5 {
		t.Fatalf("distance = %v, want 5", d)
	}
	if d := Distance(nil, nil); !math.IsInf(d, 1) {
		t.Fatalf("empty encodings distance = %v, want +Inf", d)
	}
}

func TestNames(t *testing.T) {
	m := New([]Known{
		{Name: "bob", Encoding: Encoding{1}},
		{Name: "alice", Encoding: Encoding{2}},
		{Name: "bob", Encoding: Encoding{3}},
	}, 0.45)
	if got := m.Names(); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Fatalf("names = %v", got)
	}
	if m.Size() != 3 {
		t.Fatalf("size = %d, want 3", m.Size())
	}
}
