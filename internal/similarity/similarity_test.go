package similarity

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"магазин", "магазин", 0},
		{"магазин", "магазины", 1},
		{"офис", "офиз", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); got != tt.want {
				t.Errorf("Distance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDistance_Symmetric(t *testing.T) {
	pairs := [][2]string{{"склад", "складской"}, {"центр", "центре"}, {"abc", "cab"}}
	for _, p := range pairs {
		if Distance(p[0], p[1]) != Distance(p[1], p[0]) {
			t.Errorf("Distance not symmetric for %q/%q", p[0], p[1])
		}
	}
}

func TestSimilarity_Identity(t *testing.T) {
	for _, s := range []string{"", "a", "магазин в центре", "80"} {
		if got := Similarity(s, s); got != 1.0 {
			t.Errorf("Similarity(%q, %q) = %f, want 1.0", s, s, got)
		}
	}
}

func TestSimilarity_EmptyVsNonEmpty(t *testing.T) {
	if got := Similarity("", "abc"); got != 0.0 {
		t.Errorf("expected 0.0, got %f", got)
	}
}

func TestSimilarity_Normalized(t *testing.T) {
	// 7 runes vs 8 runes, distance 1 -> (8-1)/8
	got := Similarity("магазин", "магазины")
	want := 7.0 / 8.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %f, got %f", want, got)
	}

	got = Similarity("abc", "xyz")
	if got != 0.0 {
		t.Errorf("expected 0.0 for fully different strings, got %f", got)
	}
}

func TestSimilarity_Range(t *testing.T) {
	pairs := [][2]string{{"a", "bbbb"}, {"центр", "метро"}, {"офис", "office"}}
	for _, p := range pairs {
		s := Similarity(p[0], p[1])
		if s < 0 || s > 1 {
			t.Errorf("Similarity(%q, %q) = %f out of range", p[0], p[1], s)
		}
	}
}
