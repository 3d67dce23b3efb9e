package canonical

import (
	"math"
	"testing"
)

func TestEditSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"structural equation modeling", "structural equation modeling", 1.0},
		{"", "anything", 0.0},
		{"anything", "", 0.0},
		{"kitten", "sitting", 1.0 - 3.0/7.0},
		{"agency theory", "agency theor", 1.0 - 1.0/13.0},
	}

	for _, tc := range cases {
		got := editSimilarity(tc.a, tc.b)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("editSimilarity(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestEditSimilaritySymmetric(t *testing.T) {
	a, b := "partial least squares", "partial least square"
	if editSimilarity(a, b) != editSimilarity(b, a) {
		t.Errorf("similarity not symmetric for %q / %q", a, b)
	}
}

func TestLevenshteinKnownDistances(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"abc", "ab", 1},
		{"abc", "xabc", 1},
		{"kitten", "sitting", 3},
	}

	for _, tc := range cases {
		if got := levenshtein([]rune(tc.a), []rune(tc.b)); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
