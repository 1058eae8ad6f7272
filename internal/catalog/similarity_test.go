package catalog

import (
	"math"
	"testing"
)

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"blue dream", "blue dream", 0},
		{"blu dream", "blue dream", 1},
		{"kitten", "sitting", 3},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Fatalf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSimilarityRatio(t *testing.T) {
	t.Parallel()

	if got := similarityRatio("blue dream", "blue dream"); got != 1 {
		t.Fatalf("identical strings must score 1, got %f", got)
	}
	got := similarityRatio("blu dream", "blue dream")
	if math.Abs(got-0.9) > 1e-9 {
		t.Fatalf("expected 0.9 for one edit over ten runes, got %f", got)
	}
}

func TestTokenJaccardHandlesReordering(t *testing.T) {
	t.Parallel()

	if got := tokenJaccard("og kush indica", "indica og kush"); got != 1 {
		t.Fatalf("reordered tokens must score 1, got %f", got)
	}
	if got := tokenJaccard("blue dream", "sour diesel"); got != 0 {
		t.Fatalf("disjoint tokens must score 0, got %f", got)
	}
}

func TestNameSimilarityTakesBestSignal(t *testing.T) {
	t.Parallel()

	// Heavy reordering tanks edit distance but not token overlap.
	if got := nameSimilarity("og kush indica", "indica og kush"); got != 1 {
		t.Fatalf("expected token overlap to win, got %f", got)
	}
	if got := nameSimilarity("", "blue dream"); got != 0 {
		t.Fatalf("empty side must score 0, got %f", got)
	}
}

func TestBrandSimilarityNeutralWhenMissing(t *testing.T) {
	t.Parallel()

	if got := brandSimilarity("", "tryke"); got != 0.5 {
		t.Fatalf("missing brand must be neutral, got %f", got)
	}
	if got := brandSimilarity("tryke", "tryke"); got != 1 {
		t.Fatalf("identical brands must score 1, got %f", got)
	}
}
