package ranker

import "testing"

func TestCanonicalSet_Match(t *testing.T) {
	set := NewCanonicalSet("Herbert von Karajan", "Karl Böhm", "Ma", "Il Giardino Armonico")
	tests := []struct {
		name string
		want bool
	}{
		{"Herbert von Karajan", true},
		{"HERBERT VON KARAJAN", true},
		{"Karl Bohm", true},
		{"Wiener Philharmoniker, Karl Böhm", true},
		{"Yo-Yo Ma", true},
		{"Mahler Chamber Orchestra", false},
		{"Karajan", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := set.Match(tt.name); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCanonicalSet_Dedupe(t *testing.T) {
	set := NewCanonicalSet("Karl Böhm", "karl bohm", "", "  ")
	if set.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (%v)", set.Len(), set.Names())
	}
}

func TestCanonicalSet_Similarity(t *testing.T) {
	set := NewCanonicalSet("Herbert von Karajan")
	if got := set.Similarity("Herbert von Karajan"); got != 1 {
		t.Errorf("identical similarity = %v", got)
	}
	near := set.Similarity("Herbert von Karajn")
	if near < 0.9 || near >= 1 {
		t.Errorf("near similarity = %v, want in [0.9,1)", near)
	}
	if far := set.Similarity("Glenn Gould"); far >= DefaultSimilarityFloor {
		t.Errorf("unrelated similarity = %v", far)
	}
	if got := NewCanonicalSet().Similarity("anything"); got != 0 {
		t.Errorf("empty set similarity = %v", got)
	}
}
