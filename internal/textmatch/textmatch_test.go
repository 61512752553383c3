package textmatch

import (
	"math"
	"testing"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Böhm", "bohm"},
		{"Furtwängler", "furtwangler"},
		{"Du Pré", "du pre"},
		{"Yo-Yo Ma", "yo yo ma"},
		{"  Berliner   Philharmoniker, Herbert von Karajan ", "berliner philharmoniker herbert von karajan"},
		{"Takács Quartet", "takacs quartet"},
		{"Leif Ove Andsnes / Bergen Ø", "leif ove andsnes bergen o"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContainsSeq(t *testing.T) {
	hay := Tokens("Yo-Yo Ma & Emanuel Ax")
	if !ContainsSeq(hay, Tokens("Ma")) {
		t.Error("expected token match for Ma")
	}
	if ContainsSeq(Tokens("Gustav Mahler"), Tokens("Ma")) {
		t.Error("Ma must not match inside Mahler")
	}
	if ContainsSeq(hay, nil) {
		t.Error("empty needle must not match")
	}
	if !ContainsSeq(Tokens("Berlin Philharmonic Orchestra"), Tokens("Berlin Philharmonic")) {
		t.Error("expected multi-token match")
	}
}

func TestOverlap(t *testing.T) {
	if !Overlap("Karajan", "Herbert von Karajan") {
		t.Error("expected overlap")
	}
	if !Overlap("Herbert von Karajan", "karajan") {
		t.Error("expected symmetric overlap")
	}
	if Overlap("Solti", "Karajan") {
		t.Error("unexpected overlap")
	}
}

func TestContains(t *testing.T) {
	if !Contains("Brandenburg Concertos", "Bach: Brandenburg Concertos Nos. 1-6") {
		t.Error("expected containment")
	}
	if Contains("", "anything") {
		t.Error("empty string must not match")
	}
}

func TestDice(t *testing.T) {
	if got := Dice("Karajan", "karajan"); got != 1 {
		t.Errorf("identical names: got %v", got)
	}
	if got := Dice("Karajan", "Zzz"); got != 0 {
		t.Errorf("disjoint names: got %v", got)
	}
	got := Dice("Karajan", "Karajn")
	if got <= 0.7 || got >= 1 {
		t.Errorf("near miss should be high but below 1, got %v", got)
	}
	if math.IsNaN(Dice("a", "b")) {
		t.Error("single-rune strings must not produce NaN")
	}
}
