package game

import (
	"math/rand/v2"
	"testing"
)

// TestEventProbability tests the gap bands
func TestEventProbability(t *testing.T) {
	tests := []struct {
		gap  int
		want float64
	}{
		{0, 0}, {1, 0}, {2, 0},
		{3, 0.10}, {4, 0.10},
		{5, 0.20}, {6, 0.20},
		{7, 0.30}, {8, 0.30},
		{9, 0.40}, {50, 0.40},
	}
	for _, tt := range tests {
		if got := EventProbability(tt.gap); got != tt.want {
			t.Errorf("EventProbability(%d): expected %v, got %v", tt.gap, tt.want, got)
		}
	}
}

// TestShouldTriggerRespectsGap tests that no event fires within two turns of the last one
func TestShouldTriggerRespectsGap(t *testing.T) {
	p := NewEventPolicy(&seqRand{floats: []float64{0}})
	for i := 0; i < 100; i++ {
		if p.ShouldTrigger(12, 10) {
			t.Fatal("Expected no event with a gap of 2")
		}
	}
	if !p.ShouldTrigger(13, 10) {
		t.Error("Expected event with a gap of 3 and a zero draw")
	}
}

// TestShouldTriggerDraw tests the draw boundary
func TestShouldTriggerDraw(t *testing.T) {
	p := NewEventPolicy(&seqRand{floats: []float64{0.39, 0.40}})
	if !p.ShouldTrigger(20, 0) {
		t.Error("Expected 0.39 to trigger at 40%")
	}
	if p.ShouldTrigger(20, 0) {
		t.Error("Expected 0.40 not to trigger at 40%")
	}
}

// TestShouldTriggerFrequency tests the long-run rate for a large gap
func TestShouldTriggerFrequency(t *testing.T) {
	p := NewEventPolicy(rand.New(rand.NewPCG(7, 11)))
	const draws = 20000
	hits := 0
	for i := 0; i < draws; i++ {
		if p.ShouldTrigger(9, 0) {
			hits++
		}
	}
	rate := float64(hits) / draws
	if rate < 0.37 || rate > 0.43 {
		t.Errorf("Expected a rate near 0.40, got %.3f", rate)
	}
}
