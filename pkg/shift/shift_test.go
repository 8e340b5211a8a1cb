package shift

import (
	"math"
	"testing"
)

func TestUpdateAndDetectPrimingPassReturnsNil(t *testing.T) {
	m := NewModel()
	ev := m.UpdateAndDetect("k", "dim", map[string]int{"a": 10, "b": 10}, 0.1, 5)
	if ev != nil {
		t.Errorf("priming pass returned event %+v, want nil", ev)
	}
}

func TestUpdateAndDetectBelowMinTotalLeavesStateUntouched(t *testing.T) {
	m := NewModel()
	m.UpdateAndDetect("k", "dim", map[string]int{"a": 50}, 0.1, 100)
	if _, ok := m.prior["k"]; ok {
		t.Error("below-min-total call mutated prior state")
	}
}

func TestUpdateAndDetectIdenticalDistributionsYieldZero(t *testing.T) {
	m := NewModel()
	counts := map[string]int{"a": 50, "b": 50}
	m.UpdateAndDetect("k", "dim", counts, 0.01, 10)
	ev := m.UpdateAndDetect("k", "dim", counts, 0.01, 10)
	if ev != nil {
		t.Errorf("identical distributions produced event %+v, want nil", ev)
	}
}

func TestUpdateAndDetectDisjointSupportsYieldDistanceTwo(t *testing.T) {
	m := NewModel()
	m.UpdateAndDetect("k", "dim", map[string]int{"a": 100}, 0.1, 10)
	ev := m.UpdateAndDetect("k", "dim", map[string]int{"b": 100}, 0.1, 10)
	if ev == nil {
		t.Fatal("disjoint-support shift returned nil, want an event")
	}
	if math.Abs(ev.L1Distance-2.0) > 1e-9 {
		t.Errorf("L1Distance = %v, want 2.0", ev.L1Distance)
	}
}

func TestUpdateAndDetectDistanceBounds(t *testing.T) {
	m := NewModel()
	m.UpdateAndDetect("k", "dim", map[string]int{"a": 70, "b": 30}, 0.0, 10)
	ev := m.UpdateAndDetect("k", "dim", map[string]int{"a": 10, "b": 90}, 0.0, 10)
	if ev == nil {
		t.Fatal("expected a shift event")
	}
	if ev.L1Distance < 0 || ev.L1Distance > 2 {
		t.Errorf("L1Distance = %v, want in [0,2]", ev.L1Distance)
	}
}

func TestUpdateAndDetectBelowThresholdReturnsNil(t *testing.T) {
	m := NewModel()
	m.UpdateAndDetect("k", "dim", map[string]int{"a": 50, "b": 50}, 0.9, 10)
	ev := m.UpdateAndDetect("k", "dim", map[string]int{"a": 55, "b": 45}, 0.9, 10)
	if ev != nil {
		t.Errorf("small shift below threshold returned event %+v, want nil", ev)
	}
}

func TestUpdateAndDetectTopKOrderedDescending(t *testing.T) {
	m := NewModel()
	m.UpdateAndDetect("k", "dim", map[string]int{"a": 100}, 0.1, 10)
	ev := m.UpdateAndDetect("k", "dim", map[string]int{
		"a": 10, "b": 50, "c": 20, "d": 15, "e": 5, "f": 1,
	}, 0.1, 10)
	if ev == nil {
		t.Fatal("expected a shift event")
	}
	if len(ev.TopAfter) != 5 {
		t.Fatalf("TopAfter len = %d, want 5 (top-5 cap)", len(ev.TopAfter))
	}
	for i := 1; i < len(ev.TopAfter); i++ {
		if ev.TopAfter[i].Share > ev.TopAfter[i-1].Share {
			t.Errorf("TopAfter not descending at index %d", i)
		}
	}
}
