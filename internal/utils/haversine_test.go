package utils

import (
	"math"
	"testing"
)

func TestHaversineZeroDistance(t *testing.T) {
	if d := HaversineKm(12.9236, 77.4985, 12.9236, 77.4985); d != 0 {
		t.Fatalf("expected zero distance, got %f", d)
	}
}

func TestHaversineSymmetry(t *testing.T) {
	ab := HaversineKm(12.9236, 77.4985, 13.0827, 80.2707)
	ba := HaversineKm(13.0827, 80.2707, 12.9236, 77.4985)
	if math.Abs(ab-ba) > 1e-9 {
		t.Fatalf("expected symmetric distance, got %f and %f", ab, ba)
	}
}

func TestHaversineTriangleInequality(t *testing.T) {
	a := [2]float64{12.9236, 77.4985}
	b := [2]float64{13.0827, 80.2707}
	c := [2]float64{17.3850, 78.4867}

	ab := HaversineKm(a[0], a[1], b[0], b[1])
	bc := HaversineKm(b[0], b[1], c[0], c[1])
	ac := HaversineKm(a[0], a[1], c[0], c[1])
	if ac > ab+bc {
		t.Fatalf("triangle inequality violated: %f > %f + %f", ac, ab, bc)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Bangalore to Chennai, roughly 290 km.
	d := HaversineKm(12.9716, 77.5946, 13.0827, 80.2707)
	if d < 280 || d > 300 {
		t.Fatalf("expected ~290 km, got %f", d)
	}
}
