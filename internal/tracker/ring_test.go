package tracker

import "testing"

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing(3)
	for i := 1; i <= 5; i++ {
		r.Push(Point{X: float64(i)})
	}
	if r.Len() != 3 {
		t.Fatalf("len = %d, want 3", r.Len())
	}
	pts := r.Points()
	for i, want := range []float64{3, 4, 5} {
		if pts[i].X != want {
			t.Fatalf("points = %v, want X 3,4,5", pts)
		}
	}
}

func TestRingVarianceX(t *testing.T) {
	r := NewRing(30)
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		r.Push(Point{X: x})
	}
	if v := r.VarianceX(); v != 4 {
		t.Fatalf("variance = %v, want 4", v)
	}

	r.Clear()
	if r.Len() != 0 || r.VarianceX() != 0 {
		t.Fatal("clear must empty the ring")
	}
}
