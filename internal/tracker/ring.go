package tracker

// Ring is a fixed capacity FIFO of points; the oldest point is evicted on overflow
type Ring struct {
	buf   []Point
	start int
	size  int
}

// NewRing allocates a ring holding at most capacity points
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]Point, capacity)}
}

// Push appends p, evicting the oldest entry when full
func (r *Ring) Push(p Point) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = p
		r.size++
		return
	}
	r.buf[r.start] = p
	r.start = (r.start + 1) % len(r.buf)
}

// Len returns the number of stored points
func (r *Ring) Len() int {
	return r.size
}

// Cap returns the capacity
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Clear drops all points
func (r *Ring) Clear() {
	r.start = 0
	r.size = 0
}

// Points returns the stored points from oldest to newest
func (r *Ring) Points() []Point {
	out := make([]Point, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// VarianceX returns the population variance of the horizontal coordinate
func (r *Ring) VarianceX() float64 {
	if r.size == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < r.size; i++ {
		sum += r.buf[(r.start+i)%len(r.buf)].X
	}
	mean := sum / float64(r.size)
	var sq float64
	for i := 0; i < r.size; i++ {
		d := r.buf[(r.start+i)%len(r.buf)].X - mean
		sq += d * d
	}
	return sq / float64(r.size)
}
