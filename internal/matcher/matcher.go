// Package matcher resolves face encodings against the enrolled identities.
package matcher

import (
	"math"
	"sort"
)

// Encoding is a face embedding vector
type Encoding []float64

// Known is one enrolled encoding. An identity may own several.
type Known struct {
	Name     string
	Encoding Encoding
}

// Result of a match. Name is empty for unknown faces.
type Result struct {
	Name     string
	Distance float64
}

// Recognized reports whether the encoding matched an identity
func (r Result) Recognized() bool {
	return r.Name != ""
}

// Matcher compares encodings by Euclidean distance. It is immutable after
// construction and safe for concurrent use.
type Matcher struct {
	known     []Known
	tolerance float64
}

// New creates a matcher over the enrolled encodings
func New(known []Known, tolerance float64) *Matcher {
	cp := make([]Known, len(known))
	copy(cp, known)
	return &Matcher{known: cp, tolerance: tolerance}
}

// Match returns the closest enrolled identity whose distance is within the
// tolerance, or an unknown result.
func (m *Matcher) Match(enc Encoding) Result {
	best := Result{Distance: math.Inf(1)}
	for _, k := range m.known {
		d := Distance(enc, k.Encoding)
		if d <= m.tolerance && d < best.Distance {
			best = Result{Name: k.Name, Distance: d}
		}
	}
	return best
}

// Size returns the number of enrolled encodings
func (m *Matcher) Size() int {
	return len(m.known)
}

// Names returns the distinct enrolled identity names, sorted
func (m *Matcher) Names() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, k := range m.known {
		if _, ok := seen[k.Name]; ok {
			continue
		}
		seen[k.Name] = struct{}{}
		names = append(names, k.Name)
	}
	sort.Strings(names)
	return names
}

// Distance returns the Euclidean distance of a and b. Encodings of
// different dimension never match.
func Distance(a, b Encoding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
