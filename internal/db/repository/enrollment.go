package repository

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Enrollment is the trainer export: parallel arrays of names and encodings
type Enrollment struct {
	Names     []string    `json:"names"`
	Encodings [][]float64 `json:"encodings"`
	Source    string      `json:"-"`
}

// ParseEnrollment decodes a trainer export
func ParseEnrollment(r io.Reader) (*Enrollment, error) {
	var e Enrollment
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return nil, fmt.Errorf("decode enrollment: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// ReadEnrollmentFile parses the export at path and records it as the source
func ReadEnrollmentFile(path string) (*Enrollment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open enrollment file: %w", err)
	}
	defer f.Close()

	e, err := ParseEnrollment(f)
	if err != nil {
		return nil, err
	}
	e.Source = filepath.Base(path)
	return e, nil
}

// Validate checks that names and encodings line up and share one dimension
func (e *Enrollment) Validate() error {
	if len(e.Names) != len(e.Encodings) {
		return fmt.Errorf("enrollment has %d names but %d encodings", len(e.Names), len(e.Encodings))
	}
	dim := -1
	for i, name := range e.Names {
		if name == "" {
			return fmt.Errorf("enrollment entry %d has an empty name", i)
		}
		n := len(e.Encodings[i])
		if n == 0 {
			return fmt.Errorf("enrollment entry %d (%s) has an empty encoding", i, name)
		}
		if dim == -1 {
			dim = n
		} else if n != dim {
			return fmt.Errorf("enrollment entry %d (%s) has %d dimensions, expected %d", i, name, n, dim)
		}
	}
	return nil
}
