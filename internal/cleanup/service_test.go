package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakePruner struct {
	cutoff time.Time
	n      int64
}

func (f *fakePruner) DeleteEventsBefore(cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.n, nil
}

func TestNewServiceDisabled(t *testing.T) {
	if s := NewService(&fakePruner{}, 0, t.TempDir(), time.Hour); s != nil {
		t.Fatal("expected nil service when retention is disabled")
	}
	// nil service is inert
	var s *Service
	s.StartBackgroundCleanup()
	s.StopBackgroundCleanup()
	if res := s.RunCleanupCycle(); res != (Result{}) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunCleanupCycle(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

	write := func(name string, mod time.Time) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatal(err)
		}
		return path
	}
	old := write("unknown_1772000000_abcdef12.jpg", now.AddDate(0, 0, -40))
	fresh := write("unknown_1774900000_12345678.jpg", now.AddDate(0, 0, -1))
	other := write("notes.txt", now.AddDate(0, 0, -40))

	pruner := &fakePruner{n: 3}
	s := NewService(pruner, 30, dir, time.Hour)
	s.now = func() time.Time { return now }

	res := s.RunCleanupCycle()
	if res.Events != 3 || res.Images != 1 || res.FailedImages != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !pruner.cutoff.Equal(now.AddDate(0, 0, -30)) {
		t.Fatalf("unexpected cutoff %v", pruner.cutoff)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("old evidence should be deleted")
	}
	for _, p := range []string{fresh, other} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("%s should be kept: %v", p, err)
		}
	}

	s.StopBackgroundCleanup()
	s.StopBackgroundCleanup()
}
