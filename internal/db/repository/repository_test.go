package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"face-door-lock/internal/access"
	"face-door-lock/internal/core/workerpool"
	"face-door-lock/internal/db"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewSQLiteRepository(conn)
}

func TestParseEnrollment(t *testing.T) {
	e, err := ParseEnrollment(strings.NewReader(`{"names":["alice","bob","alice"],"encodings":[[0.1,0.2],[0.3,0.4],[0.5,0.6]]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(e.Names) != 3 || e.Encodings[2][1] != 0.6 {
		t.Fatalf("unexpected enrollment: %+v", e)
	}

	bad := []string{
		`{"names":["alice"],"encodings":[]}`,
		`{"names":["alice","bob"],"encodings":[[1,2],[1,2,3]]}`,
		`{"names":[""],"encodings":[[1]]}`,
		`{"names":["alice"],"encodings":[[]]}`,
		`not json`,
	}
	for _, in := range bad {
		if _, err := ParseEnrollment(strings.NewReader(in)); err == nil {
			t.Errorf("expected error for %s", in)
		}
	}
}

func TestImportAndLoadKnown(t *testing.T) {
	repo := newTestRepo(t)

	e := &Enrollment{
		Names:     []string{"alice", "bob", "alice"},
		Encodings: [][]float64{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}},
		Source:    "encodings.json",
	}
	res, err := repo.ImportEnrollment(e)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Identities != 2 || res.Created != 2 || res.Encodings != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}

	// a second import only adds encodings
	res, err = repo.ImportEnrollment(&Enrollment{Names: []string{"bob"}, Encodings: [][]float64{{0.7, 0.8}}})
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if res.Created != 0 || res.Encodings != 1 {
		t.Fatalf("unexpected second result: %+v", res)
	}

	known, err := repo.LoadKnown()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(known) != 4 {
		t.Fatalf("expected 4 encodings, got %d", len(known))
	}
	counts := map[string]int{}
	for _, k := range known {
		counts[k.Name]++
		if len(k.Encoding) != 2 {
			t.Errorf("encoding of %s has %d dimensions", k.Name, len(k.Encoding))
		}
	}
	if counts["alice"] != 2 || counts["bob"] != 2 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	identity, err := repo.GetIdentityByName("alice")
	if err != nil || identity == nil {
		t.Fatalf("get alice: %v %v", identity, err)
	}
	if identity.Source != "encodings.json" || len(identity.Encodings) != 2 {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if missing, err := repo.GetIdentityByName("carol"); err != nil || missing != nil {
		t.Fatalf("expected nil for unknown name, got %v %v", missing, err)
	}
}

func TestDeleteIdentity(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.ImportEnrollment(&Enrollment{
		Names:     []string{"alice", "bob"},
		Encodings: [][]float64{{1, 2}, {3, 4}},
	}); err != nil {
		t.Fatalf("import: %v", err)
	}

	if err := repo.DeleteIdentity("alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteIdentity("alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	known, err := repo.LoadKnown()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(known) != 1 || known[0].Name != "bob" {
		t.Fatalf("unexpected known after delete: %+v", known)
	}

	// the name is free again
	res, err := repo.ImportEnrollment(&Enrollment{Names: []string{"alice"}, Encodings: [][]float64{{5, 6}}})
	if err != nil || res.Created != 1 {
		t.Fatalf("re-import: %+v %v", res, err)
	}
}

func TestEventsAndRetention(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	types := []access.EventType{access.EventUnlock, access.EventDoorClosed, access.EventUnknownAlert, access.EventUnlock}
	for i, typ := range types {
		ev := access.NewEvent(typ, base.Add(time.Duration(i)*time.Hour))
		ev.Identity = "alice"
		ev.Signals = map[string]float64{"texture": 150}
		if err := repo.SaveEvent(ToModel(ev)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	events, total, err := repo.GetEvents(EventFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 4 || len(events) != 4 {
		t.Fatalf("expected 4 events, got %d/%d", len(events), total)
	}
	if !events[0].Timestamp.Equal(base.Add(3 * time.Hour)) {
		t.Fatalf("expected newest first, got %v", events[0].Timestamp)
	}
	if got := FromModel(events[0]); got.Signals["texture"] != 150 || got.Type != access.EventUnlock {
		t.Fatalf("unexpected round trip: %+v", got)
	}

	unlocks, total, err := repo.GetEvents(EventFilter{Type: string(access.EventUnlock), Limit: 1})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if total != 2 || len(unlocks) != 1 {
		t.Fatalf("expected 1 of 2 unlocks, got %d/%d", len(unlocks), total)
	}

	stats, err := repo.GetStatistics()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.EventCount != 4 || stats.UnlockCount != 2 || stats.AlertCount != 1 || stats.SpoofCount != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	removed, err := repo.DeleteEventsBefore(base.Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("retention: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, total, _ = repo.GetEvents(EventFilter{}); total != 2 {
		t.Fatalf("expected 2 left, got %d", total)
	}
}

func TestRecorder(t *testing.T) {
	repo := newTestRepo(t)
	pool := workerpool.New(1, 8)
	rec := NewRecorder(repo, pool)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec.OnEvent(access.NewEvent(access.EventUnlock, at))
	rec.OnEvent(access.NewEvent(access.EventDoorClosed, at.Add(5*time.Second)))

	if err := pool.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	events, total, err := repo.GetEvents(EventFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || events[0].Type != string(access.EventDoorClosed) {
		t.Fatalf("unexpected events: %+v", events)
	}
}
