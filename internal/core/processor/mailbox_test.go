package processor

import (
	"sync"
	"testing"
	"time"
)

func TestMailboxNewestWins(t *testing.T) {
	var dropped []int
	m := NewMailbox(func(v int) { dropped = append(dropped, v) })

	m.Publish(1)
	m.Publish(2)
	m.Publish(3)

	v, ok := m.Next()
	if !ok || v != 3 {
		t.Fatalf("expected 3, got %d %v", v, ok)
	}
	if m.Drops() != 2 || len(dropped) != 2 || dropped[0] != 1 || dropped[1] != 2 {
		t.Fatalf("unexpected drops %d %v", m.Drops(), dropped)
	}
}

func TestMailboxNextBlocksUntilPublish(t *testing.T) {
	m := NewMailbox[string](nil)

	got := make(chan string, 1)
	go func() {
		v, _ := m.Next()
		got <- v
	}()

	select {
	case <-got:
		t.Fatal("Next returned before a value was published")
	case <-time.After(50 * time.Millisecond):
	}

	m.Publish("frame")
	select {
	case v := <-got:
		if v != "frame" {
			t.Fatalf("unexpected value %q", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not wake up")
	}
}

func TestMailboxCloseReleasesPendingAndWakesConsumer(t *testing.T) {
	var mu sync.Mutex
	var dropped []int
	m := NewMailbox(func(v int) {
		mu.Lock()
		dropped = append(dropped, v)
		mu.Unlock()
	})

	done := make(chan bool, 1)
	go func() {
		_, ok := m.Next()
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	m.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected ok=false after close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer not woken by Close")
	}

	m2 := NewMailbox(func(v int) {
		mu.Lock()
		dropped = append(dropped, v)
		mu.Unlock()
	})
	m2.Publish(7)
	m2.Close()
	if m2.Publish(8) {
		t.Fatal("publish after close should fail")
	}
	m2.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(dropped) != 2 || dropped[0] != 7 || dropped[1] != 8 {
		t.Fatalf("unexpected drops %v", dropped)
	}
}
