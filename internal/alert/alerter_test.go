package alert

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)

func TestAlertFiresOncePerWindow(t *testing.T) {
	a := NewAlerter(2 * time.Second)
	var fired []int
	for tick := 1; tick <= 90; tick++ {
		now := t0.Add(time.Duration(tick-1) * time.Second / 30)
		if a.ObserveUnknown(now) {
			fired = append(fired, tick)
			a.MarkAlerted()
		}
	}

	// tick 61 is the first one 2.0s after the window started on tick 1
	if len(fired) != 1 || fired[0] != 61 {
		t.Fatalf("alerts on ticks %v, want exactly one on tick 61", fired)
	}
}

func TestCancelStartsFreshWindow(t *testing.T) {
	a := NewAlerter(2 * time.Second)
	a.ObserveUnknown(t0)
	if !a.ObserveUnknown(t0.Add(2 * time.Second)) {
		t.Fatal("expected alert after 2s")
	}
	a.MarkAlerted()

	a.Cancel()
	if w := a.Window(); w.Active || w.Alerted {
		t.Fatalf("window after cancel: %+v", w)
	}

	a.ObserveUnknown(t0.Add(3 * time.Second))
	if a.ObserveUnknown(t0.Add(4 * time.Second)) {
		t.Fatal("new window alerted after only 1s")
	}
	if !a.ObserveUnknown(t0.Add(5 * time.Second)) {
		t.Fatal("new window must alert again after 2s")
	}
}

func TestInterruptedPresenceRestartsTiming(t *testing.T) {
	a := NewAlerter(2 * time.Second)
	a.ObserveUnknown(t0)
	a.ObserveUnknown(t0.Add(1500 * time.Millisecond))
	a.Cancel() // recognized face in between

	if a.ObserveUnknown(t0.Add(2100 * time.Millisecond)) {
		t.Fatal("timing must restart after a cancel")
	}
	if got := a.Elapsed(t0.Add(2600 * time.Millisecond)); got != 500*time.Millisecond {
		t.Fatalf("elapsed = %v, want 500ms", got)
	}
}

func TestAlertStaysDueUntilMarked(t *testing.T) {
	a := NewAlerter(2 * time.Second)
	a.ObserveUnknown(t0)

	for i := 0; i < 3; i++ {
		if !a.ObserveUnknown(t0.Add(2*time.Second + time.Duration(i)*time.Second/30)) {
			t.Fatalf("alert not due on attempt %d", i)
		}
		if first := a.MarkFailed(); first != (i == 0) {
			t.Fatalf("MarkFailed on attempt %d = %v", i, first)
		}
	}

	a.MarkAlerted()
	if a.ObserveUnknown(t0.Add(3 * time.Second)) {
		t.Fatal("alert still due after it was marked")
	}
	if w := a.Window(); !w.Alerted {
		t.Fatalf("window not alerted: %+v", w)
	}

	a.Cancel()
	a.ObserveUnknown(t0.Add(4 * time.Second))
	if !a.MarkFailed() {
		t.Fatal("failure flag must reset with the window")
	}
}
