// Package alert debounces unknown-person presence and delivers the
// resulting notifications.
package alert

import "time"

// Alerter holds the UnknownAlertState: the start of the current unknown
// presence window and whether that window already alerted.
type Alerter struct {
	grace   time.Duration
	active  bool
	start   time.Time
	alerted bool
	failed  bool
}

// Window is a copy of the alerter state
type Window struct {
	Active  bool      `json:"active"`
	Start   time.Time `json:"start,omitempty"`
	Alerted bool      `json:"alerted"`
}

// NewAlerter creates an alerter that fires after grace of continuous unknown presence
func NewAlerter(grace time.Duration) *Alerter {
	return &Alerter{grace: grace}
}

// ObserveUnknown records an unknown face at now and reports whether an alert
// is due. It keeps reporting true until MarkAlerted is called, so a window
// whose evidence could not be captured is retried on the next tick.
func (a *Alerter) ObserveUnknown(now time.Time) bool {
	if !a.active {
		a.active = true
		a.start = now
		a.alerted = false
		a.failed = false
		return false
	}
	return !a.alerted && now.Sub(a.start) >= a.grace
}

// MarkAlerted records that the alert of the current window was dispatched
func (a *Alerter) MarkAlerted() {
	if a.active {
		a.alerted = true
	}
}

// MarkFailed records a failed capture attempt. It returns true only for the
// first failure of the window.
func (a *Alerter) MarkFailed() bool {
	first := !a.failed
	a.failed = true
	return first
}

// Elapsed returns the age of the current window
func (a *Alerter) Elapsed(now time.Time) time.Duration {
	if !a.active {
		return 0
	}
	return now.Sub(a.start)
}

// Cancel ends the current window. Called when a recognized face is seen or
// a tick has no faces at all.
func (a *Alerter) Cancel() {
	a.active = false
	a.start = time.Time{}
	a.alerted = false
	a.failed = false
}

// Window returns the current state
func (a *Alerter) Window() Window {
	return Window{Active: a.active, Start: a.start, Alerted: a.alerted}
}
