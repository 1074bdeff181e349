// Package session implements the access decision engine. One session spans
// the whole frame: every recognized face feeds the same counters, so two
// people in view share one blink count and one motion history.
package session

import (
	"face-door-lock/internal/tracker"
)

// SpoofReason names the liveness check that rejected a face
type SpoofReason int

const (
	ReasonNone SpoofReason = iota
	ReasonLowTexture
	ReasonSaturation
	ReasonGlare
	ReasonFrequency
	ReasonPlayback
)

func (r SpoofReason) String() string {
	switch r {
	case ReasonLowTexture:
		return "low_texture"
	case ReasonSaturation:
		return "saturation"
	case ReasonGlare:
		return "glare"
	case ReasonFrequency:
		return "frequency_artifact"
	case ReasonPlayback:
		return "screen_playback"
	default:
		return "none"
	}
}

// Probe exposes the liveness signals of one face. Checks are pulled in
// order and evaluation stops at the first spoof, so implementations may
// compute each signal lazily.
type Probe interface {
	Texture() float64
	SaturationAbnormal() bool
	Glare() bool
	FrequencyArtifact() bool
	// Playback reports ok=false when there is no previous frame to compare against.
	Playback() (spoof bool, ok bool)
}

// LandmarkFunc returns the face landmarks or ok=false when none could be extracted
type LandmarkFunc func() ([]tracker.Point, bool)

// Config holds the engine thresholds
type Config struct {
	TextureThreshold float64
	RequiredFrames   int
	Tracker          tracker.Config
}

// State is a read-only snapshot of the session counters
type State struct {
	BlinkCount       int `json:"blink_count"`
	MotionSamples    int `json:"motion_samples"`
	RecognizedFrames int `json:"recognized_frames"`
	SpoofStreak      int `json:"spoof_streak"`
}

// Verdict is the outcome of evaluating one recognized face
type Verdict struct {
	Spoof   bool
	Reason  SpoofReason
	Texture float64
	// NewStreak is true on the first spoof tick after a clean one
	NewStreak bool
	// Behavior is only valid when BehaviorUpdated is set
	Behavior        tracker.Update
	BehaviorUpdated bool
	Grant           bool
}

// Engine owns the SessionState. It is not safe for concurrent use; the
// control loop is its only writer.
type Engine struct {
	cfg              Config
	tracker          *tracker.Tracker
	recognizedFrames int
	spoofStreak      int
}

// NewEngine creates an engine with a fresh session
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:     cfg,
		tracker: tracker.New(cfg.Tracker),
	}
}

// BeginTick advances the session-wide counters for a new tick. A tick
// without any face ends the session.
func (e *Engine) BeginTick(faces, recognized int) {
	if faces == 0 {
		e.Reset()
		return
	}
	if recognized > 0 {
		e.recognizedFrames++
	}
}

// Evaluate runs the ordered spoof checks for one recognized face and, if
// they all pass, updates blink and motion and decides on the unlock grant.
func (e *Engine) Evaluate(p Probe, landmarks LandmarkFunc) Verdict {
	v := Verdict{Texture: p.Texture()}

	switch {
	case v.Texture < e.cfg.TextureThreshold:
		v.Reason = ReasonLowTexture
	case p.SaturationAbnormal():
		v.Reason = ReasonSaturation
	case p.Glare():
		v.Reason = ReasonGlare
	case p.FrequencyArtifact():
		v.Reason = ReasonFrequency
	default:
		if spoof, ok := p.Playback(); ok && spoof {
			v.Reason = ReasonPlayback
		}
	}

	if v.Reason != ReasonNone {
		v.Spoof = true
		v.NewStreak = e.spoofStreak == 0
		e.spoofStreak++
		return v
	}
	e.spoofStreak = 0

	if landmarks == nil {
		return v
	}
	points, ok := landmarks()
	if !ok {
		return v
	}
	update, ok := e.tracker.Observe(points)
	if !ok {
		return v
	}
	v.Behavior = update
	v.BehaviorUpdated = true

	v.Grant = update.BlinkCount >= 1 &&
		update.MotionDetected() &&
		v.Texture > e.cfg.TextureThreshold &&
		e.recognizedFrames > e.cfg.RequiredFrames &&
		e.spoofStreak == 0
	return v
}

// Reset clears the tracker and all session counters
func (e *Engine) Reset() {
	e.tracker.Reset()
	e.recognizedFrames = 0
	e.spoofStreak = 0
}

// State returns the current counters
func (e *Engine) State() State {
	return State{
		BlinkCount:       e.tracker.BlinkCount(),
		MotionSamples:    e.tracker.MotionSamples(),
		RecognizedFrames: e.recognizedFrames,
		SpoofStreak:      e.spoofStreak,
	}
}
