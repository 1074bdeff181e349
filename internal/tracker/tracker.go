// Package tracker accumulates the temporal liveness evidence of one session:
// blink edges from the eye aspect ratio and head motion from the nose tip.
package tracker

import "math"

// Landmark indices of the 68-point face model
const (
	NoseTip       = 30
	LeftEyeStart  = 36
	RightEyeStart = 42
	landmarkCount = 48
)

// Point is a landmark position in full-resolution frame coordinates
type Point struct {
	X float64
	Y float64
}

// Config holds the tracker thresholds
type Config struct {
	EARThreshold     float64
	MotionVariance   float64
	MotionCapacity   int
	MotionMinSamples int
}

// MotionState reports the motion verdict of one update
type MotionState int

const (
	MotionInsufficient MotionState = iota
	MotionStill
	MotionDetected
)

func (m MotionState) String() string {
	switch m {
	case MotionStill:
		return "still"
	case MotionDetected:
		return "detected"
	default:
		return "insufficient_samples"
	}
}

// Update is the outcome of feeding one landmark set into the tracker
type Update struct {
	EAR           float64
	Blinked       bool
	BlinkCount    int
	Motion        MotionState
	NoseVariance  float64
	MotionSamples int
}

// MotionDetected reports whether the update carries verified head motion
func (u Update) MotionDetected() bool {
	return u.Motion == MotionDetected
}

// Tracker holds the blink and motion history of the active session
type Tracker struct {
	cfg        Config
	blinkCount int
	prevEAR    float64
	hasPrevEAR bool
	nose       *Ring
}

// New creates a tracker with an empty history
func New(cfg Config) *Tracker {
	return &Tracker{
		cfg:  cfg,
		nose: NewRing(cfg.MotionCapacity),
	}
}

// Observe feeds the landmarks of the current tick. ok is false when the
// landmark set is too short to contain both eyes and the nose tip; the
// tracker is left untouched in that case.
func (t *Tracker) Observe(landmarks []Point) (Update, bool) {
	if len(landmarks) < landmarkCount {
		return Update{}, false
	}

	left := landmarks[LeftEyeStart : LeftEyeStart+6]
	right := landmarks[RightEyeStart : RightEyeStart+6]
	ear := (EyeAspectRatio(left) + EyeAspectRatio(right)) / 2

	blinked := t.hasPrevEAR && t.prevEAR < t.cfg.EARThreshold && ear >= t.cfg.EARThreshold
	if blinked {
		t.blinkCount++
	}
	t.prevEAR = ear
	t.hasPrevEAR = true

	t.nose.Push(landmarks[NoseTip])

	u := Update{
		EAR:           ear,
		Blinked:       blinked,
		BlinkCount:    t.blinkCount,
		MotionSamples: t.nose.Len(),
		Motion:        MotionInsufficient,
	}
	if t.nose.Len() >= t.cfg.MotionMinSamples {
		u.NoseVariance = t.nose.VarianceX()
		if u.NoseVariance > t.cfg.MotionVariance {
			u.Motion = MotionDetected
		} else {
			u.Motion = MotionStill
		}
	}
	return u, true
}

// BlinkCount returns the blinks counted since the last reset
func (t *Tracker) BlinkCount() int {
	return t.blinkCount
}

// MotionSamples returns the number of buffered nose positions
func (t *Tracker) MotionSamples() int {
	return t.nose.Len()
}

// Reset clears blink count, EAR history and motion buffer
func (t *Tracker) Reset() {
	t.blinkCount = 0
	t.prevEAR = 0
	t.hasPrevEAR = false
	t.nose.Clear()
}

// EyeAspectRatio computes (|p2-p6| + |p3-p5|) / (2|p1-p4|) for a six point eye.
// A degenerate eye with zero width yields 0.
func EyeAspectRatio(eye []Point) float64 {
	if len(eye) < 6 {
		return 0
	}
	horizontal := distance(eye[0], eye[3])
	if horizontal == 0 {
		return 0
	}
	return (distance(eye[1], eye[5]) + distance(eye[2], eye[4])) / (2 * horizontal)
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
