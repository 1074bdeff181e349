package processor

import (
	"context"
	"image"
	"testing"
	"time"

	"face-door-lock/config"
	"face-door-lock/internal/access"
	"face-door-lock/internal/integrations/insightface"
	"face-door-lock/internal/integrations/opencv"
	"face-door-lock/internal/liveness"
	"face-door-lock/internal/tracker"

	"gocv.io/x/gocv"
)

type stubDetector struct {
	faces bool
}

func (d *stubDetector) DetectAndEncode(context.Context, *opencv.Frame) []insightface.Face {
	if !d.faces {
		return nil
	}
	return []insightface.Face{{Box: image.Rect(8, 8, 40, 40), Encoding: []float64{0.1, 0.2}}}
}

func (d *stubDetector) Landmarks(context.Context, gocv.Mat, image.Rectangle) ([]tracker.Point, bool) {
	return nil, false
}

// scriptedTicker treats every face as recognized and records whether the
// playback check of the first face had a previous frame to compare against.
type scriptedTicker struct {
	closeOn  map[int]bool
	unlockOn map[int]bool
	n        int
	checked  []bool
}

func (s *scriptedTicker) BeginTick(context.Context, time.Time) bool {
	s.n++
	return s.closeOn[s.n]
}

func (s *scriptedTicker) Tick(_ context.Context, _ time.Time, faces []access.Face) access.Outcome {
	out := access.Outcome{Faces: len(faces), Recognized: len(faces), DoorClosed: s.closeOn[s.n]}
	if len(faces) > 0 {
		_, ok := faces[0].Probe.Playback()
		s.checked = append(s.checked, ok)
		out.Unlocked = s.unlockOn[s.n]
	}
	return out
}

func (s *scriptedTicker) Status() access.Status {
	return access.Status{}
}

func TestProcessPlaybackWarmUp(t *testing.T) {
	ctx := context.Background()
	det := &stubDetector{}
	ticker := &scriptedTicker{
		closeOn:  map[int]bool{3: true},
		unlockOn: map[int]bool{7: true},
	}
	analyzer := liveness.NewAnalyzer(config.LivenessConfig{FrameDiffMin: 1})
	p := NewPipeline(config.CameraConfig{}, nil, det, analyzer, ticker, nil)
	defer p.prevGray.Close()
	defer p.noPrev.Close()

	// face, face, face with auto-close, face, empty, face, face with unlock, face
	script := []bool{true, true, true, true, false, true, true, true}
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, faces := range script {
		det.faces = faces
		f := opencv.NewFrame(gocv.NewMatWithSize(48, 48, gocv.MatTypeCV8UC3), uint64(i+1), start.Add(time.Duration(i)*time.Second/30))
		p.process(ctx, f)
		f.Close()
	}

	want := []bool{false, true, false, true, false, true, false}
	if len(ticker.checked) != len(want) {
		t.Fatalf("playback evaluated %d times, want %d", len(ticker.checked), len(want))
	}
	for i := range want {
		if ticker.checked[i] != want[i] {
			t.Fatalf("playback checked = %v, want %v", ticker.checked, want)
		}
	}
	if got := p.Stats().Ticks; got != uint64(len(script)) {
		t.Fatalf("ticks = %d, want %d", got, len(script))
	}
}
