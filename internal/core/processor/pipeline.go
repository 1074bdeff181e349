// Package processor drives the camera: a capture goroutine publishes frames
// into a single-slot mailbox and the analysis loop turns the newest frame
// into one access control tick.
package processor

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"face-door-lock/config"
	"face-door-lock/internal/access"
	"face-door-lock/internal/integrations/insightface"
	"face-door-lock/internal/integrations/opencv"
	"face-door-lock/internal/liveness"
	"face-door-lock/internal/tracker"
	"face-door-lock/internal/util/timezone"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

const snapshotInterval = time.Second

// FrameSource yields camera frames
type FrameSource interface {
	Read(dst *gocv.Mat) bool
}

// Detector finds faces with their encodings and extracts landmarks
type Detector interface {
	DetectAndEncode(ctx context.Context, f *opencv.Frame) []insightface.Face
	Landmarks(ctx context.Context, gray gocv.Mat, box image.Rectangle) ([]tracker.Point, bool)
}

// Ticker is the access control loop. BeginTick runs before the faces of the
// tick are bound and reports whether the session was reset.
type Ticker interface {
	BeginTick(ctx context.Context, now time.Time) bool
	Tick(ctx context.Context, now time.Time, faces []access.Face) access.Outcome
	Status() access.Status
}

// Stats counts pipeline activity
type Stats struct {
	Captured     uint64 `json:"captured"`
	ReadFailures uint64 `json:"read_failures"`
	Dropped      uint64 `json:"dropped"`
	Ticks        uint64 `json:"ticks"`
}

// Pipeline connects capture, detection, liveness probing and the controller
type Pipeline struct {
	cfg       config.CameraConfig
	source    FrameSource
	detector  Detector
	analyzer  *liveness.Analyzer
	ticker    Ticker
	snapshots *opencv.SnapshotService

	mailbox      *Mailbox[*opencv.Frame]
	prevGray     gocv.Mat
	noPrev       gocv.Mat
	warm         bool // session has seen a recognized face since its last reset
	lastSnapshot time.Time
	seq          uint64

	captured     atomic.Uint64
	readFailures atomic.Uint64
	ticks        atomic.Uint64
}

// NewPipeline creates a pipeline. snapshots may be nil.
func NewPipeline(cfg config.CameraConfig, source FrameSource, detector Detector, analyzer *liveness.Analyzer, ticker Ticker, snapshots *opencv.SnapshotService) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		source:    source,
		detector:  detector,
		analyzer:  analyzer,
		ticker:    ticker,
		snapshots: snapshots,
		mailbox:   NewMailbox(func(f *opencv.Frame) { f.Close() }),
		prevGray:  gocv.NewMat(),
		noPrev:    gocv.NewMat(),
	}
}

// Run captures and analyzes frames until ctx is cancelled. The stop signal
// is checked once per tick.
func (p *Pipeline) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.capture(ctx)
	}()

	logger := log.WithField("component", "processor")
	logger.Info("Analysis loop started")
	defer func() {
		p.mailbox.Close()
		wg.Wait()
		p.prevGray.Close()
		p.noPrev.Close()
		logger.WithField("ticks", p.ticks.Load()).Info("Analysis loop stopped")
	}()

	for {
		frame, ok := p.mailbox.Next()
		if !ok {
			return ctx.Err()
		}
		if ctx.Err() != nil {
			frame.Close()
			return ctx.Err()
		}
		p.process(ctx, frame)
		frame.Close()
	}
}

// capture reads the camera and publishes every frame. Unreadable frames are
// skipped after a short backoff.
func (p *Pipeline) capture(ctx context.Context) {
	defer p.mailbox.Close()

	backoff := p.cfg.ReadBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	for ctx.Err() == nil {
		mat := gocv.NewMat()
		if !p.source.Read(&mat) {
			mat.Close()
			if p.readFailures.Add(1)%50 == 1 {
				log.WithField("component", "processor").Warn("Could not read frame from camera, skipping")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}

		p.seq++
		p.captured.Add(1)
		p.mailbox.Publish(opencv.NewFrame(mat, p.seq, timezone.Now()))
	}
}

// process runs one tick on f. The frame stays open until the tick returns,
// so lazy probes, landmark calls and evidence writes can still use it.
func (p *Pipeline) process(ctx context.Context, f *opencv.Frame) {
	detected := p.detector.DetectAndEncode(ctx, f)

	if p.ticker.BeginTick(ctx, f.At) {
		p.warm = false
	}
	// the first recognized tick of a session is never judged for playback
	prev := p.prevGray
	if !p.warm {
		prev = p.noPrev
	}

	faces := make([]access.Face, 0, len(detected))
	for _, d := range detected {
		box := d.Box
		faces = append(faces, access.Face{
			Box:      box,
			Encoding: d.Encoding,
			Probe:    p.analyzer.Probe(f.Color, f.Gray, prev, box),
			Landmarks: func() ([]tracker.Point, bool) {
				return p.detector.Landmarks(ctx, f.Gray, box)
			},
			Evidence: func(path string) error {
				return f.WriteCrop(box, path)
			},
		})
	}

	out := p.ticker.Tick(ctx, f.At, faces)
	p.ticks.Add(1)

	switch {
	case out.Faces == 0 || out.Unlocked:
		p.warm = false
	case out.Recognized > 0:
		p.warm = true
	}
	f.Gray.CopyTo(&p.prevGray)
	p.snapshot(f, out)
}

func (p *Pipeline) snapshot(f *opencv.Frame, out access.Outcome) {
	if p.snapshots == nil || out.Faces == 0 && !out.DoorClosed {
		return
	}
	if !out.Unlocked && !out.Alerted && f.At.Sub(p.lastSnapshot) < snapshotInterval {
		return
	}
	p.lastSnapshot = f.At

	marks := make([]opencv.Mark, 0, len(out.Results))
	for _, r := range out.Results {
		m := opencv.Mark{Box: r.Box, Label: r.Identity, Kind: opencv.MarkRecognized}
		switch {
		case r.Spoof:
			m.Kind = opencv.MarkSpoof
			m.Label = "SPOOF"
		case r.Identity == "":
			m.Kind = opencv.MarkUnknown
			m.Label = "Unknown"
		}
		marks = append(marks, m)
	}

	doorState := p.ticker.Status().Door.StateName
	if err := p.snapshots.Capture(f, marks, doorState); err != nil {
		log.WithField("component", "processor").WithError(err).Debug("Could not store snapshot")
	}
}

// Stats returns the pipeline counters
func (p *Pipeline) Stats() Stats {
	return Stats{
		Captured:     p.captured.Load(),
		ReadFailures: p.readFailures.Load(),
		Dropped:      p.mailbox.Drops(),
		Ticks:        p.ticks.Load(),
	}
}
