package insightface

import (
	"context"
	"image"
	"time"

	"face-door-lock/config"
	"face-door-lock/internal/integrations/opencv"
	"face-door-lock/internal/tracker"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// landmarkMargin widens the face box before cropping for landmark extraction
const landmarkMargin = 0.2

// Service detects faces on a downscaled frame and maps the results back to
// full resolution. Service failures yield no faces or no landmarks; they are
// never fatal to the loop.
type Service struct {
	client *APIClient
	config config.DetectionConfig
}

// Face is a detection in full-resolution coordinates
type Face struct {
	Box      image.Rectangle
	Encoding []float64
}

// NewService creates a provider for the configured service
func NewService(cfg config.DetectionConfig) *Service {
	return &Service{
		client: NewAPIClient(cfg),
		config: cfg,
	}
}

// IsAvailable reports whether the service answers its health check
func (s *Service) IsAvailable(ctx context.Context) bool {
	available, err := s.client.Ping(ctx)
	if err != nil {
		log.WithFields(logFields).WithError(err).Warn("Face service health check failed")
	}
	return available
}

// WaitAvailable polls the health check until it succeeds or ctx ends
func (s *Service) WaitAvailable(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if s.IsAvailable(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// DetectAndEncode returns the faces of the frame
func (s *Service) DetectAndEncode(ctx context.Context, f *opencv.Frame) []Face {
	small := f.Downscale(s.config.Scale)
	defer small.Close()

	data, err := opencv.EncodeJPEG(small)
	if err != nil {
		log.WithFields(logFields).WithError(err).Warn("Could not encode frame for detection")
		return nil
	}

	detections, err := s.client.DetectFaces(ctx, data)
	if err != nil {
		log.WithFields(logFields).WithError(err).Warn("Face detection failed, treating tick as empty")
		return nil
	}

	factor := float64(f.Color.Cols()) / float64(small.Cols())
	faces := make([]Face, 0, len(detections))
	for _, d := range detections {
		faces = append(faces, Face{
			Box:      opencv.ScaleRect(d.Box, factor),
			Encoding: d.Embedding,
		})
	}
	return faces
}

// Landmarks extracts the landmarks of the face at box from the grayscale frame.
// ok is false when the service could not provide them.
func (s *Service) Landmarks(ctx context.Context, gray gocv.Mat, box image.Rectangle) ([]tracker.Point, bool) {
	area := expand(box, landmarkMargin).Intersect(image.Rect(0, 0, gray.Cols(), gray.Rows()))
	if area.Empty() {
		return nil, false
	}
	region := gray.Region(area)
	defer region.Close()

	data, err := opencv.EncodeJPEG(region)
	if err != nil {
		return nil, false
	}

	rel := box.Sub(area.Min)
	raw, err := s.client.Landmarks(ctx, data, rel)
	if err != nil {
		log.WithFields(logFields).WithError(err).Debug("Landmark extraction failed")
		return nil, false
	}
	if len(raw) == 0 {
		return nil, false
	}

	points := make([]tracker.Point, len(raw))
	for i, p := range raw {
		points[i] = tracker.Point{
			X: p[0] + float64(area.Min.X),
			Y: p[1] + float64(area.Min.Y),
		}
	}
	return points, true
}

func expand(r image.Rectangle, margin float64) image.Rectangle {
	dx := int(float64(r.Dx()) * margin)
	dy := int(float64(r.Dy()) * margin)
	return image.Rect(r.Min.X-dx, r.Min.Y-dy, r.Max.X+dx, r.Max.Y+dy)
}
