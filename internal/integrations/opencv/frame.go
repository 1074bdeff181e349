package opencv

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// Frame is one captured image with its grayscale derivative
type Frame struct {
	Seq   uint64
	At    time.Time
	Color gocv.Mat
	Gray  gocv.Mat
}

// NewFrame takes ownership of color and derives the grayscale image
func NewFrame(color gocv.Mat, seq uint64, at time.Time) *Frame {
	gray := gocv.NewMat()
	gocv.CvtColor(color, &gray, gocv.ColorBGRToGray)
	return &Frame{Seq: seq, At: at, Color: color, Gray: gray}
}

// Close releases both images
func (f *Frame) Close() {
	f.Color.Close()
	f.Gray.Close()
}

// Bounds returns the full-resolution frame rectangle
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Color.Cols(), f.Color.Rows())
}

// Downscale resizes the colour image by scale for detection. The caller
// closes the result.
func (f *Frame) Downscale(scale float64) gocv.Mat {
	small := gocv.NewMat()
	if scale <= 0 || scale >= 1 {
		f.Color.CopyTo(&small)
		return small
	}
	gocv.Resize(f.Color, &small, image.Point{}, scale, scale, gocv.InterpolationLinear)
	return small
}

// WriteCrop stores the region of the colour image as an image file. The
// region is clipped to the frame.
func (f *Frame) WriteCrop(box image.Rectangle, path string) error {
	r := box.Canon().Intersect(f.Bounds())
	if r.Empty() {
		return fmt.Errorf("crop %v lies outside the frame", box)
	}
	region := f.Color.Region(r)
	defer region.Close()

	if !gocv.IMWrite(path, region) {
		return fmt.Errorf("could not write %s", path)
	}
	return nil
}

// ScaleRect maps a rectangle found on a downscaled image back to full
// resolution. factor is the inverse of the detection scale.
func ScaleRect(r image.Rectangle, factor float64) image.Rectangle {
	if factor == 1 {
		return r
	}
	return image.Rect(
		int(float64(r.Min.X)*factor),
		int(float64(r.Min.Y)*factor),
		int(float64(r.Max.X)*factor),
		int(float64(r.Max.Y)*factor),
	)
}

// EncodeJPEG encodes m as JPEG
func EncodeJPEG(m gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(".jpg", m)
	if err != nil {
		return nil, fmt.Errorf("could not encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
