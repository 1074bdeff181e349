// Package liveness computes the per-frame spoof signals of a face region.
// All extractors are pure and clip the region to the frame; a crop with no
// area yields the safe default of each check.
package liveness

import (
	"image"

	"gocv.io/x/gocv"
)

// crop clips box to the bounds of m. ok is false when nothing is left.
func crop(m gocv.Mat, box image.Rectangle) (image.Rectangle, bool) {
	if m.Empty() {
		return image.Rectangle{}, false
	}
	r := box.Canon().Intersect(image.Rect(0, 0, m.Cols(), m.Rows()))
	return r, !r.Empty()
}

// laplacian returns the 64-bit Laplacian (aperture 1) of a grayscale crop.
// The caller closes the result.
func laplacian(gray gocv.Mat) gocv.Mat {
	lap := gocv.NewMat()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)
	return lap
}

// TextureVariance returns the variance of the Laplacian over the grayscale
// region. A degenerate region scores 0.
func TextureVariance(gray gocv.Mat, box image.Rectangle) float64 {
	r, ok := crop(gray, box)
	if !ok {
		return 0
	}
	region := gray.Region(r)
	defer region.Close()
	lap := laplacian(region)
	defer lap.Close()

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lap, &mean, &stddev)
	if stddev.Empty() {
		return 0
	}
	sd := stddev.GetDoubleAt(0, 0)
	return sd * sd
}

// hsvChannels converts the colour region to HSV and splits it. ok is false
// for a degenerate region; otherwise the caller closes the channels.
func hsvChannels(color gocv.Mat, box image.Rectangle) ([]gocv.Mat, bool) {
	r, ok := crop(color, box)
	if !ok {
		return nil, false
	}
	region := color.Region(r)
	defer region.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(region, &hsv, gocv.ColorBGRToHSV)
	return gocv.Split(hsv), true
}

func closeAll(mats []gocv.Mat) {
	for i := range mats {
		mats[i].Close()
	}
}

// SaturationMean returns the mean HSV saturation of the region
func SaturationMean(color gocv.Mat, box image.Rectangle) (float64, bool) {
	ch, ok := hsvChannels(color, box)
	if !ok {
		return 0, false
	}
	defer closeAll(ch)
	return ch[1].Mean().Val1, true
}

// BrightRatio returns the fraction of region pixels whose HSV value exceeds brightness
func BrightRatio(color gocv.Mat, box image.Rectangle, brightness float64) (float64, bool) {
	ch, ok := hsvChannels(color, box)
	if !ok {
		return 0, false
	}
	defer closeAll(ch)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(ch[2], &mask, float32(brightness), 255, gocv.ThresholdBinary)

	total := ch[2].Rows() * ch[2].Cols()
	if total == 0 {
		return 0, false
	}
	return float64(gocv.CountNonZero(mask)) / float64(total), true
}

// FrequencyEnergy returns the sum of the absolute Laplacian response over the
// bottom-right patch x patch corner of the region.
func FrequencyEnergy(gray gocv.Mat, box image.Rectangle, patch int) (float64, bool) {
	r, ok := crop(gray, box)
	if !ok {
		return 0, false
	}
	region := gray.Region(r)
	defer region.Close()
	lap := laplacian(region)
	defer lap.Close()

	if patch <= 0 {
		return 0, true
	}
	corner := lap.Region(image.Rect(max(0, lap.Cols()-patch), max(0, lap.Rows()-patch), lap.Cols(), lap.Rows()))
	defer corner.Close()
	return gocv.Norm(corner, gocv.NormL1), true
}

// FrameDifference returns the mean absolute grayscale difference of the
// region between two frames. ok is false without a comparable previous frame.
func FrameDifference(prev, cur gocv.Mat, box image.Rectangle) (float64, bool) {
	if prev.Empty() || prev.Rows() != cur.Rows() || prev.Cols() != cur.Cols() {
		return 0, false
	}
	r, ok := crop(cur, box)
	if !ok {
		return 0, false
	}
	a := prev.Region(r)
	defer a.Close()
	b := cur.Region(r)
	defer b.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a, b, &diff)
	return diff.Mean().Val1, true
}
