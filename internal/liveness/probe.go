package liveness

import (
	"image"

	"face-door-lock/config"

	"gocv.io/x/gocv"
)

// Analyzer binds the liveness thresholds
type Analyzer struct {
	cfg config.LivenessConfig
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(cfg config.LivenessConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Probe returns the signals of one face. prev may be an empty Mat when no
// previous frame exists. The Mats must stay open while the probe is used.
func (a *Analyzer) Probe(color, gray, prev gocv.Mat, box image.Rectangle) *FrameProbe {
	return &FrameProbe{
		cfg:    a.cfg,
		color:  color,
		gray:   gray,
		prev:   prev,
		box:    box,
		values: make(map[string]float64),
	}
}

// FrameProbe evaluates signals lazily and remembers the raw values it computed
type FrameProbe struct {
	cfg     config.LivenessConfig
	color   gocv.Mat
	gray    gocv.Mat
	prev    gocv.Mat
	box     image.Rectangle
	texture *float64
	values  map[string]float64
}

// Texture returns the Laplacian variance of the face
func (p *FrameProbe) Texture() float64 {
	if p.texture == nil {
		v := TextureVariance(p.gray, p.box)
		p.texture = &v
		p.values["texture"] = v
	}
	return *p.texture
}

// SaturationAbnormal reports a desaturated reproduction
func (p *FrameProbe) SaturationAbnormal() bool {
	s, ok := SaturationMean(p.color, p.box)
	if !ok {
		return false
	}
	p.values["saturation"] = s
	return s < p.cfg.MinSaturation
}

// Glare reports a screen or glossy photo reflection
func (p *FrameProbe) Glare() bool {
	ratio, ok := BrightRatio(p.color, p.box, p.cfg.GlareBrightness)
	if !ok {
		return false
	}
	p.values["glare_ratio"] = ratio
	return ratio > p.cfg.GlareRatio
}

// FrequencyArtifact reports moiré or compression energy in the corner patch
func (p *FrameProbe) FrequencyArtifact() bool {
	sum, ok := FrequencyEnergy(p.gray, p.box, p.cfg.FrequencyPatch)
	if !ok {
		return false
	}
	p.values["frequency_sum"] = sum
	return sum > p.cfg.FrequencySum
}

// Playback reports an unnaturally static region. ok is false without a
// previous frame; a degenerate region is checked and not spoof.
func (p *FrameProbe) Playback() (spoof bool, ok bool) {
	if p.prev.Empty() {
		return false, false
	}
	diff, ok := FrameDifference(p.prev, p.gray, p.box)
	if !ok {
		return false, true
	}
	p.values["frame_diff"] = diff
	return diff < p.cfg.FrameDiffMin, true
}

// Values returns the raw signal values computed so far
func (p *FrameProbe) Values() map[string]float64 {
	out := make(map[string]float64, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}
