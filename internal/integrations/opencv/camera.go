package opencv

import (
	"fmt"
	"strconv"
	"sync"

	"face-door-lock/config"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Camera wraps the gocv capture device
type Camera struct {
	cfg     config.CameraConfig
	capture *gocv.VideoCapture
	mutex   sync.Mutex
}

// OpenCamera opens a device index ("0") or a stream URL. A camera that
// cannot be opened is a startup failure.
func OpenCamera(cfg config.CameraConfig) (*Camera, error) {
	var device interface{} = cfg.Device
	if id, err := strconv.Atoi(cfg.Device); err == nil {
		device = id
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("could not open camera %q: %w", cfg.Device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("camera %q is not available", cfg.Device)
	}

	if cfg.Width > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}

	log.WithFields(log.Fields{
		"device": cfg.Device,
		"width":  capture.Get(gocv.VideoCaptureFrameWidth),
		"height": capture.Get(gocv.VideoCaptureFrameHeight),
	}).Info("Camera opened")

	return &Camera{cfg: cfg, capture: capture}, nil
}

// Read grabs the next frame into dst. It returns false for an unreadable
// frame; the caller skips the tick.
func (c *Camera) Read(dst *gocv.Mat) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.capture == nil {
		return false
	}
	return c.capture.Read(dst) && !dst.Empty()
}

// Close releases the device
func (c *Camera) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}
