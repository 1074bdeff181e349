package opencv

import (
	"fmt"
	"image"
	"image/color"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// MarkKind selects the overlay colour of a face box
type MarkKind int

const (
	MarkRecognized MarkKind = iota
	MarkUnknown
	MarkSpoof
)

// Mark is one annotated face box
type Mark struct {
	Box   image.Rectangle
	Label string
	Kind  MarkKind
}

// Snapshot is an annotated frame kept in memory
type Snapshot struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Faces     int       `json:"faces"`
	DoorState string    `json:"door_state"`
	URL       string    `json:"url"`
	ImageData []byte    `json:"-"`
}

// SnapshotService keeps the most recent annotated frames for the API
type SnapshotService struct {
	images     map[string]*Snapshot
	imagesList []*Snapshot
	maxImages  int
	mutex      sync.RWMutex
}

// NewSnapshotService creates a store holding up to maxImages frames
func NewSnapshotService(maxImages int) *SnapshotService {
	if maxImages <= 0 {
		maxImages = 20
	}
	return &SnapshotService{
		images:     make(map[string]*Snapshot),
		imagesList: make([]*Snapshot, 0, maxImages),
		maxImages:  maxImages,
	}
}

var markColors = map[MarkKind]color.RGBA{
	MarkRecognized: {0, 255, 0, 0},
	MarkUnknown:    {255, 0, 0, 0},
	MarkSpoof:      {255, 165, 0, 0},
}

// Capture draws the marks and the door state onto a copy of the frame and stores it
func (s *SnapshotService) Capture(f *Frame, marks []Mark, doorState string) error {
	vis := f.Color.Clone()
	defer vis.Close()

	for _, m := range marks {
		c := markColors[m.Kind]
		gocv.Rectangle(&vis, m.Box, c, 2)
		if m.Label != "" {
			gocv.PutText(&vis, m.Label, image.Point{X: m.Box.Min.X, Y: m.Box.Min.Y - 10},
				gocv.FontHersheySimplex, 0.7, c, 2)
		}
	}
	doorColor := color.RGBA{255, 0, 0, 0}
	if doorState == "OPEN" {
		doorColor = color.RGBA{0, 255, 0, 0}
	}
	gocv.PutText(&vis, doorState, image.Point{X: 50, Y: 30}, gocv.FontHersheySimplex, 0.9, doorColor, 2)

	data, err := EncodeJPEG(vis)
	if err != nil {
		return err
	}

	s.Add(&Snapshot{
		ID:        strconv.FormatUint(f.Seq, 10),
		Timestamp: f.At,
		Faces:     len(marks),
		DoorState: doorState,
		ImageData: data,
	})
	return nil
}

// Add stores a snapshot, evicting the oldest beyond the limit
func (s *SnapshotService) Add(snap *Snapshot) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	snap.URL = fmt.Sprintf("/api/snapshots/%s", snap.ID)
	if _, exists := s.images[snap.ID]; exists {
		for i, img := range s.imagesList {
			if img.ID == snap.ID {
				s.imagesList[i] = snap
				break
			}
		}
		s.images[snap.ID] = snap
		return
	}

	s.images[snap.ID] = snap
	s.imagesList = append(s.imagesList, snap)
	if len(s.imagesList) > s.maxImages {
		oldest := s.imagesList[0]
		delete(s.images, oldest.ID)
		s.imagesList = s.imagesList[1:]
	}
}

// Latest returns up to count snapshots, newest last
func (s *SnapshotService) Latest(count int) []*Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if count <= 0 || count > len(s.imagesList) {
		count = len(s.imagesList)
	}
	result := make([]*Snapshot, count)
	copy(result, s.imagesList[len(s.imagesList)-count:])
	return result
}

// Get returns a snapshot by id
func (s *SnapshotService) Get(id string) *Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.images[id]
}

// RegisterRoutes mounts the snapshot endpoints
func (s *SnapshotService) RegisterRoutes(router gin.IRouter) {
	router.GET("/snapshots", s.handleList)
	router.GET("/snapshots/latest", s.handleLatest)
	router.GET("/snapshots/:id", s.handleGet)
	log.Debug("Snapshot routes registered")
}

func (s *SnapshotService) handleList(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "10"))
	if err != nil {
		count = 10
	}
	images := s.Latest(count)
	c.JSON(http.StatusOK, gin.H{
		"count":     len(images),
		"snapshots": images,
	})
}

func (s *SnapshotService) handleLatest(c *gin.Context) {
	latest := s.Latest(1)
	if len(latest) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot available"})
		return
	}
	s.writeImage(c, latest[0])
}

func (s *SnapshotService) handleGet(c *gin.Context) {
	snap := s.Get(c.Param("id"))
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found", "requested_id": c.Param("id")})
		return
	}
	s.writeImage(c, snap)
}

func (s *SnapshotService) writeImage(c *gin.Context, snap *Snapshot) {
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, "image/jpeg", snap.ImageData)
}
