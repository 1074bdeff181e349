package opencv

import (
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gocv.io/x/gocv"
)

func testFrame(seq uint64) *Frame {
	color := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(30, 90, 160, 0), 120, 160, gocv.MatTypeCV8UC3)
	return NewFrame(color, seq, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
}

func TestScaleRect(t *testing.T) {
	got := ScaleRect(image.Rect(10, 20, 30, 40), 4)
	if want := image.Rect(40, 80, 120, 160); got != want {
		t.Fatalf("ScaleRect = %v, want %v", got, want)
	}
}

func TestFrameDerivesGrayAndDownscales(t *testing.T) {
	f := testFrame(1)
	defer f.Close()

	if f.Gray.Channels() != 1 || f.Gray.Rows() != 120 {
		t.Fatalf("gray image %dx%d with %d channels", f.Gray.Cols(), f.Gray.Rows(), f.Gray.Channels())
	}
	small := f.Downscale(0.25)
	defer small.Close()
	if small.Cols() != 40 || small.Rows() != 30 {
		t.Fatalf("downscaled to %dx%d, want 40x30", small.Cols(), small.Rows())
	}
}

func TestWriteCrop(t *testing.T) {
	f := testFrame(1)
	defer f.Close()
	path := filepath.Join(t.TempDir(), "unknown.jpg")

	if err := f.WriteCrop(image.Rect(100, 80, 200, 200), path); err != nil {
		t.Fatalf("WriteCrop: %v", err)
	}
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Cols() != 60 || img.Rows() != 40 {
		t.Fatalf("crop is %dx%d, want clipped 60x40", img.Cols(), img.Rows())
	}

	if err := f.WriteCrop(image.Rect(500, 500, 600, 600), path); err == nil {
		t.Fatal("crop outside the frame must fail")
	}
}

func TestSnapshotServiceKeepsLatest(t *testing.T) {
	s := NewSnapshotService(2)
	for seq := uint64(1); seq <= 3; seq++ {
		f := testFrame(seq)
		err := s.Capture(f, []Mark{{Box: image.Rect(10, 10, 50, 50), Label: "alice", Kind: MarkRecognized}}, "LOCKED")
		f.Close()
		if err != nil {
			t.Fatalf("Capture: %v", err)
		}
	}

	if s.Get("1") != nil {
		t.Fatal("oldest snapshot should be evicted")
	}
	latest := s.Latest(0)
	if len(latest) != 2 || latest[1].ID != "3" {
		t.Fatalf("latest snapshots %+v", latest)
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	s.RegisterRoutes(router.Group("/api"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshots/latest", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Fatalf("latest: status %d content type %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshots?count=5", nil))
	var body struct {
		Count     int        `json:"count"`
		Snapshots []Snapshot `json:"snapshots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 2 || body.Snapshots[0].URL != "/api/snapshots/2" {
		t.Fatalf("list body %+v", body)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshots/99", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing snapshot status %d", rec.Code)
	}
}
