package insightface

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"face-door-lock/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "version": "0.7", "backend": "onnx"})
	})
	mux.HandleFunc("/detect", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("model") != "hog" {
			http.Error(w, "model not forwarded", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "ok",
			"faces_count": 2,
			"faces": []map[string]interface{}{
				{"bbox": []int{10, 20, 40, 60}, "confidence": 0.98, "embedding": []float64{0.1, 0.2}},
				{"bbox": []int{1, 2}, "confidence": 0.5},
			},
		})
	})
	mux.HandleFunc("/landmarks", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil || r.FormValue("bbox") != "5,6,25,36" {
			http.Error(w, "bad bbox", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "ok",
			"landmarks": [][2]float64{{1, 2}, {3, 4}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(url string) *APIClient {
	return NewAPIClient(config.DetectionConfig{URL: url, Model: "hog", Timeout: 2 * time.Second})
}

func TestPing(t *testing.T) {
	srv := newTestServer(t)
	ok, err := testClient(srv.URL).Ping(context.Background())
	if err != nil || !ok {
		t.Fatalf("Ping = %v, %v", ok, err)
	}
}

func TestDetectFacesSkipsIncompleteFaces(t *testing.T) {
	srv := newTestServer(t)
	faces, err := testClient(srv.URL).DetectFaces(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("DetectFaces: %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("got %d faces, want 1", len(faces))
	}
	if faces[0].Box != image.Rect(10, 20, 40, 60) || len(faces[0].Embedding) != 2 {
		t.Fatalf("unexpected face %+v", faces[0])
	}
}

func TestLandmarks(t *testing.T) {
	srv := newTestServer(t)
	pts, err := testClient(srv.URL).Landmarks(context.Background(), []byte("jpeg"), image.Rect(5, 6, 25, 36))
	if err != nil {
		t.Fatalf("Landmarks: %v", err)
	}
	if len(pts) != 2 || pts[1] != [2]float64{3, 4} {
		t.Fatalf("landmarks %v", pts)
	}
}

func TestServerErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).DetectFaces(context.Background(), []byte("jpeg")); err == nil {
		t.Fatal("expected an error for status 500")
	}
}

func TestExpand(t *testing.T) {
	got := expand(image.Rect(100, 100, 200, 150), 0.2)
	if want := image.Rect(80, 90, 220, 160); got != want {
		t.Fatalf("expand = %v, want %v", got, want)
	}
}
