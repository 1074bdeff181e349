package insightface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"

	"face-door-lock/config"

	log "github.com/sirupsen/logrus"
)

var logFields = log.Fields{
	"component": "insightface",
}

// APIClient talks to the detection/encoding/landmark service
type APIClient struct {
	config     config.DetectionConfig
	httpClient *http.Client
}

type apiInfoResponse struct {
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	Backend   string   `json:"backend"`
	Providers []string `json:"providers"`
}

type apiDetectResponse struct {
	Status     string `json:"status"`
	FacesCount int    `json:"faces_count"`
	Faces      []struct {
		BoundingBox []int     `json:"bbox"`
		Confidence  float64   `json:"confidence"`
		Embedding   []float64 `json:"embedding"`
	} `json:"faces"`
	ProcessTime float64 `json:"process_time"`
}

type apiLandmarksResponse struct {
	Status    string       `json:"status"`
	Landmarks [][2]float64 `json:"landmarks"`
}

// Detection is one face returned by /detect in the coordinates of the sent image
type Detection struct {
	Box        image.Rectangle
	Confidence float64
	Embedding  []float64
}

// NewAPIClient creates a client for the configured service
func NewAPIClient(cfg config.DetectionConfig) *APIClient {
	return &APIClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Ping checks that the service is up
func (c *APIClient) Ping(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL+"/info", nil)
	if err != nil {
		return false, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("error connecting to face service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("face service not available, status: %d", resp.StatusCode)
	}

	var info apiInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return false, fmt.Errorf("error decoding response: %w", err)
	}

	log.WithFields(logFields).WithFields(log.Fields{
		"version": info.Version,
		"backend": info.Backend,
	}).Debug("Face service reachable")
	return info.Status == "ok", nil
}

// DetectFaces posts a JPEG image and returns the detected faces with their encodings
func (c *APIClient) DetectFaces(ctx context.Context, jpegData []byte) ([]Detection, error) {
	var apiResp apiDetectResponse
	err := c.postImage(ctx, "/detect", jpegData, map[string]string{
		"model":             c.config.Model,
		"extract_embedding": "true",
	}, &apiResp)
	if err != nil {
		return nil, err
	}
	if apiResp.Status != "ok" {
		return nil, fmt.Errorf("API error: %s", apiResp.Status)
	}

	detections := make([]Detection, 0, len(apiResp.Faces))
	for _, f := range apiResp.Faces {
		if len(f.BoundingBox) != 4 || len(f.Embedding) == 0 {
			log.WithFields(logFields).Debug("Skipping face without bounding box or embedding")
			continue
		}
		detections = append(detections, Detection{
			Box:        image.Rect(f.BoundingBox[0], f.BoundingBox[1], f.BoundingBox[2], f.BoundingBox[3]),
			Confidence: f.Confidence,
			Embedding:  f.Embedding,
		})
	}

	log.WithFields(logFields).Debugf("Detected %d faces in %.3fs", len(detections), apiResp.ProcessTime)
	return detections, nil
}

// Landmarks posts a grayscale JPEG and the face box within it and returns
// the 68 landmark points in image coordinates.
func (c *APIClient) Landmarks(ctx context.Context, jpegData []byte, box image.Rectangle) ([][2]float64, error) {
	var apiResp apiLandmarksResponse
	err := c.postImage(ctx, "/landmarks", jpegData, map[string]string{
		"bbox": fmt.Sprintf("%d,%d,%d,%d", box.Min.X, box.Min.Y, box.Max.X, box.Max.Y),
	}, &apiResp)
	if err != nil {
		return nil, err
	}
	if apiResp.Status != "ok" {
		return nil, fmt.Errorf("API error: %s", apiResp.Status)
	}
	return apiResp.Landmarks, nil
}

func (c *APIClient) postImage(ctx context.Context, path string, jpegData []byte, fields map[string]string, out interface{}) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return fmt.Errorf("error creating form field: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(jpegData)); err != nil {
		return fmt.Errorf("error copying image data: %w", err)
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := writer.WriteField(k, v); err != nil {
			return fmt.Errorf("error writing %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("error closing form writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL+path, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error in HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status: %d, response: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}
