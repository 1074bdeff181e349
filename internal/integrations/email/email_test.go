package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"face-door-lock/config"
	"face-door-lock/internal/alert"
)

func testNotification(t *testing.T) alert.Notification {
	t.Helper()
	n := alert.NewNotification(t.TempDir(), time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC), 2100*time.Millisecond)
	if err := os.WriteFile(n.ImagePath, []byte{0xff, 0xd8, 0xff, 0xd9}, 0o644); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestNewDispatcher(t *testing.T) {
	base := config.Default().Alert
	base.Sender = "door@example.com"
	base.Recipient = "owner@example.com"

	tests := []struct {
		name    string
		mutate  func(*config.AlertConfig)
		wantErr error
	}{
		{"smtp default", func(c *config.AlertConfig) {}, nil},
		{"missing recipient", func(c *config.AlertConfig) { c.Recipient = "" }, alert.ErrNotConfigured},
		{"resend without key", func(c *config.AlertConfig) { c.Provider = "resend" }, alert.ErrNotConfigured},
		{"resend", func(c *config.AlertConfig) { c.Provider = "resend"; c.ResendAPIKey = "re_test" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			d, err := NewDispatcher(cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || d == nil {
				t.Fatalf("NewDispatcher: %v", err)
			}
		})
	}
}

func TestRenderBody(t *testing.T) {
	body, err := renderBody(testNotification(t))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body, "2.1s") || !strings.Contains(body, "Unknown person") {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestSMTPMessageCarriesAttachment(t *testing.T) {
	cfg := config.Default().Alert
	cfg.Sender = "door@example.com"
	cfg.Recipient = "owner@example.com"

	m, err := NewSMTPDispatcher(cfg).buildMessage(testNotification(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.GetAttachments()) != 1 {
		t.Fatalf("attachments = %d, want 1", len(m.GetAttachments()))
	}
}

func TestResendDispatcherPostsAttachment(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/emails") {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"49a3999c-0ce1-4ea6-ab68-afcd6dc2e794"}`))
	}))
	defer srv.Close()

	cfg := config.Default().Alert
	cfg.Sender = "door@example.com"
	cfg.Recipient = "owner@example.com"
	cfg.ResendAPIKey = "re_test"
	d := NewResendDispatcher(cfg)
	d.client.BaseURL, _ = url.Parse(srv.URL + "/")

	n := testNotification(t)
	if err := d.Send(context.Background(), n); err != nil {
		t.Fatalf("Send: %v", err)
	}
	attachments, _ := got["attachments"].([]interface{})
	if len(attachments) != 1 {
		t.Fatalf("request attachments %v", got["attachments"])
	}
	if name := attachments[0].(map[string]interface{})["filename"]; name != filepath.Base(n.ImagePath) {
		t.Fatalf("attachment filename %v", name)
	}
}
