package notify_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/warroomlabs/warroom/internal/incident"
	"github.com/warroomlabs/warroom/internal/notify"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testIncident() *incident.Incident {
	return &incident.Incident{
		Service:      "billing",
		ErrorCode:    "BILLING_400",
		ErrorMessage: "payment request missing required field",
		FileName:     "billing/validate.go",
	}
}

func TestNilNotifierIsSafe(t *testing.T) {
	var n *notify.Notifier
	n.ApprovalRequested(testIncident(), "Dana", 15*time.Second)
}

func TestDisabledNotifierPostsNothing(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	n := notify.New(notify.Config{Enabled: false, Webhook: srv.URL}, discard())
	n.ApprovalRequested(testIncident(), "Dana", 15*time.Second)
	if called {
		t.Error("disabled notifier hit the webhook")
	}
}

func TestWebhookPayload(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type: %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer srv.Close()

	n := notify.New(notify.Config{Enabled: true, Webhook: srv.URL}, discard())
	n.ApprovalRequested(testIncident(), "Dana", 15*time.Second)

	if got["service"] != "billing" || got["error_code"] != "BILLING_400" {
		t.Errorf("payload: %v", got)
	}
	if got["file"] != "billing/validate.go" || got["approver"] != "Dana" {
		t.Errorf("payload: %v", got)
	}
	if _, err := time.Parse(time.RFC3339, got["timestamp"]); err != nil {
		t.Errorf("timestamp %q not RFC3339: %v", got["timestamp"], err)
	}
}

func TestNtfyPayload(t *testing.T) {
	var got struct {
		Title    string   `json:"title"`
		Message  string   `json:"message"`
		Priority int      `json:"priority"`
		Tags     []string `json:"tags"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer srv.Close()

	n := notify.New(notify.Config{Enabled: true, NtfyURL: srv.URL}, discard())
	n.ApprovalRequested(testIncident(), "Dana", 15*time.Second)

	if got.Title != "billing needs approval" {
		t.Errorf("title: %q", got.Title)
	}
	if got.Priority != 4 {
		t.Errorf("priority: %d", got.Priority)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "rotating_light" {
		t.Errorf("tags: %v", got.Tags)
	}
}
