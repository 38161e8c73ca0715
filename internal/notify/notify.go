package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"time"

	"github.com/warroomlabs/warroom/internal/incident"
)

// Config holds notification settings.
type Config struct {
	Enabled bool   `json:"enabled"`
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

// Notifier fires system notifications and optional webhook POSTs when a run
// suspends waiting for a human decision.
type Notifier struct {
	cfg    Config
	logger *slog.Logger
}

// New returns a Notifier with the given config.
func New(cfg Config, logger *slog.Logger) *Notifier {
	return &Notifier{cfg: cfg, logger: logger}
}

// ApprovalRequested announces that inc needs approver's decision within
// window. A nil Notifier is safe to call.
func (n *Notifier) ApprovalRequested(inc *incident.Incident, approver string, window time.Duration) {
	if n == nil || !n.cfg.Enabled {
		return
	}

	msg := fmt.Sprintf("%s deployment needs %s's approval (auto-resolves in %s)",
		inc.Service, approver, window.Round(time.Second))
	n.sendSystemNotification(msg)

	if n.cfg.Webhook != "" {
		n.sendWebhook(inc, approver)
	}
	if n.cfg.NtfyURL != "" {
		n.sendNtfy(inc, approver)
	}
}

func (n *Notifier) sendSystemNotification(msg string) {
	script := fmt.Sprintf(
		`display notification %q with title "warroom"`,
		msg,
	)
	exec.Command("osascript", "-e", script).Run()
}

type webhookPayload struct {
	Service   string `json:"service"`
	ErrorCode string `json:"error_code"`
	File      string `json:"file"`
	Approver  string `json:"approver"`
	Timestamp string `json:"timestamp"`
}

func (n *Notifier) sendWebhook(inc *incident.Incident, approver string) {
	payload := webhookPayload{
		Service:   inc.Service,
		ErrorCode: inc.ErrorCode,
		File:      inc.FileName,
		Approver:  approver,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	client := &http.Client{Timeout: 5 * time.Second}
	if _, err := client.Post(n.cfg.Webhook, "application/json", bytes.NewReader(data)); err != nil {
		n.logger.Warn("notify: webhook POST failed", "url", n.cfg.Webhook, "error", err)
	}
}

type ntfyPayload struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

func (n *Notifier) sendNtfy(inc *incident.Incident, approver string) {
	payload := ntfyPayload{
		Title:    fmt.Sprintf("%s needs approval", inc.Service),
		Message:  fmt.Sprintf("%s · %s · waiting on %s", inc.ErrorCode, inc.ErrorMessage, approver),
		Priority: 4,
		Tags:     []string{"rotating_light"},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(n.cfg.NtfyURL, "application/json", bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("notify: ntfy POST failed", "url", n.cfg.NtfyURL, "error", err)
		return
	}
	resp.Body.Close()
}
