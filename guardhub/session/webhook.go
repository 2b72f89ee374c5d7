package session

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// enforcement request timeout; a slow proxy callback must never hold up a
// punishment operation.
const requestTimeout = 5 * time.Second

// Webhook is a Controller that forwards enforcement actions to the fronting
// proxy over HTTP. Delivery is best-effort: failures are logged, never
// surfaced, since the punishment bookkeeping must proceed regardless.
type Webhook struct {
	log *slog.Logger
	url string
	key string

	client *http.Client
}

// NewWebhook creates a controller posting enforcement actions to the given
// callback URL, authenticated with the given key.
func NewWebhook(log *slog.Logger, url, key string) *Webhook {
	return &Webhook{
		log: log,
		url: url,
		key: key,
		client: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Disconnect ...
func (w *Webhook) Disconnect(message string) {
	w.post("disconnect", message)
}

// Message ...
func (w *Webhook) Message(message string) {
	w.post("message", message)
}

// post ...
func (w *Webhook) post(action, message string) {
	body, err := json.Marshal(map[string]string{
		"action":  action,
		"message": message,
	})
	if err != nil {
		w.log.Error("failed to marshal enforcement action", "action", action, "error", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewBuffer(body))
	if err != nil {
		w.log.Error("failed to create enforcement request", "action", action, "error", err)
		return
	}
	req.Header.Set("authorization", w.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.log.Warn("enforcement callback failed", "action", action, "error", err)
		return
	}
	_ = resp.Body.Close()
}
