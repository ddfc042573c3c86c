// Package webhook implements the fire-and-forget change notifier: a single
// POST per quad change, never retried, failures only logged.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"quadlink/internal/quad"
)

// Notifier posts quad change events to a configured URL.
type Notifier struct {
	url        string
	httpClient *http.Client
	log        *slog.Logger
}

// NewNotifier returns a Notifier for the given URL with the given request
// timeout.
func NewNotifier(url string, timeout time.Duration, log *slog.Logger) *Notifier {
	return &Notifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type event struct {
	Event string                        `json:"event"`
	Quad  [quad.SlotCount]quad.Occupant `json:"quad"`
}

// Notify posts the new quad state. Any 2xx response is success; everything
// else, including transport errors, is logged and swallowed.
func (n *Notifier) Notify(ctx context.Context, state quad.QuadState) {
	body, err := json.Marshal(event{Event: "quad_updated", Quad: state.Slots})
	if err != nil {
		n.log.Warn("webhook payload encode failed", slog.String("error", err.Error()))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.log.Warn("webhook request build failed", slog.String("error", err.Error()))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.log.Warn("webhook failed", slog.String("url", n.url), slog.String("error", err.Error()))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.log.Warn("webhook failed",
			slog.String("url", n.url),
			slog.Int("status", resp.StatusCode))
		return
	}

	n.log.Debug("webhook delivered", slog.String("url", n.url))
}
