// Package quadstream implements the display sink: a client for the
// QuadStream companion service that renders the quad.
package quadstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"quadlink/internal/quad"
)

// Client pushes quad states to the QuadStream API. Sessions are cookie
// based; the login response carries the short_id that addresses the
// account's quad. Failures are reported to the caller but never retried
// here beyond one re-login on a rejected session.
type Client struct {
	baseURL    string
	username   string
	secret     string
	httpClient *http.Client
	log        *slog.Logger

	mu      sync.Mutex
	shortID string
}

// NewClient returns a Client for the given QuadStream endpoint and account.
func NewClient(baseURL, username, secret string, log *slog.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		secret:     secret,
		httpClient: &http.Client{Timeout: 30 * time.Second, Jar: jar},
		log:        log,
	}
}

type loginResponse struct {
	ShortID string `json:"short_id"`
}

// Login authenticates against QuadStream and records the account's short_id.
func (c *Client) Login(ctx context.Context) error {
	payload := map[string]string{
		"username": c.username,
		"secret":   c.secret,
	}

	resp, err := c.postJSON(ctx, c.baseURL+"/stream/api/login", payload)
	if err != nil {
		return fmt.Errorf("quadstream login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("quadstream login: unexpected status %d", resp.StatusCode)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("quadstream login: decode response: %w", err)
	}
	if lr.ShortID == "" {
		return fmt.Errorf("quadstream login: response missing short_id")
	}

	c.mu.Lock()
	c.shortID = lr.ShortID
	c.mu.Unlock()

	c.log.Info("quadstream login successful", slog.String("short_id", lr.ShortID))
	return nil
}

// Apply pushes the given quad state, logging in first if there is no
// session yet and once more if the current session is rejected.
func (c *Client) Apply(ctx context.Context, state quad.QuadState) error {
	if c.currentShortID() == "" {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}

	if err := c.update(ctx, state); err != nil {
		if !isSessionRejected(err) {
			return err
		}
		c.log.Warn("quadstream session rejected, logging in again")
		if err := c.Login(ctx); err != nil {
			return err
		}
		return c.update(ctx, state)
	}
	return nil
}

// quadPayload matches the QuadStream update API: one playback URL per slot,
// empty string for an empty slot.
type quadPayload struct {
	Stream1 string `json:"stream1"`
	Stream2 string `json:"stream2"`
	Stream3 string `json:"stream3"`
	Stream4 string `json:"stream4"`
}

type sessionRejectedError struct {
	status int
}

func (e *sessionRejectedError) Error() string {
	return fmt.Sprintf("quadstream session rejected with status %d", e.status)
}

func isSessionRejected(err error) bool {
	var sre *sessionRejectedError
	return errors.As(err, &sre)
}

func (c *Client) update(ctx context.Context, state quad.QuadState) error {
	payload := quadPayload{
		Stream1: state.Slots[0].URL,
		Stream2: state.Slots[1].URL,
		Stream3: state.Slots[2].URL,
		Stream4: state.Slots[3].URL,
	}

	url := fmt.Sprintf("%s/stream/api/stream/%s/update", c.baseURL, c.currentShortID())
	resp, err := c.postJSON(ctx, url, payload)
	if err != nil {
		return fmt.Errorf("quadstream update: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		c.log.Info("quadstream update successful",
			slog.Int("occupied_slots", state.OccupiedCount()))
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return &sessionRejectedError{status: resp.StatusCode}
	default:
		return fmt.Errorf("quadstream update: unexpected status %d", resp.StatusCode)
	}
}

func (c *Client) postJSON(ctx context.Context, url string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

func (c *Client) currentShortID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shortID
}
