// Package twitch implements the metadata source: a Twitch Helix API client
// that resolves tracked channel logins into live stream candidates.
package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"quadlink/internal/quad"
)

const (
	defaultAuthURL = "https://id.twitch.tv"
	defaultAPIURL  = "https://api.twitch.tv"

	// Helix accepts at most 100 user_login parameters per streams request.
	maxLoginsPerRequest = 100

	// Renew app tokens this long before their reported expiry.
	tokenExpirySlack = time.Minute
)

// Client fetches live stream metadata from the Twitch Helix API using an
// app access token (client-credentials grant). The token is cached and
// renewed on expiry or rejection.
type Client struct {
	clientID     string
	clientSecret string
	authURL      string
	apiURL       string
	httpClient   *http.Client
	log          *slog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient returns a Client against the public Twitch endpoints.
func NewClient(clientID, clientSecret string, log *slog.Logger) *Client {
	return NewClientWithEndpoints(clientID, clientSecret, defaultAuthURL, defaultAPIURL, log)
}

// NewClientWithEndpoints returns a Client against custom endpoints.
// Useful for testing against httptest servers.
func NewClientWithEndpoints(clientID, clientSecret, authURL, apiURL string, log *slog.Logger) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		authURL:      strings.TrimRight(authURL, "/"),
		apiURL:       strings.TrimRight(apiURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		log:          log,
	}
}

// FetchCandidates returns one StreamCandidate per currently-live channel
// among the given logins. Channels that are offline are simply absent from
// the result; a transport or API failure is returned as an error and the
// caller treats it as "no new information this cycle".
func (c *Client) FetchCandidates(ctx context.Context, logins []string) ([]quad.StreamCandidate, error) {
	var candidates []quad.StreamCandidate

	for start := 0; start < len(logins); start += maxLoginsPerRequest {
		end := min(start+maxLoginsPerRequest, len(logins))
		batch, err := c.fetchBatch(ctx, logins[start:end])
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, batch...)
	}

	return candidates, nil
}

type streamsResponse struct {
	Data []struct {
		UserID    string `json:"user_id"`
		UserLogin string `json:"user_login"`
		UserName  string `json:"user_name"`
		GameName  string `json:"game_name"`
		Title     string `json:"title"`
		Type      string `json:"type"`
	} `json:"data"`
}

func (c *Client) fetchBatch(ctx context.Context, logins []string) ([]quad.StreamCandidate, error) {
	body, err := c.getStreams(ctx, logins, false)
	if err != nil {
		return nil, err
	}

	var resp streamsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode streams response: %w", err)
	}

	candidates := make([]quad.StreamCandidate, 0, len(resp.Data))
	for _, s := range resp.Data {
		candidates = append(candidates, quad.StreamCandidate{
			ChannelID: s.UserID,
			Author:    s.UserName,
			Category:  s.GameName,
			Title:     s.Title,
			URL:       "https://twitch.tv/" + s.UserLogin,
			IsLive:    s.Type == "live",
		})
	}
	return candidates, nil
}

// getStreams performs one GET /helix/streams call, refreshing the token and
// retrying once if the API rejects it.
func (c *Client) getStreams(ctx context.Context, logins []string, retried bool) ([]byte, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	for _, login := range logins {
		params.Add("user_login", login)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.apiURL+"/helix/streams?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-Id", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("helix streams request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && !retried {
		c.log.Debug("helix token rejected, refreshing")
		c.invalidateToken()
		return c.getStreams(ctx, logins, true)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("helix streams: unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.authURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("twitch token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("twitch token: unexpected status %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("twitch token response missing access_token")
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenExpirySlack)
	c.log.Debug("helix token acquired", slog.Int("expires_in", tok.ExpiresIn))

	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}
