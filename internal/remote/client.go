// Package remote talks to the statusboard server over HTTP and its change
// feed over websocket.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"statusboard/internal/models"
	"statusboard/internal/presence"
)

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// HTTPClient implements presence.Store against the server API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration

	mu    sync.RWMutex
	token string
}

var _ presence.Store = (*HTTPClient)(nil)

func NewHTTPClient(baseURL, token string, httpClient *http.Client) *HTTPClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8099"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
		maxDelay:   2 * time.Second,
	}
}

func (c *HTTPClient) BaseURL() string { return c.baseURL }

func (c *HTTPClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

type loginResponse struct {
	Worker      models.Worker `json:"worker"`
	AccessToken string        `json:"access_token"`
}

// Login exchanges a username and password for a token and keeps it for
// later calls.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (models.Worker, error) {
	var out loginResponse
	body := map[string]string{"username": username, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/login", body, &out); err != nil {
		return models.Worker{}, err
	}
	c.SetToken(out.AccessToken)
	return out.Worker, nil
}

// Me returns the worker the current token belongs to.
func (c *HTTPClient) Me(ctx context.Context) (models.Worker, error) {
	var out struct {
		Worker models.Worker `json:"worker"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/me", nil, &out)
	return out.Worker, err
}

func (c *HTTPClient) ListWorkers(ctx context.Context) ([]models.Worker, error) {
	var out struct {
		Workers []models.Worker `json:"workers"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/workers", nil, &out); err != nil {
		return nil, err
	}
	return out.Workers, nil
}

func (c *HTTPClient) GetWorker(ctx context.Context, id string) (models.Worker, error) {
	var out struct {
		Worker models.Worker `json:"worker"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/workers/"+url.PathEscape(id), nil, &out)
	return out.Worker, err
}

type statusRequest struct {
	Status          string  `json:"status"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	Note            *string `json:"note"`
}

func (c *HTTPClient) SetStatus(ctx context.Context, u presence.StatusUpdate) (models.Worker, error) {
	var out struct {
		Worker models.Worker `json:"worker"`
	}
	body := statusRequest{Status: string(u.Status), DurationMinutes: u.DurationMinutes, Note: u.Note}
	err := c.doJSON(ctx, http.MethodPatch, "/api/v1/workers/"+url.PathEscape(u.WorkerID)+"/status", body, &out)
	return out.Worker, err
}

func (c *HTTPClient) ExpireBusy(ctx context.Context, workerID string) (models.Worker, bool, error) {
	var out struct {
		Worker  models.Worker `json:"worker"`
		Changed bool          `json:"changed"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/workers/"+url.PathEscape(workerID)+"/expire", nil, &out)
	return out.Worker, out.Changed, err
}

func (c *HTTPClient) doJSON(ctx context.Context, method, requestPath string, body, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = sonic.Marshal(body)
		if err != nil {
			return err
		}
	}
	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
		if err != nil {
			return err
		}
		if token := c.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(payload) == 0 {
				return nil
			}
			return sonic.Unmarshal(payload, out)
		}

		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < c.maxRetries {
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		var errPayload struct {
			Error string `json:"error"`
		}
		_ = sonic.Unmarshal(payload, &errPayload)
		return &HTTPError{StatusCode: resp.StatusCode, Message: errPayload.Error}
	}
}

func (c *HTTPClient) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	maxDelay := c.maxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		return min(retryAfter, maxDelay)
	}
	delay := c.baseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return min(delay, maxDelay)
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
