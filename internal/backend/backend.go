// Package backend is the typed HTTP boundary to the orchestration
// backend's REST surface (spec §6): cancel, mode/permission patches, and
// thread list/detail. It carries no business logic — internal/modesync
// and internal/coordinator call through it, and it just shapes requests
// and classifies responses.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/spoq-dev/spoq/internal/cache"
	"github.com/spoq-dev/spoq/internal/spoqerr"
)

// HTTPDoer is the capability interface the client dials through; *http.Client
// satisfies it directly, and tests substitute a fake.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues REST calls against a single backend base URL. It implements
// both internal/modesync.Syncer and internal/coordinator.Dispatcher.
type Client struct {
	baseURL string
	doer    HTTPDoer
	logger  *zap.Logger
}

// NewClient constructs a Client. doer is typically http.DefaultClient or a
// *http.Client configured with the backend's auth transport.
func NewClient(baseURL string, doer HTTPDoer, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: baseURL, doer: doer, logger: logger}
}

// CancelResponse is the body of a POST /v1/cancel response.
type CancelResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SendCancel implements coordinator.Dispatcher.
func (c *Client) SendCancel(ctx context.Context, threadID string) error {
	body, _ := json.Marshal(map[string]string{"thread_id": threadID})
	resp, err := c.do(ctx, http.MethodPost, "/v1/cancel", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var decoded CancelResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return spoqerr.New(spoqerr.KindClient, "decode cancel response", err)
	}
	if decoded.Status == "not_found" {
		return spoqerr.New(spoqerr.KindServer, "cancel", fmt.Errorf("thread not found: %s", decoded.Message))
	}
	return nil
}

// SendSteer implements coordinator.Dispatcher so Client satisfies the same
// interface control.Dispatcher does, but the REST surface in spec §6 has no
// steer endpoint — steering only travels over the control channel. Callers
// should prefer control.Dispatcher for SendSteer; this fallback always
// fails so a caller that ends up here (control channel down) surfaces a
// clear error rather than silently dropping the instruction.
func (c *Client) SendSteer(_ context.Context, _, _ string) error {
	return spoqerr.New(spoqerr.KindClient, "steer", fmt.Errorf("steering requires the control channel; no REST fallback exists"))
}

// modePatch is the body of the PATCH .../mode and .../permission calls.
type modePatch struct {
	Mode string `json:"mode"`
}

// SyncThreadMode implements modesync.Syncer.
func (c *Client) SyncThreadMode(ctx context.Context, threadID string, mode cache.PermissionMode) error {
	body, _ := json.Marshal(modePatch{Mode: string(mode)})
	resp, err := c.do(ctx, http.MethodPatch, "/v1/threads/"+threadID+"/mode", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// SyncPermissionMode implements modesync.Syncer.
func (c *Client) SyncPermissionMode(ctx context.Context, threadID string, mode cache.PermissionMode) error {
	body, _ := json.Marshal(modePatch{Mode: string(mode)})
	resp, err := c.do(ctx, http.MethodPatch, "/v1/threads/"+threadID+"/permission", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// ThreadSummary is one entry of a GET /v1/threads list response.
type ThreadSummary struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	ThreadType     string `json:"thread_type"`
	PermissionMode string `json:"permission_mode"`
}

// ListThreads fetches the backend's thread list.
func (c *Client) ListThreads(ctx context.Context) ([]ThreadSummary, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/threads", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out []ThreadSummary
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, spoqerr.New(spoqerr.KindClient, "decode thread list", err)
	}
	return out, nil
}

// ThreadDetail is the body of a GET /v1/threads/{id} response.
type ThreadDetail struct {
	ThreadSummary
	Messages json.RawMessage `json:"messages"`
}

// GetThread fetches a single thread's detail.
func (c *Client) GetThread(ctx context.Context, threadID string) (*ThreadDetail, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/threads/"+threadID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out ThreadDetail
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, spoqerr.New(spoqerr.KindClient, "decode thread detail", err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, spoqerr.New(spoqerr.KindClient, "build "+method+" "+path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, spoqerr.New(spoqerr.KindNetwork, method+" "+path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		kind := classifyStatus(resp.StatusCode)
		c.logger.Debug("backend call failed",
			zap.String("method", method), zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return nil, spoqerr.New(kind, fmt.Sprintf("%s %s status %d", method, path, resp.StatusCode), fmt.Errorf("%s", string(payload)))
	}
	return resp, nil
}

// classifyStatus maps an HTTP status to spoq's error taxonomy. 5xx and 408
// are transient per spec §6 and classified as server errors so callers can
// decide to retry; 401/403 are auth errors; the rest are client errors.
func classifyStatus(status int) spoqerr.Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return spoqerr.KindAuth
	case status == http.StatusRequestTimeout || status >= 500:
		return spoqerr.KindServer
	default:
		return spoqerr.KindClient
	}
}
