package streamclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/spoq-dev/spoq/internal/spoqerr"
)

// HTTPDoer is the capability interface the client dials through; *http.Client
// satisfies it directly, and tests substitute a fake.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues stream requests against a single backend base URL.
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

// Stream issues the POST and returns a Stream ready to be pulled via Next.
// The caller must eventually call Close (or Cancel) to release the response
// body.
func (c *Client) Stream(ctx context.Context, req Request) (*Stream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, spoqerr.New(spoqerr.KindClient, "marshal stream request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/stream", bytes.NewReader(body))
	if err != nil {
		return nil, spoqerr.New(spoqerr.KindClient, "build stream request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.doer.Do(httpReq)
	if err != nil {
		return nil, spoqerr.New(spoqerr.KindNetwork, "stream request", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		kind := spoqerr.KindServer
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = spoqerr.KindAuth
		}
		return nil, spoqerr.New(kind, fmt.Sprintf("stream request status %d", resp.StatusCode), fmt.Errorf("%s", string(payload)))
	}

	return newStream(resp.Body, req.ThreadID, c.logger), nil
}
