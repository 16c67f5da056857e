package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/searchlens-ai/query-assistant/internal/model"
	"github.com/searchlens-ai/query-assistant/pkg/logger"
)

// Client talks to the gateway's chat and query endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

// NewClient creates a chat client against the gateway origin. The
// HTTP client carries no global timeout; stream lifetimes are bounded
// by the caller's context.
func NewClient(baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     log,
	}
}

// OpenStream issues POST /api/chat and returns the NDJSON body.
// Cancelling ctx aborts the in-flight read and closes the remote
// stream. A non-200 response is decoded into a short error.
func (c *Client) OpenStream(ctx context.Context, req *model.ChatRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeErrorBody(resp)
	}
	return resp.Body, nil
}

// Regenerate issues POST /api/query/regenerate.
func (c *Client) Regenerate(ctx context.Context, req *model.RegenerateRequest) (*model.RegenerateResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode regenerate request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/api/query/regenerate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeErrorBody(resp)
	}

	var result model.RegenerateResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode regenerate response: %w", err)
	}
	return &result, nil
}

// decodeErrorBody extracts a short message from an error response
// without surfacing upstream internals.
func decodeErrorBody(resp *http.Response) error {
	var frame struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&frame); err == nil && frame.Message != "" {
		return fmt.Errorf("request failed: %s", frame.Message)
	}
	return fmt.Errorf("request failed with status %d", resp.StatusCode)
}
