package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/presence"
	"github.com/alfredjeanlab/corkboard/internal/store"
)

// HTTPClient implements BoardClient using the corkboard HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ BoardClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// BaseURL returns the server URL the client targets.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Notes ---

func (c *HTTPClient) ListNotes(ctx context.Context) ([]*model.Note, error) {
	var resp struct {
		Data []*model.Note `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/notes", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *HTTPClient) GetNote(ctx context.Context, id string) (*model.Note, error) {
	var resp struct {
		Data *model.Note `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/notes/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *HTTPClient) CreateNote(ctx context.Context, in model.NoteInput) (*model.Note, error) {
	var resp struct {
		Data *model.Note `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/notes", in, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *HTTPClient) UpdateNote(ctx context.Context, id string, patch model.NotePatch) (*model.Note, error) {
	var resp struct {
		Data *model.Note `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/notes/"+url.PathEscape(id), patch, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// DeleteNote removes a note. A note that is already gone is not an error.
func (c *HTTPClient) DeleteNote(ctx context.Context, id string) error {
	err := c.doJSON(ctx, http.MethodDelete, "/v1/notes/"+url.PathEscape(id), nil, nil)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func (c *HTTPClient) ClearNotes(ctx context.Context) (int64, error) {
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	if err := c.doJSON(ctx, http.MethodDelete, "/v1/notes", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// --- Realtime ---

func (c *HTTPClient) Submit(ctx context.Context, ev *model.Event) (int, error) {
	var resp struct {
		Success     bool `json:"success"`
		Connections int  `json:"connections"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/realtime", ev, &resp); err != nil {
		return 0, err
	}
	return resp.Connections, nil
}

func (c *HTTPClient) Cursors(ctx context.Context) ([]presence.Entry, error) {
	var resp struct {
		Data []presence.Entry `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/cursors", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- internal helpers ---

// APIError represents an error response from the server. A 404 unwraps to
// store.ErrNotFound.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return store.ErrNotFound
	}
	return nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
