// API service for making HTTP requests to the music library server
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/mtx/internal/shared"
)

// APIService provides raw and typed access to the music library REST API.
//
// baseURL is the API root including its version prefix (e.g. http://host:8080/api/v1).
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API service instance for the library server.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = "http://localhost:8080/api/v1"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// BaseURL returns the API root the service talks to.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, a.baseURL+path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, a.baseURL+path, data)
}

// Put performs a PUT request with the given JSON data and returns the raw response.
func (a *APIService) Put(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPut, a.baseURL+path, data)
}

// Delete performs a DELETE request and returns the raw response.
func (a *APIService) Delete(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodDelete, a.baseURL+path, nil)
}

func (a *APIService) do(ctx context.Context, method, fullURL string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}

	var jsonData any
	if err := json.Unmarshal(respBody, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// envelope is the server's response wrapper.
//
// Paged endpoints put total/page/page_size (and for scan logs, list) next to data.
type envelope struct {
	Code     int             `json:"code"`
	Message  string          `json:"message"`
	Data     json.RawMessage `json:"data"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	List     json.RawMessage `json:"list"`
	TaskID   string          `json:"task_id"`
}

// call performs a request, decodes the envelope and unmarshals data into out when both are present.
//
// Transport failures wrap [shared.ErrAPIRequest]; a non-zero envelope code is returned as [*shared.APIError].
func (a *APIService) call(ctx context.Context, method, path string, in, out any) (*envelope, error) {
	var data []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to encode request: %v", shared.ErrInvalidInput, err)
		}
		data = b
	}

	resp, err := a.do(ctx, method, a.baseURL+path, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrAPIRequest, method, path, err)
	}

	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}

	if out != nil && hasPayload(env.Data) {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return env, fmt.Errorf("%w: failed to decode %s %s: %v", shared.ErrAPIRequest, method, path, err)
		}
	}
	return env, nil
}

func decodeEnvelope(resp *APIResponse) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &shared.APIError{Status: resp.StatusCode, Code: resp.StatusCode, Message: snippet(resp.Body)}
		}
		return nil, fmt.Errorf("%w: unexpected response (HTTP %d): %s", shared.ErrAPIRequest, resp.StatusCode, snippet(resp.Body))
	}

	if env.Code != 0 {
		return &env, &shared.APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &env, &shared.APIError{Status: resp.StatusCode, Code: resp.StatusCode, Message: env.Message}
	}
	return &env, nil
}

func hasPayload(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null"
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}

// rootURL strips the API prefix from the base URL, for endpoints mounted at the server root.
func (a *APIService) rootURL() string {
	u, err := url.Parse(a.baseURL)
	if err != nil || u.Host == "" {
		return a.baseURL
	}
	u.Path = ""
	u.RawQuery = ""
	return u.String()
}
