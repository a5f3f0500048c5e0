// Package api carries the HTTP plumbing shared by every backend-facing
// service: request construction, auth headers, and response decoding.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// maxResponseSize caps response bodies read into memory.
const maxResponseSize = 10 * 1024 * 1024

// TokenSource yields the current session token when one is stored.
type TokenSource interface {
	Get() (string, bool)
}

// Error is a backend-reported failure. Detail carries the backend's own
// message verbatim so the UI can show it unchanged.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("backend error (HTTP %d)", e.Status)
}

// IsStatus reports whether err is a backend Error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client issues requests against the chat backend.
type Client struct {
	baseURL    string
	csrfToken  string
	httpClient *http.Client
}

// NewClient builds a client for the given origin. A zero timeout leaves
// requests unbounded, as the web front end behaves.
func NewClient(baseURL, csrfToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		csrfToken:  csrfToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the configured backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// NewRequest builds a request for path with the standard headers.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// WithBearer attaches the Authorization header.
func WithBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

// WithCSRF attaches the X-CSRF-TOKEN header when a token is configured.
func (c *Client) WithCSRF(req *http.Request) {
	if c.csrfToken != "" {
		req.Header.Set("X-CSRF-TOKEN", c.csrfToken)
	}
}

// Do executes the request.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Detail string `json:"detail"`
}

// DecodeJSON consumes the response. Success bodies are unmarshalled into v
// (which may be nil to discard). Failure bodies yield an *Error carrying the
// backend detail when present, or the raw text when the body is not JSON --
// malformed responses are still shown to the user rather than swallowed.
func DecodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body errorBody
		if err := json.Unmarshal(data, &body); err == nil && body.Detail != "" {
			return &Error{Status: resp.StatusCode, Detail: body.Detail}
		}
		return &Error{Status: resp.StatusCode, Detail: strings.TrimSpace(string(data))}
	}

	if v == nil {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &Error{
			Status: resp.StatusCode,
			Detail: fmt.Sprintf("invalid response from server: %s", strings.TrimSpace(string(data))),
		}
	}
	return nil
}

// FilePart describes an optional file attachment for multipart bodies.
type FilePart struct {
	FieldName string
	Filename  string
	Reader    io.Reader
}

// MultipartBody assembles fields plus an optional file into a multipart form.
// It returns the encoded body and its Content-Type.
func MultipartBody(fields map[string]string, file *FilePart) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}

	if file != nil {
		part, err := writer.CreateFormFile(file.FieldName, file.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("create file part: %w", err)
		}
		if _, err := io.Copy(part, file.Reader); err != nil {
			return nil, "", fmt.Errorf("copy file part: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}
