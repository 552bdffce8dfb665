// Package classify wraps the two external collaborators of a trigger cycle:
// the camera that captures one frame, and the remote classification service
// that labels it.
//
// The HTTP client is owned exclusively by the Client; classification
// failures are reported to the caller and never retried here — the next
// trigger cycle is the retry.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ErrNoCategory is returned by Classify when the service response carries
// no usable category label.
var ErrNoCategory = errors.New("classify: response has no category")

const defaultTimeout = 15 * time.Second

// Camera captures one fresh frame and returns the path of the written
// image file. Capture fails fast when the sensor is unavailable.
type Camera interface {
	Capture(ctx context.Context) (string, error)
}

// Client captures a frame and submits it for remote classification.
type Client struct {
	camera     Camera
	endpoint   string
	httpClient *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout. Defaults to 15 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client. Useful in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client posting captures to the given endpoint.
func New(camera Camera, endpoint string, opts ...Option) (*Client, error) {
	if camera == nil {
		return nil, errors.New("classify: camera must not be nil")
	}
	if endpoint == "" {
		return nil, errors.New("classify: endpoint must not be empty")
	}
	c := &Client{
		camera:     camera,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// CaptureImage captures one frame and returns the image file path.
func (c *Client) CaptureImage(ctx context.Context) (string, error) {
	path, err := c.camera.Capture(ctx)
	if err != nil {
		return "", fmt.Errorf("classify: capture: %w", err)
	}
	return path, nil
}

// classifyResponse is the service's JSON payload.
type classifyResponse struct {
	Category string `json:"category"`
}

// Classify uploads the image as a multipart "file" field and returns the
// category label from the JSON response. Transport errors, non-2xx statuses,
// and responses without a category all fail; none are retried.
func (c *Client) Classify(ctx context.Context, imagePath string) (string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("classify: open image %q: %w", imagePath, err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return "", fmt.Errorf("classify: build form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("classify: read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("classify: finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("classify: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("classify: post %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("classify: service returned %s", resp.Status)
	}

	var payload classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("classify: decode response: %w", err)
	}
	if payload.Category == "" {
		return "", ErrNoCategory
	}
	return payload.Category, nil
}
