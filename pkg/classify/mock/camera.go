// Package mock provides a test double for the classify.Camera interface.
package mock

import (
	"context"
	"sync"

	"github.com/echosort/echosort/pkg/classify"
)

// Camera is a mock implementation of classify.Camera.
type Camera struct {
	mu sync.Mutex

	// CaptureResult is the path returned by Capture.
	CaptureResult string

	// CaptureErr, if non-nil, is returned by every Capture call.
	CaptureErr error

	// CaptureCalls counts Capture invocations.
	CaptureCalls int
}

// Capture records the call and returns the scripted result.
func (c *Camera) Capture(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CaptureCalls++
	if c.CaptureErr != nil {
		return "", c.CaptureErr
	}
	return c.CaptureResult, nil
}

// Calls returns the number of recorded Capture calls. Thread-safe.
func (c *Camera) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CaptureCalls
}

// Compile-time assertion that Camera implements classify.Camera.
var _ classify.Camera = (*Camera)(nil)
