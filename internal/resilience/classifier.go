package resilience

import (
	"context"

	"github.com/echosort/echosort/internal/trigger"
)

// GuardedClassifier wraps a capture/classify client with a circuit breaker
// on the remote classification call. Capture stays unguarded: it is a local
// operation and its failures say nothing about the remote service.
type GuardedClassifier struct {
	inner   trigger.Classifier
	breaker *Breaker
}

// NewGuardedClassifier wraps inner with breaker.
func NewGuardedClassifier(inner trigger.Classifier, breaker *Breaker) *GuardedClassifier {
	return &GuardedClassifier{inner: inner, breaker: breaker}
}

// CaptureImage delegates to the wrapped client.
func (g *GuardedClassifier) CaptureImage(ctx context.Context) (string, error) {
	return g.inner.CaptureImage(ctx)
}

// Classify delegates through the breaker. While the breaker is open the call
// fails immediately with [ErrOpen], so a trigger cycle ends with the error
// announcement instead of waiting out the full request timeout.
func (g *GuardedClassifier) Classify(ctx context.Context, imagePath string) (string, error) {
	var category string
	err := g.breaker.Execute(func() error {
		var cerr error
		category, cerr = g.inner.Classify(ctx, imagePath)
		return cerr
	})
	if err != nil {
		return "", err
	}
	return category, nil
}

// Compile-time assertion that GuardedClassifier satisfies trigger.Classifier.
var _ trigger.Classifier = (*GuardedClassifier)(nil)
