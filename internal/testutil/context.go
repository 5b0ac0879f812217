package testutil

import (
	"context"
	"time"
)

// TestContext returns a context with a deadline suitable for a single
// test. Callers must defer the cancel func.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
