package notifications

import (
	"context"
)

// MockTokenSource is a test mock for TokenSource
type MockTokenSource struct {
	TokenFunc func(ctx context.Context) (string, error)
}

func (m *MockTokenSource) Token(ctx context.Context) (string, error) {
	if m.TokenFunc != nil {
		return m.TokenFunc(ctx)
	}
	return "test-token", nil
}
