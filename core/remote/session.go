package remote

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Session wraps a Client with the expired-credentials recovery rule: an
// operation that fails with ErrCredentialsExpired triggers one shared
// re-login and is re-invoked exactly once. A second failure of any kind is
// returned to the caller as terminal.
//
// The re-login is coalesced through singleflight, so operations failing
// concurrently across mappings all await the same login call.
type Session struct {
	client Client
	logger *zap.Logger
	sf     singleflight.Group
}

// NewSession creates a Session around client.
func NewSession(client Client, logger *zap.Logger) *Session {
	return &Session{client: client, logger: logger}
}

// Client returns the underlying backend client.
func (s *Session) Client() Client {
	return s.client
}

// Login authenticates the underlying client.
func (s *Session) Login(ctx context.Context) error {
	return s.client.Login(ctx)
}

// Do runs op. On an expired-credentials failure it re-authenticates (shared
// across concurrent callers) and retries op once. Never retries twice.
func (s *Session) Do(ctx context.Context, name string, op func(context.Context) error) error {
	err := op(ctx)
	if err == nil || !IsCredentialsExpired(err) {
		return err
	}

	s.logger.Warn("remote credentials expired, re-authenticating",
		zap.String("operation", name))

	if _, loginErr, _ := s.sf.Do("relogin", func() (any, error) {
		return nil, s.client.Login(ctx)
	}); loginErr != nil {
		return fmt.Errorf("re-login after expiry: %w", loginErr)
	}

	// Single retry; a second expiry surfaces to the caller as terminal.
	return op(ctx)
}
