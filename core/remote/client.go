package remote

import (
	"context"
	"fmt"
)

// Client defines the operations the mirror engine needs from a remote
// backend. Implementations must return ErrCredentialsExpired (wrapped is
// fine) when a call is rejected for stale credentials.
type Client interface {
	// Login authenticates against the backend and caches the session.
	Login(ctx context.Context) error
	// MakeDir creates a directory. Creating an existing directory fails
	// with a generic error on some backends; callers treat that as terminal.
	MakeDir(ctx context.Context, path string) error
	// Copy copies the file at sourcePath into destinationDir.
	Copy(ctx context.Context, sourcePath, destinationDir string) error
	// Rename moves/renames oldPath to newPath.
	Rename(ctx context.Context, oldPath, newPath string) error
	// Remove deletes a single file.
	Remove(ctx context.Context, path string) error
	// RemoveDir deletes a directory and its contents.
	RemoveDir(ctx context.Context, path string) error
	// RefreshListing forces the backend to re-index dir and returns the
	// entry names it now sees. The engine calls this before a copy so the
	// backend has indexed freshly written files.
	RefreshListing(ctx context.Context, dir string) ([]string, error)
}

// NewClient creates a backend client for the configured provider.
func NewClient(cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderAList:
		return newAListClient(cfg)
	case ProviderS3:
		return newS3Client(cfg)
	default:
		return nil, fmt.Errorf("unknown remote provider %q", cfg.Provider)
	}
}
