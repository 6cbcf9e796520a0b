package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// Client is a mock implementation of remote.Client
type Client struct {
	mock.Mock
}

func (m *Client) Login(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Client) MakeDir(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func (m *Client) Copy(ctx context.Context, sourcePath, destinationDir string) error {
	args := m.Called(ctx, sourcePath, destinationDir)
	return args.Error(0)
}

func (m *Client) Rename(ctx context.Context, oldPath, newPath string) error {
	args := m.Called(ctx, oldPath, newPath)
	return args.Error(0)
}

func (m *Client) Remove(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func (m *Client) RemoveDir(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func (m *Client) RefreshListing(ctx context.Context, dir string) ([]string, error) {
	args := m.Called(ctx, dir)
	if names, ok := args.Get(0).([]string); ok {
		return names, args.Error(1)
	}
	return nil, args.Error(1)
}
