package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// aListClient talks to an AList server over its JSON HTTP API.
type aListClient struct {
	endpoint string
	username string
	password string
	http     *http.Client

	mu    sync.RWMutex
	token string
}

func newAListClient(cfg Config) (*aListClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("alist endpoint is required")
	}

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	timeoutDuration := time.Duration(timeout) * time.Second

	// Custom transport with strict timeouts so a wedged server cannot hang
	// dispatches indefinitely.
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeoutDuration,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeoutDuration,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeoutDuration,
	}

	return &aListClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Transport: transport},
	}, nil
}

// apiResponse is the common AList response envelope.
type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *aListClient) post(ctx context.Context, route string, payload any, withAuth bool) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", route, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+route, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", route, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if withAuth {
		c.mu.RLock()
		req.Header.Set("Authorization", c.token)
		c.mu.RUnlock()
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", route, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", route, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", route, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || parsed.Code == http.StatusUnauthorized ||
		strings.Contains(strings.ToLower(parsed.Message), "token is expired") {
		return nil, fmt.Errorf("%s: %s: %w", route, parsed.Message, ErrCredentialsExpired)
	}
	if parsed.Code != http.StatusOK {
		return nil, fmt.Errorf("%s failed: code %d: %s", route, parsed.Code, parsed.Message)
	}
	return &parsed, nil
}

// Login authenticates and stores the session token for later calls.
func (c *aListClient) Login(ctx context.Context) error {
	resp, err := c.post(ctx, "/api/auth/login", map[string]string{
		"username": c.username,
		"password": c.password,
	}, false)
	if err != nil {
		return err
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return fmt.Errorf("decode login token: %w", err)
	}
	if data.Token == "" {
		return fmt.Errorf("login succeeded but returned an empty token")
	}

	c.mu.Lock()
	c.token = data.Token
	c.mu.Unlock()
	return nil
}

func (c *aListClient) MakeDir(ctx context.Context, dirPath string) error {
	_, err := c.post(ctx, "/api/fs/mkdir", map[string]string{"path": dirPath}, true)
	return err
}

func (c *aListClient) Copy(ctx context.Context, sourcePath, destinationDir string) error {
	_, err := c.post(ctx, "/api/fs/copy", map[string]any{
		"src_dir": path.Dir(sourcePath),
		"dst_dir": destinationDir,
		"names":   []string{path.Base(sourcePath)},
	}, true)
	return err
}

// Rename renames oldPath to newPath. AList's rename endpoint only changes the
// base name, so a move across directories is issued first when needed.
func (c *aListClient) Rename(ctx context.Context, oldPath, newPath string) error {
	oldDir, newDir := path.Dir(oldPath), path.Dir(newPath)

	current := oldPath
	if oldDir != newDir {
		if _, err := c.post(ctx, "/api/fs/move", map[string]any{
			"src_dir": oldDir,
			"dst_dir": newDir,
			"names":   []string{path.Base(oldPath)},
		}, true); err != nil {
			return err
		}
		current = path.Join(newDir, path.Base(oldPath))
	}

	if path.Base(current) == path.Base(newPath) {
		return nil
	}
	_, err := c.post(ctx, "/api/fs/rename", map[string]string{
		"path": current,
		"name": path.Base(newPath),
	}, true)
	return err
}

func (c *aListClient) Remove(ctx context.Context, filePath string) error {
	return c.removeNames(ctx, path.Dir(filePath), []string{path.Base(filePath)})
}

func (c *aListClient) RemoveDir(ctx context.Context, dirPath string) error {
	// AList removes folders through the same endpoint as files.
	return c.removeNames(ctx, path.Dir(dirPath), []string{path.Base(dirPath)})
}

func (c *aListClient) removeNames(ctx context.Context, dir string, names []string) error {
	_, err := c.post(ctx, "/api/fs/remove", map[string]any{
		"dir":   dir,
		"names": names,
	}, true)
	return err
}

// RefreshListing lists dir with refresh:true, forcing AList to re-scan the
// underlying storage before returning entries.
func (c *aListClient) RefreshListing(ctx context.Context, dir string) ([]string, error) {
	resp, err := c.post(ctx, "/api/fs/list", map[string]any{
		"path":     dir,
		"refresh":  true,
		"page":     1,
		"per_page": 0,
	}, true)
	if err != nil {
		return nil, err
	}

	var data struct {
		Content []struct {
			Name string `json:"name"`
		} `json:"content"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("decode listing for %s: %w", dir, err)
	}

	names := make([]string, 0, len(data.Content))
	for _, entry := range data.Content {
		names = append(names, entry.Name)
	}
	return names, nil
}
