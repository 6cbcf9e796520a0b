package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// s3Client implements the backend contract on any S3-compatible object store.
// Directories are represented as zero-byte marker objects with a trailing
// slash, the usual S3 convention.
type s3Client struct {
	client *minio.Client
	bucket string
}

func newS3Client(cfg Config) (*s3Client, error) {
	// MinIO expects the endpoint without a scheme.
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	timeoutDuration := time.Duration(timeout) * time.Second

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

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return &s3Client{client: client, bucket: cfg.Bucket}, nil
}

// wrapS3Err maps credential rejections onto ErrCredentialsExpired so the
// Session retry rule applies uniformly across providers.
func wrapS3Err(op string, err error) error {
	if err == nil {
		return nil
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "ExpiredToken", "InvalidAccessKeyId", "AccessDenied", "InvalidToken":
			return fmt.Errorf("%s: %s: %w", op, resp.Code, ErrCredentialsExpired)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Login verifies the credentials by probing the bucket.
func (c *s3Client) Login(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return wrapS3Err("login", err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", c.bucket)
	}
	return nil
}

func (c *s3Client) MakeDir(ctx context.Context, dirPath string) error {
	marker := strings.Trim(dirPath, "/") + "/"
	_, err := c.client.PutObject(ctx, c.bucket, marker,
		bytes.NewReader(nil), 0, minio.PutObjectOptions{})
	return wrapS3Err("mkdir", err)
}

func (c *s3Client) Copy(ctx context.Context, sourcePath, destinationDir string) error {
	dst := path.Join(strings.Trim(destinationDir, "/"), path.Base(sourcePath))
	_, err := c.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: c.bucket, Object: dst},
		minio.CopySrcOptions{Bucket: c.bucket, Object: strings.Trim(sourcePath, "/")},
	)
	return wrapS3Err("copy", err)
}

// Rename is copy-then-remove; S3 has no native rename.
func (c *s3Client) Rename(ctx context.Context, oldPath, newPath string) error {
	oldKey := strings.Trim(oldPath, "/")
	newKey := strings.Trim(newPath, "/")

	_, err := c.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: c.bucket, Object: newKey},
		minio.CopySrcOptions{Bucket: c.bucket, Object: oldKey},
	)
	if err != nil {
		return wrapS3Err("rename copy", err)
	}
	return wrapS3Err("rename remove",
		c.client.RemoveObject(ctx, c.bucket, oldKey, minio.RemoveObjectOptions{}))
}

func (c *s3Client) Remove(ctx context.Context, filePath string) error {
	return wrapS3Err("remove",
		c.client.RemoveObject(ctx, c.bucket, strings.Trim(filePath, "/"), minio.RemoveObjectOptions{}))
}

// RemoveDir deletes every object under the prefix, including the marker.
func (c *s3Client) RemoveDir(ctx context.Context, dirPath string) error {
	prefix := strings.Trim(dirPath, "/") + "/"
	for obj := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return wrapS3Err("remove dir list", obj.Err)
		}
		if err := c.client.RemoveObject(ctx, c.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return wrapS3Err("remove dir", err)
		}
	}
	return nil
}

// RefreshListing drains a fresh listing of the prefix. Object stores index
// writes synchronously, but the drain still forces a round trip so errors
// (including credential expiry) surface before a dependent copy.
func (c *s3Client) RefreshListing(ctx context.Context, dir string) ([]string, error) {
	prefix := strings.Trim(dir, "/")
	if prefix != "" {
		prefix += "/"
	}

	var names []string
	for obj := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, wrapS3Err("refresh listing", obj.Err)
		}
		names = append(names, strings.TrimPrefix(obj.Key, prefix))
	}
	return names, nil
}
