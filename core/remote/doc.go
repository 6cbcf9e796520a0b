// Package remote implements the remote backend contract used by the mirror
// engine: login, make-directory, copy, rename, remove and list-with-refresh.
//
// Two providers are available, selected by configuration:
//
//   - alist: the AList HTTP API (token login, /api/fs/* operations)
//   - s3: any S3-compatible object store via the MinIO client
//
// Every operation may fail with a generic error or with
// ErrCredentialsExpired, a tagged variant that the Session wrapper recovers
// from by re-authenticating once and re-invoking the operation. Concurrent
// expiries share a single re-login via singleflight, so a burst of failing
// operations never causes a re-login storm.
package remote
