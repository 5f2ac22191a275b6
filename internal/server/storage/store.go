// Package storage is the gateway's view of object storage.
//
// Every request gets its own ObjectStore bound to the caller's bucket and
// credentials (see Factory). Clients are never cached or shared between
// requests.
package storage

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"
)

// Object is a fetched object. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	ETag        string
}

// PutOptions control a single write. IfMatch and IfNoneMatch make the write
// conditional; IfNoneMatch "*" means the key must not exist yet.
type PutOptions struct {
	ContentType string
	PublicRead  bool
	IfMatch     string
	IfNoneMatch string
}

// ObjectStore is a single bucket.
//
// Get on a missing key returns common.ErrObjectNotFound. A conditional Put
// whose precondition does not hold returns common.ErrPreconditionFailed.
// Any other failure wraps common.ErrUpstreamStorage.
type ObjectStore interface {
	Bucket() string
	EndpointHost() string
	List(ctx context.Context, prefix string) ([]string, error)
	Get(ctx context.Context, key string) (*Object, error)
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) error
}

// Presigner is implemented by stores that can hand out temporary GET URLs.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// endpointHost strips scheme, path and trailing slashes from an endpoint,
// e.g. "https://s3.example.com/" becomes "s3.example.com".
func endpointHost(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host
	}
	host, _, _ := strings.Cut(endpoint, "/")
	return host
}

// baseEndpoint returns endpoint as an absolute URL, defaulting to https.
func baseEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return "https://" + endpoint
}
