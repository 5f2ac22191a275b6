package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/dmitrijs2005/photogate/internal/common"
)

type memoryObject struct {
	data        []byte
	contentType string
	etag        string
	publicRead  bool
}

// MemoryStore is an ObjectStore held in process memory. It honours
// conditional writes the way S3 does.
type MemoryStore struct {
	mu      sync.Mutex
	bucket  string
	host    string
	objects map[string]memoryObject
	puts    int
}

func NewMemoryStore(bucket, endpoint string) *MemoryStore {
	return &MemoryStore{
		bucket:  bucket,
		host:    endpointHost(endpoint),
		objects: make(map[string]memoryObject),
	}
}

func (m *MemoryStore) Bucket() string       { return m.bucket }
func (m *MemoryStore) EndpointHost() string { return m.host }

func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.objects[key]
	if !ok {
		return nil, common.ErrObjectNotFound
	}
	return &Object{
		Body:        io.NopCloser(bytes.NewReader(o.data)),
		ContentType: o.contentType,
		ETag:        o.etag,
	}, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, body io.Reader, opts PutOptions) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", common.ErrUpstreamStorage, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, exists := m.objects[key]
	if opts.IfNoneMatch == "*" && exists {
		return common.ErrPreconditionFailed
	}
	if opts.IfMatch != "" && (!exists || cur.etag != opts.IfMatch) {
		return common.ErrPreconditionFailed
	}

	m.puts++
	m.objects[key] = memoryObject{
		data:        data,
		contentType: opts.ContentType,
		etag:        fmt.Sprintf("%q", fmt.Sprintf("%x-%d", md5.Sum(data), m.puts)),
		publicRead:  opts.PublicRead,
	}
	return nil
}

// Bytes returns the stored content of key.
func (m *MemoryStore) Bytes(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), o.data...), true
}

// ContentType returns the content type stored with key.
func (m *MemoryStore) ContentType(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[key].contentType
}

// PublicRead reports whether key was written with a public-read ACL.
func (m *MemoryStore) PublicRead(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[key].publicRead
}

// Puts counts successful writes.
func (m *MemoryStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
