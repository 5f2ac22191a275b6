// Package albums maintains the album registry, a JSON document stored as
// settings.json at the root of every user bucket:
//
//	{"albums":[{"album_name":"pets","is_private":false,"cover_key":""}]}
//
// A missing document is the same as one with no albums.
//
// RegisterIfAbsent is a read-modify-write of the whole document. By default
// the write is conditional on the ETag that was read (If-None-Match: * when
// the document did not exist) and the cycle is retried when another writer
// got there first. In legacy mode the write is an unconditional overwrite:
// two uploads into different new albums that interleave their reads lose one
// of the registrations.
package albums

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/photogate/internal/common"
	"github.com/dmitrijs2005/photogate/internal/logging"
	"github.com/dmitrijs2005/photogate/internal/server/storage"
)

// DefaultMaxAttempts bounds the conditional write loop.
const DefaultMaxAttempts = 5

type Registry struct {
	legacy      bool
	maxAttempts int
	log         logging.Logger
	onRetry     func()
}

type Option func(*Registry)

// WithLegacyWrites switches to unconditional overwrites.
func WithLegacyWrites() Option {
	return func(r *Registry) { r.legacy = true }
}

func WithMaxAttempts(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(r *Registry) { r.log = l.With("module", "albums") }
}

// WithRetryHook registers fn to run each time a conditional write is retried.
func WithRetryHook(fn func()) Option {
	return func(r *Registry) { r.onRetry = fn }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{maxAttempts: DefaultMaxAttempts, log: logging.Nop{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns the registered albums in document order.
func (r *Registry) List(ctx context.Context, store storage.ObjectStore) ([]Album, error) {
	doc, _, err := r.read(ctx, store)
	if err != nil {
		return nil, err
	}
	return doc.Albums, nil
}

// Document returns the whole registry document.
func (r *Registry) Document(ctx context.Context, store storage.ObjectStore) (Document, error) {
	doc, _, err := r.read(ctx, store)
	return doc, err
}

// RegisterIfAbsent appends {name, false, ""} unless an album called name is
// already registered.
func (r *Registry) RegisterIfAbsent(ctx context.Context, store storage.ObjectStore, name string) error {
	if name == "" {
		return common.ErrBadRequest
	}
	if r.legacy {
		return r.registerLegacy(ctx, store, name)
	}

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		doc, etag, err := r.read(ctx, store)
		if err != nil {
			return err
		}
		if doc.Has(name) {
			return nil
		}
		doc.Albums = append(doc.Albums, Album{Name: name})

		opts := storage.PutOptions{ContentType: "application/json"}
		if etag == "" {
			opts.IfNoneMatch = "*"
		} else {
			opts.IfMatch = etag
		}

		err = r.write(ctx, store, doc, opts)
		if err == nil {
			return nil
		}
		if !errors.Is(err, common.ErrPreconditionFailed) {
			return err
		}
		r.log.Debug(ctx, "registry changed underneath, retrying", "album", name, "attempt", attempt)
		if r.onRetry != nil {
			r.onRetry()
		}
	}

	return fmt.Errorf("%w: album %q after %d attempts", common.ErrRegistryConflict, name, r.maxAttempts)
}

func (r *Registry) registerLegacy(ctx context.Context, store storage.ObjectStore, name string) error {
	doc, _, err := r.read(ctx, store)
	if err != nil {
		return err
	}
	if !doc.Has(name) {
		doc.Albums = append(doc.Albums, Album{Name: name})
	}
	return r.write(ctx, store, doc, storage.PutOptions{ContentType: "application/json"})
}

// read returns the document and its ETag; the ETag is empty when the
// document does not exist.
func (r *Registry) read(ctx context.Context, store storage.ObjectStore) (Document, string, error) {
	obj, err := store.Get(ctx, common.SettingsKey)
	if err != nil {
		if errors.Is(err, common.ErrObjectNotFound) {
			return Document{Albums: []Album{}}, "", nil
		}
		return Document{}, "", err
	}
	defer obj.Body.Close()

	b, err := io.ReadAll(obj.Body)
	if err != nil {
		return Document{}, "", fmt.Errorf("%w: read %s: %v", common.ErrUpstreamStorage, common.SettingsKey, err)
	}

	doc, err := decode(b)
	if err != nil {
		return Document{}, "", err
	}
	return doc, obj.ETag, nil
}

func (r *Registry) write(ctx context.Context, store storage.ObjectStore, doc Document, opts storage.PutOptions) error {
	b, err := doc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode %s: %w", common.SettingsKey, err)
	}
	return store.Put(ctx, common.SettingsKey, bytes.NewReader(b), opts)
}
