package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/photogate/internal/common"
	"github.com/dmitrijs2005/photogate/internal/server/albums"
	"github.com/dmitrijs2005/photogate/internal/server/storage"
)

const defaultContentType = "application/octet-stream"

// UploadRequest is one file headed for an album. FileName may carry a
// sub-path such as "thumbnails/cat.jpg".
type UploadRequest struct {
	FolderPath  string
	FileName    string
	ContentType string
	Body        io.Reader
}

// GalleryService implements the album and image operations. Every call
// works on the store resolved for the current caller.
type GalleryService struct {
	registry *albums.Registry
}

func NewGalleryService(registry *albums.Registry) *GalleryService {
	return &GalleryService{registry: registry}
}

func (s *GalleryService) ListAlbums(ctx context.Context, store storage.ObjectStore) ([]albums.Album, error) {
	return s.registry.List(ctx, store)
}

// Settings returns the whole registry document.
func (s *GalleryService) Settings(ctx context.Context, store storage.ObjectStore) (albums.Document, error) {
	return s.registry.Document(ctx, store)
}

// ListImages returns public URLs of the thumbnails of albumID, skipping
// .blank placeholders.
func (s *GalleryService) ListImages(ctx context.Context, store storage.ObjectStore, albumID string) ([]string, error) {
	if albumID == "" {
		return nil, fmt.Errorf("%w: album id is required", common.ErrBadRequest)
	}

	keys, err := store.List(ctx, albumID+"/"+common.ThumbnailsDir+"/")
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(keys))
	for _, k := range keys {
		u := fmt.Sprintf("https://%s.%s/%s", store.Bucket(), store.EndpointHost(), k)
		if strings.HasSuffix(u, common.BlankSuffix) {
			continue
		}
		urls = append(urls, u)
	}
	return urls, nil
}

// Upload writes the file publicly readable and registers its album. The
// object stays in place if the registry update fails afterwards.
func (s *GalleryService) Upload(ctx context.Context, store storage.ObjectStore, req UploadRequest) (string, error) {
	folder := strings.Trim(strings.ReplaceAll(req.FolderPath, `\`, "/"), "/")
	file := strings.TrimLeft(strings.ReplaceAll(req.FileName, `\`, "/"), "/")
	if folder == "" || file == "" || req.Body == nil {
		return "", fmt.Errorf("%w: folderPath, fileName and file are required", common.ErrBadRequest)
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	key := folder + "/" + file
	if err := store.Put(ctx, key, req.Body, storage.PutOptions{ContentType: contentType, PublicRead: true}); err != nil {
		return "", err
	}

	if err := s.registry.RegisterIfAbsent(ctx, store, folder); err != nil {
		return key, fmt.Errorf("register album %q: %w", folder, err)
	}
	return key, nil
}

// Download fetches key. The caller closes the returned body.
func (s *GalleryService) Download(ctx context.Context, store storage.ObjectStore, key string) (*storage.Object, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", common.ErrBadRequest)
	}

	obj, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if obj.ContentType == "" {
		obj.ContentType = defaultContentType
	}
	return obj, nil
}
