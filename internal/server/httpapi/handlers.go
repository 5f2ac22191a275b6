package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/dmitrijs2005/photogate/internal/common"
	"github.com/dmitrijs2005/photogate/internal/logging"
	"github.com/dmitrijs2005/photogate/internal/server/albums"
	"github.com/dmitrijs2005/photogate/internal/server/metrics"
	"github.com/dmitrijs2005/photogate/internal/server/models"
	"github.com/dmitrijs2005/photogate/internal/server/services"
	"github.com/dmitrijs2005/photogate/internal/server/storage"
)

const (
	maxUploadMemory = 32 << 20
	presignTTL      = 15 * time.Minute
)

// UserAPI is the account side of the gateway.
type UserAPI interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	SetStorageCredentials(ctx context.Context, userID string, in services.CredentialsInput) error
}

// Gallery is the album and object side of the gateway.
type Gallery interface {
	ListAlbums(ctx context.Context, store storage.ObjectStore) ([]albums.Album, error)
	Settings(ctx context.Context, store storage.ObjectStore) (albums.Document, error)
	ListImages(ctx context.Context, store storage.ObjectStore, albumID string) ([]string, error)
	Upload(ctx context.Context, store storage.ObjectStore, req services.UploadRequest) (string, error)
	Download(ctx context.Context, store storage.ObjectStore, key string) (*storage.Object, error)
}

type handler struct {
	users       UserAPI
	gallery     Gallery
	tokens      TokenVerifier
	publicStore storage.ObjectStore
	baseURL     string
	metrics     *metrics.Metrics
	log         logging.Logger
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type storageRequest struct {
	Name            string `json:"s3_name"`
	AccessKeyID     string `json:"s3_access_key_id"`
	SecretAccessKey string `json:"s3_secret_access_key"`
	Region          string `json:"s3_region"`
	Endpoint        string `json:"s3_endpoint"`
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", common.ErrBadRequest)
	}
	return nil
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	u, err := h.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	h.log.Info(r.Context(), "user registered", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "user registered", "id": u.ID})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	token, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	if err := h.tokens.Revoke(r.Context(), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeMessage(w, http.StatusOK, "logged out")
}

func (h *handler) setStorageCredentials(w http.ResponseWriter, r *http.Request) {
	var req storageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	id, _ := IdentityFrom(r.Context())
	err := h.users.SetStorageCredentials(r.Context(), id.UserID, services.CredentialsInput{
		Name:            req.Name,
		AccessKeyID:     req.AccessKeyID,
		SecretAccessKey: req.SecretAccessKey,
		Region:          req.Region,
		Endpoint:        req.Endpoint,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeMessage(w, http.StatusOK, "storage credentials saved")
}

func (h *handler) config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"baseUrl": h.baseURL})
}

func (h *handler) listAlbums(w http.ResponseWriter, r *http.Request) {
	store, _ := StoreFrom(r.Context())
	list, err := h.gallery.ListAlbums(r.Context(), store)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]albums.Album{"albums": list})
}

func (h *handler) settings(w http.ResponseWriter, r *http.Request) {
	store, _ := StoreFrom(r.Context())
	doc, err := h.gallery.Settings(r.Context(), store)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *handler) listImages(w http.ResponseWriter, r *http.Request) {
	store, _ := StoreFrom(r.Context())
	urls, err := h.gallery.ListImages(r.Context(), store, r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"images": urls})
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	store, _ := StoreFrom(r.Context())
	q := r.URL.Query()
	req := services.UploadRequest{FolderPath: q.Get("folderPath"), FileName: q.Get("fileName")}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, r, h.log, fmt.Errorf("%w: invalid multipart form", common.ErrBadRequest))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	if f, header, err := r.FormFile("file"); err == nil {
		defer f.Close()
		req.Body = f
		req.ContentType = header.Header.Get("Content-Type")
	}

	key, err := h.gallery.Upload(r.Context(), store, req)
	h.metrics.RecordUpload(err)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "file uploaded", "key": key})
}

func (h *handler) download(w http.ResponseWriter, r *http.Request) {
	store, _ := StoreFrom(r.Context())
	h.serveObject(w, r, store)
}

func (h *handler) publicDownload(w http.ResponseWriter, r *http.Request) {
	h.serveObject(w, r, h.publicStore)
}

// serveObject streams ?key= as an attachment, or with ?presign=1 redirects to
// a temporary URL when the store can sign one.
func (h *handler) serveObject(w http.ResponseWriter, r *http.Request, store storage.ObjectStore) {
	key := r.URL.Query().Get("key")

	if p, ok := store.(storage.Presigner); ok && key != "" && r.URL.Query().Get("presign") == "1" {
		url, err := p.PresignGet(r.Context(), key, presignTTL)
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	obj, err := h.gallery.Download(r.Context(), store, key)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(key)}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.log.Warn(r.Context(), "download interrupted", "key", key, "error", err)
	}
}
