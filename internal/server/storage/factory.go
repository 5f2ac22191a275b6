package storage

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/photogate/internal/common"
	"github.com/dmitrijs2005/photogate/internal/server/config"
	"github.com/dmitrijs2005/photogate/internal/server/models"
)

// CredentialSource looks up a user's storage binding.
type CredentialSource interface {
	GetStorageCredentials(ctx context.Context, userID string) (models.StorageCredentials, error)
}

// Decrypter opens sealed secrets.
type Decrypter interface {
	Decrypt(envelope string) ([]byte, error)
}

// Factory builds per-user stores.
type Factory struct {
	creds CredentialSource
	vault Decrypter
	open  func(context.Context, S3Settings) (ObjectStore, error)
}

func NewFactory(creds CredentialSource, vault Decrypter) *Factory {
	return &Factory{
		creds: creds,
		vault: vault,
		open: func(ctx context.Context, s S3Settings) (ObjectStore, error) {
			return NewS3Store(ctx, s)
		},
	}
}

// ForUser returns a fresh store for userID.
//
// Errors: common.ErrDirectory when the user cannot be looked up,
// common.ErrNeedsSetup when any storage field is blank, cryptox.ErrDecryption
// when the sealed secret does not open.
func (f *Factory) ForUser(ctx context.Context, userID string) (ObjectStore, error) {
	c, err := f.creds.GetStorageCredentials(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDirectory, err)
	}
	if !c.Complete() {
		return nil, common.ErrNeedsSetup
	}

	secret, err := f.vault.Decrypt(c.SecretAccessKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("open storage secret: %w", err)
	}
	defer common.WipeByteArray(secret)

	return f.open(ctx, S3Settings{
		Bucket:          c.Name,
		Endpoint:        c.Endpoint,
		Region:          c.Region,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: string(secret),
	})
}

// NewRootStore builds the server's own client for the public bucket.
func NewRootStore(ctx context.Context, cfg *config.Config) (*S3Store, error) {
	return NewS3Store(ctx, S3Settings{
		Bucket:          cfg.S3PublicBucket,
		Endpoint:        cfg.S3BaseEndpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3RootUser,
		SecretAccessKey: cfg.S3RootPassword,
	})
}
