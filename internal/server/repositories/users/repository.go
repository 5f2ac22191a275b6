package users

import (
	"context"

	"github.com/dmitrijs2005/photogate/internal/server/models"
)

// Repository is the user directory.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateStorageCredentials(ctx context.Context, id string, creds models.StorageCredentials) (int64, error)
}
