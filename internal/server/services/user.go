// Package services contains server-side business logic. This file implements
// UserService: registration, login and storage credential management.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/photogate/internal/common"
	"github.com/dmitrijs2005/photogate/internal/cryptox"
	"github.com/dmitrijs2005/photogate/internal/dbx"
	"github.com/dmitrijs2005/photogate/internal/server/models"
	"github.com/dmitrijs2005/photogate/internal/server/repositories/repomanager"
)

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	IssueToken(userID, username string) (string, error)
}

// Encrypter seals secrets before they are stored.
type Encrypter interface {
	Encrypt(plaintext []byte) (string, error)
}

// CredentialsInput is what a user submits to bind a bucket. SecretAccessKey
// is plaintext here and is sealed before it reaches the database.
type CredentialsInput struct {
	Name            string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string
}

// UserService provides account operations:
// - Register: create users
// - Login: verify credentials and mint a session token
// - SetStorageCredentials / GetStorageCredentials: the per-user bucket binding
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      TokenIssuer
	vault       Encrypter

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, tokens TokenIssuer, vault Encrypter) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		vault:       vault,
	}
}

// Register creates a user with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrBadRequest)
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	repo := s.repomanager.Users(s.db)
	u, err := repo.Create(ctx, &models.User{UserName: username, PasswordHash: hash})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// Login checks the password and returns a session token. Unknown users and
// wrong passwords yield the same common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: username and password are required", common.ErrBadRequest)
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// burn the same bcrypt time as a real check
			cryptox.CheckPassword(s.getDummyHash(), password)
			return "", common.ErrorUnauthorized
		}
		return "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	if !cryptox.CheckPassword(user.PasswordHash, password) {
		return "", common.ErrorUnauthorized
	}

	token, err := s.tokens.IssueToken(user.ID, user.UserName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return token, nil
}

// SetStorageCredentials seals the secret and saves the binding. The update
// must hit exactly one row.
func (s *UserService) SetStorageCredentials(ctx context.Context, userID string, in CredentialsInput) error {
	in = CredentialsInput{
		Name:            strings.TrimSpace(in.Name),
		AccessKeyID:     strings.TrimSpace(in.AccessKeyID),
		SecretAccessKey: strings.TrimSpace(in.SecretAccessKey),
		Region:          strings.TrimSpace(in.Region),
		Endpoint:        strings.TrimSpace(in.Endpoint),
	}
	if in.Name == "" || in.AccessKeyID == "" || in.SecretAccessKey == "" || in.Region == "" || in.Endpoint == "" {
		return fmt.Errorf("%w: all storage fields are required", common.ErrBadRequest)
	}

	sealed, err := s.vault.Encrypt([]byte(in.SecretAccessKey))
	if err != nil {
		return fmt.Errorf("seal secret: %w", err)
	}

	creds := models.StorageCredentials{
		Name:                     in.Name,
		Endpoint:                 in.Endpoint,
		Region:                   in.Region,
		AccessKeyID:              in.AccessKeyID,
		SecretAccessKeyEncrypted: sealed,
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repomanager.Users(tx).UpdateStorageCredentials(ctx, userID, creds)
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("%w: user %s (%d rows)", common.ErrorNotFound, userID, n)
		}
		return nil
	})
}

// GetStorageCredentials returns the sealed binding of userID.
func (s *UserService) GetStorageCredentials(ctx context.Context, userID string) (models.StorageCredentials, error) {
	u, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return models.StorageCredentials{}, err
	}
	return u.Storage, nil
}

func (s *UserService) getDummyHash() string {
	s.dummyOnce.Do(func() {
		pw, err := common.MakeRandHexString(16)
		if err != nil {
			return
		}
		if h, err := cryptox.HashPassword(pw); err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
