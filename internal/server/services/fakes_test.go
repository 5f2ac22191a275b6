package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/photogate/internal/common"
	"github.com/dmitrijs2005/photogate/internal/dbx"
	"github.com/dmitrijs2005/photogate/internal/server/models"
	"github.com/dmitrijs2005/photogate/internal/server/repositories/users"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// memUsers is an in-memory users.Repository.
type memUsers struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	nextID  int
	getErr  error
	updErr  error
	updRows *int64
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*models.User{}}
}

func (m *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.UserName == u.UserName {
			return nil, common.ErrAlreadyExists
		}
	}
	m.nextID++
	cp := *u
	cp.ID = fmt.Sprintf("u-%d", m.nextID)
	cp.CreatedAt = time.Now()
	m.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memUsers) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.byID {
		if u.UserName == login {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) UpdateStorageCredentials(_ context.Context, id string, c models.StorageCredentials) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updErr != nil {
		return 0, m.updErr
	}
	if m.updRows != nil {
		return *m.updRows, nil
	}
	u, ok := m.byID[id]
	if !ok {
		return 0, nil
	}
	u.Storage = c
	return 1, nil
}

type fakeRepoManager struct {
	users *memUsers
}

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f *fakeRepoManager) Users(dbx.DBTX) users.Repository          { return f.users }

type fakeIssuer struct {
	err error
}

func (f fakeIssuer) IssueToken(userID, username string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token-for-" + userID + "-" + username, nil
}

// reverseVault is a reversible stand-in for the AES vault.
type reverseVault struct {
	err error
}

func (v reverseVault) Encrypt(p []byte) (string, error) {
	if v.err != nil {
		return "", v.err
	}
	b := make([]byte, len(p))
	for i := range p {
		b[len(p)-1-i] = p[i]
	}
	return "sealed:" + string(b), nil
}

var errBoom = errors.New("boom")
