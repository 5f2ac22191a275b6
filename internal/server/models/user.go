package models

import "time"

// User is a gateway account. Storage holds the per-user object-store
// binding; it is empty until the user saves credentials.
type User struct {
	ID           string
	UserName     string
	PasswordHash string
	Storage      StorageCredentials
	CreatedAt    time.Time
}

// StorageCredentials binds a user to a bucket. SecretAccessKeyEncrypted is
// a vault envelope, never the plaintext secret.
type StorageCredentials struct {
	Name                     string
	Endpoint                 string
	Region                   string
	AccessKeyID              string
	SecretAccessKeyEncrypted string
}

// Complete reports whether every field needed to reach the bucket is set.
func (c StorageCredentials) Complete() bool {
	return c.Name != "" && c.Endpoint != "" && c.Region != "" &&
		c.AccessKeyID != "" && c.SecretAccessKeyEncrypted != ""
}
