// Package cryptox holds the symmetric credential vault and password hashing
// helpers used by the gateway.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/photogate/internal/common"
)

// ErrDecryption is returned when an envelope is malformed or was sealed with
// a different key.
var ErrDecryption = errors.New("decryption error")

// ErrKeySize is returned by NewVault for keys that are not a valid AES length.
var ErrKeySize = errors.New("credentials key must be 16, 24 or 32 bytes")

const envelopeSeparator = ":"

// checkLen bytes of SHA-256(plaintext) are sealed in front of the plaintext so
// a wrong key is detected even when the garbage happens to unpad cleanly.
const checkLen = 8

// Vault encrypts secrets at rest under one process-wide AES key in CBC mode.
//
// An envelope has the form hex(iv) + ":" + hex(ciphertext). The IV is fresh
// for every call, so two envelopes of the same plaintext differ. The key is
// never stored with the envelope; rotating it invalidates every envelope.
type Vault struct {
	block cipher.Block
}

// NewVault builds a Vault from a raw AES key.
func NewVault(key []byte) (*Vault, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &Vault{block: block}, nil
}

// NewVaultFromHex decodes a hex key and builds a Vault.
func NewVaultFromHex(hexKey string) (*Vault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode credentials key: %w", err)
	}
	defer common.WipeByteArray(key)
	return NewVault(key)
}

// Encrypt seals plaintext into a self-describing envelope.
func (v *Vault) Encrypt(plaintext []byte) (string, error) {
	iv := common.GenerateRandByteArray(aes.BlockSize)
	sum := sha256.Sum256(plaintext)
	padded := pkcs7Pad(append(sum[:checkLen:checkLen], plaintext...), aes.BlockSize)

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(v.block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + envelopeSeparator + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens an envelope produced by Encrypt.
func (v *Vault) Decrypt(envelope string) ([]byte, error) {
	ivHex, ctHex, ok := strings.Cut(envelope, envelopeSeparator)
	if !ok {
		return nil, fmt.Errorf("%w: missing separator", ErrDecryption)
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: bad iv", ErrDecryption)
	}

	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: bad ciphertext", ErrDecryption)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(v.block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return nil, err
	}
	if len(unpadded) < checkLen {
		return nil, fmt.Errorf("%w: short payload", ErrDecryption)
	}

	out := unpadded[checkLen:]
	sum := sha256.Sum256(out)
	if subtle.ConstantTimeCompare(sum[:checkLen], unpadded[:checkLen]) != 1 {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrDecryption)
	}
	return bytes.Clone(out), nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

// pkcs7Unpad fails on any inconsistent padding, which is what a wrong key
// produces in practice.
func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
		}
	}
	return b[:len(b)-n], nil
}
