// Package crypto encrypts secrets stored on disk: the portal password in the
// config file and the OAuth token file.
//
// Ciphertexts are "enc:" followed by base64(salt | nonce | AES-256-GCM
// sealed data). The key is derived from a passphrase with PBKDF2-SHA256 and a
// random salt per ciphertext.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Prefix marks an encrypted value.
	Prefix = "enc:"

	saltSize   = 16
	iterations = 100000
	keySize    = 32 // AES-256
)

var (
	// ErrNoPassphrase is returned when an encrypted value is read without a
	// passphrase configured.
	ErrNoPassphrase = errors.New("value is encrypted but no passphrase is set")
	// ErrDecrypt is returned for a wrong passphrase or a corrupted value.
	ErrDecrypt = errors.New("decryption failed")
)

// Encryptor handles encryption and decryption of sensitive data
type Encryptor struct {
	passphrase []byte
}

// NewEncryptor creates a new encryptor with the given passphrase. An empty
// passphrase yields nil, which stores values in the clear.
func NewEncryptor(passphrase string) *Encryptor {
	if passphrase == "" {
		return nil
	}
	return &Encryptor{passphrase: []byte(passphrase)}
}

// IsEncrypted reports whether s carries the encryption prefix.
func IsEncrypted(s string) bool {
	return strings.HasPrefix(s, Prefix)
}

// Encrypt encrypts plaintext using AES-GCM
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if e == nil {
		return plaintext, nil
	}
	if plaintext == "" {
		return "", nil
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	gcm, err := e.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, []byte(plaintext), nil)

	return Prefix + base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt decrypts a value produced by Encrypt. Values without the prefix
// are returned unchanged so plain-text config keeps working.
func (e *Encryptor) Decrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	if e == nil {
		return "", ErrNoPassphrase
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(data) < saltSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	salt, rest := data[:saltSize], data[saltSize:]
	gcm, err := e.aead(salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, sealed := rest[:nonceSize], rest[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}

	return string(plaintext), nil
}

func (e *Encryptor) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(e.passphrase, salt, iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}
