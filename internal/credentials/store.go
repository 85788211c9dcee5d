package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"

	"github.com/pfrederiksen/geop-sync/internal/crypto"
)

// ErrNoToken is returned when no token has been stored yet.
var ErrNoToken = errors.New("no OAuth token stored, run 'geop-sync auth' first")

// TokenStore persists one OAuth2 token as a JSON file.
type TokenStore struct {
	path string
	enc  *crypto.Encryptor
}

// NewTokenStore stores the token at path. A non-nil encryptor encrypts the
// file contents.
func NewTokenStore(path string, enc *crypto.Encryptor) *TokenStore {
	return &TokenStore{path: path, enc: enc}
}

// Load reads the stored token.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("reading token: %w", err)
	}

	plain, err := s.enc.Decrypt(string(data))
	if err != nil {
		return nil, fmt.Errorf("decrypting token: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal([]byte(plain), &tok); err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	return &tok, nil
}

// Save writes tok atomically with 0600 permissions.
func (s *TokenStore) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	out, err := s.enc.Encrypt(string(data))
	if err != nil {
		return fmt.Errorf("encrypting token: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp token: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(out); err != nil {
		tmp.Close()
		return fmt.Errorf("writing token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing token: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("setting token permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing token: %w", err)
	}
	return nil
}
