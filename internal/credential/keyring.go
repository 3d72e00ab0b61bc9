package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "ambassador"

const (
	// TokenKey is the keyring entry holding the portal bearer token.
	TokenKey = "api-token"

	// UserKey holds the signed-in user's display name.
	UserKey = "user-name"
)

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/ambassador/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("ambassador-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Label: "Ambassador portal " + key,
		Data:  []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
// A missing key is not an error.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// KeyringToken is a portal TokenSource backed by the system keyring.
// A missing token yields an empty string so the request goes out
// unauthenticated and the server answers 401.
type KeyringToken struct {
	Key string
}

// Token reads the bearer token from the keyring.
func (k KeyringToken) Token() (string, error) {
	key := k.Key
	if key == "" {
		key = TokenKey
	}
	tok, err := Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", nil
		}
		return "", err
	}
	return tok, nil
}

// SaveSession stores the bearer token and display name of a new session.
func SaveSession(token, displayName string) error {
	if err := Set(TokenKey, token); err != nil {
		return err
	}
	return Set(UserKey, displayName)
}

// ClearSession removes the stored token and display name.
func ClearSession() error {
	if err := Delete(TokenKey); err != nil {
		return err
	}
	return Delete(UserKey)
}

// HasToken reports whether a bearer token is stored.
func HasToken() bool {
	tok, err := Get(TokenKey)
	return err == nil && tok != ""
}

// Keyring exposes the session helpers as a value so callers can swap
// it for a fake.
type Keyring struct{}

// SaveSession implements session storage.
func (Keyring) SaveSession(token, displayName string) error { return SaveSession(token, displayName) }

// ClearSession implements session storage.
func (Keyring) ClearSession() error { return ClearSession() }

// DisplayName returns the stored user name and whether a token exists.
func (Keyring) DisplayName() (string, bool) {
	if !HasToken() {
		return "", false
	}
	name, _ := Get(UserKey)
	return name, true
}
