package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/zalando/go-keyring"

	verrors "github.com/dshills/vizier/pkg/errors"
)

const (
	// ServiceName is the identifier used for all Vizier credentials in the system keyring.
	ServiceName = "vizier"

	indexKey = "__vizier_index__"
)

// Well-known credential keys.
const (
	// CredentialEngineToken is sent as a bearer token to a delegated engine.
	CredentialEngineToken = "engine.token"
	// CredentialS3 holds an S3Credential.
	CredentialS3 = "s3"
)

// S3Credential is the structured credential stored under CredentialS3.
type S3Credential struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token,omitempty"`
}

// CredentialStore defines the interface for secure credential storage.
type CredentialStore interface {
	// Set stores a credential securely
	Set(key string, value string) error
	// Get retrieves a credential. Unknown keys return errors.ErrNotFound.
	Get(key string) (string, error)
	// Delete removes a credential
	Delete(key string) error
	// List returns all credential keys (not the values)
	List() ([]string, error)
}

// KeyringCredentialStore implements CredentialStore using the system keyring.
// - macOS: Uses Keychain
// - Windows: Uses Credential Manager
// - Linux: Uses Secret Service (GNOME Keyring, KWallet)
type KeyringCredentialStore struct {
	service string
}

// NewKeyringCredentialStore creates a new keyring-based credential store.
func NewKeyringCredentialStore() *KeyringCredentialStore {
	return &KeyringCredentialStore{
		service: ServiceName,
	}
}

// Set stores a credential in the system keyring. The key is used as the
// account name and value as the password.
func (s *KeyringCredentialStore) Set(key string, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	if err := keyring.Set(s.service, key, value); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	// The credential is stored even if the index update fails.
	_ = s.addToIndex(key)
	return nil
}

// Get retrieves a credential from the system keyring.
func (s *KeyringCredentialStore) Get(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}

	value, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("credential %s: %w", key, verrors.ErrNotFound)
		}
		return "", fmt.Errorf("failed to retrieve credential: %w", err)
	}

	return value, nil
}

// Delete removes a credential from the system keyring.
func (s *KeyringCredentialStore) Delete(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	if err := keyring.Delete(s.service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("credential %s: %w", key, verrors.ErrNotFound)
		}
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	_ = s.removeFromIndex(key)
	return nil
}

// List returns the stored credential keys in sorted order. The index is
// kept as a special keyring entry.
func (s *KeyringCredentialStore) List() ([]string, error) {
	indexJSON, err := keyring.Get(s.service, indexKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to retrieve credential index: %w", err)
	}

	var keys []string
	if err := json.Unmarshal([]byte(indexJSON), &keys); err != nil {
		return nil, fmt.Errorf("failed to parse credential index: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// SetStructured stores a credential serialized as JSON.
func (s *KeyringCredentialStore) SetStructured(key string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal credential data: %w", err)
	}
	return s.Set(key, string(jsonData))
}

// GetStructured retrieves and deserializes a structured credential.
func (s *KeyringCredentialStore) GetStructured(key string, dest interface{}) error {
	jsonData, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(jsonData), dest); err != nil {
		return fmt.Errorf("failed to unmarshal credential data: %w", err)
	}
	return nil
}

func (s *KeyringCredentialStore) addToIndex(key string) error {
	keys, err := s.List()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == key {
			return nil
		}
	}
	return s.saveIndex(append(keys, key))
}

func (s *KeyringCredentialStore) removeFromIndex(key string) error {
	keys, err := s.List()
	if err != nil {
		return err
	}
	kept := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != key {
			kept = append(kept, k)
		}
	}
	return s.saveIndex(kept)
}

func (s *KeyringCredentialStore) saveIndex(keys []string) error {
	indexJSON, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to marshal credential index: %w", err)
	}
	if err := keyring.Set(s.service, indexKey, string(indexJSON)); err != nil {
		return fmt.Errorf("failed to save credential index: %w", err)
	}
	return nil
}

func checkKey(key string) error {
	if key == "" {
		return verrors.NewValidation(verrors.CodeInvalidArgument, "credential key cannot be empty")
	}
	if key == indexKey {
		return verrors.NewValidation(verrors.CodeInvalidName, "credential key '%s' is reserved", key)
	}
	return nil
}
