// Package settings persists the user's API credential and endpoint override.
//
// Values are read from disk on every access so that an update takes effect
// on the next analysis without restarting the server.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gomcpgo/photo_adjust_ai/pkg/client"
	"gopkg.in/yaml.v3"
)

// FileName is the settings file created under the images root
const FileName = "settings.yaml"

// Settings are the persisted values. Empty means unset.
type Settings struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// Store reads and writes the settings file
type Store struct {
	path     string
	defaults Settings
	mu       sync.Mutex
}

// NewStore creates a store backed by path. defaults fill in any value the
// file leaves unset (typically the environment configuration).
func NewStore(path string, defaults Settings) *Store {
	return &Store{
		path:     path,
		defaults: defaults,
	}
}

// NewStoreInDir creates a store at dir/settings.yaml
func NewStoreInDir(dir string, defaults Settings) *Store {
	return NewStore(filepath.Join(dir, FileName), defaults)
}

// Path returns the settings file location
func (s *Store) Path() string {
	return s.path
}

// Load returns the values stored on disk, without defaults
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (Settings, error) {
	var stored Settings

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stored, nil
		}
		return stored, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, &stored); err != nil {
		return stored, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return stored, nil
}

// Effective returns stored values with defaults applied to unset fields
func (s *Store) Effective() (Settings, error) {
	stored, err := s.Load()
	if err != nil {
		return Settings{}, err
	}
	if stored.APIKey == "" {
		stored.APIKey = s.defaults.APIKey
	}
	if stored.BaseURL == "" {
		stored.BaseURL = s.defaults.BaseURL
	}
	return stored, nil
}

// Save writes both values. An empty value removes that key from the file.
func (s *Store) Save(apiKey, baseURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(Settings{APIKey: apiKey, BaseURL: baseURL})
}

// Update changes only the non-nil fields. Pointing a field at "" clears it.
func (s *Store) Update(apiKey, baseURL *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load()
	if err != nil {
		return err
	}
	if apiKey != nil {
		current.APIKey = *apiKey
	}
	if baseURL != nil {
		current.BaseURL = *baseURL
	}
	return s.save(current)
}

func (s *Store) save(values Settings) error {
	if values.APIKey == "" && values.BaseURL == "" {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to clear settings: %w", err)
		}
		return nil
	}

	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create settings folder: %w", err)
	}

	// 0600: the file holds a credential
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Credentials implements client.CredentialSource
func (s *Store) Credentials() (client.Credentials, error) {
	values, err := s.Effective()
	if err != nil {
		return client.Credentials{}, err
	}
	return client.Credentials{APIKey: values.APIKey, BaseURL: values.BaseURL}, nil
}

var _ client.CredentialSource = (*Store)(nil)

// MaskKey hides all but the last four characters of a key for display
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
