// Package store persists small pieces of driver state, chiefly the address
// of the last known device.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// AddressKey holds the saved device address.
const AddressKey = "device_address"

// StateVersion is the current version of the state file format.
const StateVersion = 1

// KV is a string key/value store. Get returns "" for missing keys.
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// state is the on-disk layout of a FileStore.
type state struct {
	Version int               `yaml:"version"`
	SavedAt time.Time         `yaml:"saved_at"`
	Values  map[string]string `yaml:"values,omitempty"`
}

// FileStore keeps values in a YAML file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by path. The file is created on the
// first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return "", err
	}
	return st.Values[key], nil
}

// Set stores value under key. An empty value deletes the key.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	if value == "" {
		delete(st.Values, key)
	} else {
		st.Values[key] = value
	}
	return s.save(st)
}

func (s *FileStore) load() (*state, error) {
	st := &state{Values: map[string]string{}}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	if err := yaml.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}
	if st.Values == nil {
		st.Values = map[string]string{}
	}
	return st, nil
}

func (s *FileStore) save(st *state) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	st.Version = StateVersion
	st.SavedAt = time.Now().UTC()

	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("moving state file: %w", err)
	}
	return nil
}

// Memory is an in-process KV.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == "" {
		delete(m.values, key)
		return nil
	}
	m.values[key] = value
	return nil
}

// AddressStore exposes the saved device address of a KV.
type AddressStore struct {
	kv KV
}

// NewAddressStore wraps kv.
func NewAddressStore(kv KV) *AddressStore {
	return &AddressStore{kv: kv}
}

// LoadAddress returns the saved address, or "" if none.
func (a *AddressStore) LoadAddress() (string, error) {
	return a.kv.Get(AddressKey)
}

// SaveAddress persists address; "" forgets the device.
func (a *AddressStore) SaveAddress(address string) error {
	return a.kv.Set(AddressKey, address)
}
