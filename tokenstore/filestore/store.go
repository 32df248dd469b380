// Package filestore keeps the session in a single JSON document on disk. Every Get re-reads the
// file so a token written by another process is picked up; every Set or Remove rewrites it
// through a temporary file and rename.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/jrsteele09/go-underwriter/tokenstore"
	"github.com/rs/zerolog/log"
)

var _ tokenstore.Store = (*Store)(nil)

// document is the on-disk shape. Exactly one of Values or Sealed is set.
type document struct {
	Values map[string]string `json:"values,omitempty"`
	Sealed *sealedBox        `json:"sealed,omitempty"`
}

type Store struct {
	mu     sync.RWMutex
	path   string
	cipher *boxCipher
}

type Option func(*Store)

// WithPassphrase encrypts the document at rest. An empty passphrase leaves it in plain JSON.
func WithPassphrase(passphrase string) Option {
	return func(s *Store) {
		if passphrase != "" {
			s.cipher = newBoxCipher(passphrase)
		}
	}
}

func New(path string, options ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("[filestore New] path is required")
	}
	s := &Store{path: path}
	for _, opt := range options {
		opt(s)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("[filestore New] create folder: %w", err)
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, err := s.load()
	if err != nil {
		log.Err(err).Str("path", s.path).Msg("filestore: unreadable session file")
		return "", false
	}
	v, ok := values[key]
	return v, ok
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return fmt.Errorf("[filestore Set] %w", err)
	}
	values[key] = value
	return s.save(values)
}

func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return fmt.Errorf("[filestore Remove] %w", err)
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return make(map[string]string), nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}

	if doc.Sealed != nil {
		if s.cipher == nil {
			return nil, ErrPassphraseRequired
		}
		plain, err := s.cipher.open(doc.Sealed)
		if err != nil {
			return nil, err
		}
		values := make(map[string]string)
		if err := json.Unmarshal(plain, &values); err != nil {
			return nil, fmt.Errorf("decode sealed values: %w", err)
		}
		return values, nil
	}

	if doc.Values == nil {
		doc.Values = make(map[string]string)
	}
	return doc.Values, nil
}

func (s *Store) save(values map[string]string) error {
	var doc document
	if s.cipher != nil {
		plain, err := json.Marshal(values)
		if err != nil {
			return fmt.Errorf("encode values: %w", err)
		}
		sealed, err := s.cipher.seal(plain)
		if err != nil {
			return err
		}
		doc.Sealed = sealed
	} else {
		doc.Values = values
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
