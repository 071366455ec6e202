package storage

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
	"gopkg.in/yaml.v3"

	"TasteClient/internal/ports"
)

const (
	stateDirPerm  = 0o700
	stateFilePerm = 0o600
	nonceSize     = 24
)

// FileTokenStore keeps one YAML document per key inside a private directory.
// With a key configured, values are sealed with NaCl secretbox.
type FileTokenStore struct {
	dir    string
	sealer *[32]byte
}

var _ ports.TokenPersister = (*FileTokenStore)(nil)

type stateDocument struct {
	Key       string    `yaml:"key"`
	Value     string    `yaml:"value,omitempty"`
	Sealed    string    `yaml:"sealed,omitempty"`
	UpdatedAt time.Time `yaml:"updatedAt"`
}

// NewFileTokenStore prepares dir; encryptionKey is optional 64-char hex.
func NewFileTokenStore(dir, encryptionKey string) (*FileTokenStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("file token store: empty directory")
	}
	if err := os.MkdirAll(dir, stateDirPerm); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	store := &FileTokenStore{dir: dir}
	if encryptionKey = strings.TrimSpace(encryptionKey); encryptionKey != "" {
		raw, err := hex.DecodeString(encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("decode encryption key: %w", err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(raw))
		}
		var k [32]byte
		copy(k[:], raw)
		store.sealer = &k
	}
	return store, nil
}

// Load reads the value stored under key.
func (f *FileTokenStore) Load(_ context.Context, key string) (string, bool, error) {
	path, err := f.path(key)
	if err != nil {
		return "", false, err
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", path, err)
	}

	var doc stateDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return "", false, fmt.Errorf("parse %s: %w", path, err)
	}

	if doc.Sealed == "" {
		return doc.Value, doc.Value != "", nil
	}
	value, err := f.open(doc.Sealed)
	if err != nil {
		return "", false, fmt.Errorf("unseal %s: %w", path, err)
	}
	return value, value != "", nil
}

// Save writes the value atomically: temp file in the same dir, then rename.
func (f *FileTokenStore) Save(_ context.Context, key, value string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	doc := stateDocument{Key: key, UpdatedAt: time.Now().UTC()}
	if f.sealer != nil {
		sealed, err := f.seal(value)
		if err != nil {
			return fmt.Errorf("seal %s: %w", key, err)
		}
		doc.Sealed = sealed
	} else {
		doc.Value = value
	}

	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(f.dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(stateFilePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Delete removes the document for key; a missing document is fine.
func (f *FileTokenStore) Delete(_ context.Context, key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func (f *FileTokenStore) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid state key %q", key)
	}
	return filepath.Join(f.dir, key+".yaml"), nil
}

func (f *FileTokenStore) seal(value string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(value), &nonce, f.sealer)
	return base64.StdEncoding.EncodeToString(box), nil
}

func (f *FileTokenStore) open(sealed string) (string, error) {
	if f.sealer == nil {
		return "", errors.New("value is sealed but no encryption key is configured")
	}
	box, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(box) < nonceSize+secretbox.Overhead {
		return "", errors.New("sealed value too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, f.sealer)
	if !ok {
		return "", errors.New("authentication failed")
	}
	return string(plain), nil
}
