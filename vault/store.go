package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tim-projects/omniauth/internal/logging"
)

// Store loads the collection at startup and saves it after every mutation.
type Store interface {
	Load(ctx context.Context) (*Collection, error)
	Save(ctx context.Context, c *Collection) error
}

// FileStore keeps the collection in a single JSON file.
type FileStore struct {
	path string
	log  logging.Logger
}

func NewFileStore(path string, log logging.Logger) *FileStore {
	return &FileStore{path: path, log: log.With("path", path)}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load reads the collection. A missing file yields an empty collection.
func (s *FileStore) Load(ctx context.Context) (*Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Debug(ctx, "account store not found, starting empty")
		return NewCollection(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read account store: %w", err)
	}

	accounts, err := DecodeAccounts(data)
	if err != nil {
		s.log.Error(ctx, "account store is corrupt", "error", err)
		return nil, err
	}

	s.log.Debug(ctx, "accounts loaded", "count", len(accounts))

	return NewCollection(accounts...), nil
}

// Save replaces the file atomically, readable by the owner only.
func (s *FileStore) Save(ctx context.Context, c *Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := c.Export()
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}

	var dir string = filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".accounts-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write accounts: %w", err)
	}

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod accounts: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close accounts: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace account store: %w", err)
	}

	s.log.Info(ctx, "accounts saved", "count", c.Len())

	return nil
}
