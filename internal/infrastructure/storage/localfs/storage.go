package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Storage keeps one file per key under basePath. Writes go through a temp file and rename.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "create storage dir", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) Get(_ context.Context, key string) (string, error) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.WrapError(domain.ErrNotFound, "read key", fmt.Errorf("key=%s", key))
		}
		return "", domain.WrapError(domain.ErrPersistence, "read key", err)
	}
	return string(raw), nil
}

func (s *Storage) Set(_ context.Context, key, value string) error {
	tmp, err := os.CreateTemp(s.basePath, ".tmp-*")
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, "create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return domain.WrapError(domain.ErrPersistence, "write file", err)
	}
	if err := tmp.Close(); err != nil {
		return domain.WrapError(domain.ErrPersistence, "close file", err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		return domain.WrapError(domain.ErrPersistence, "replace file", err)
	}
	return nil
}

func (s *Storage) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.WrapError(domain.ErrPersistence, "delete file", err)
	}
	return nil
}

func (s *Storage) path(key string) string {
	return filepath.Join(s.basePath, unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}
