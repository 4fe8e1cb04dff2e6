package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/domain"
)

var (
	ErrArtifactNotFound = errors.New("storage: artifact not found")
	ErrInvalidKey       = errors.New("storage: invalid key")
	ErrUnknownNamespace = errors.New("storage: unknown namespace")
)

type localStore struct {
	dirs map[domain.Namespace]string
}

// NewLocalStore keeps uploads and results as plain files under two directories,
// creating them if needed.
func NewLocalStore(uploadDir, resultDir string) (ports.ArtifactStore, error) {
	dirs := map[domain.Namespace]string{
		domain.NamespaceUploads: uploadDir,
		domain.NamespaceResults: resultDir,
	}
	for ns, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", ns, err)
		}
	}
	return &localStore{dirs: dirs}, nil
}

func (s *localStore) path(ns domain.Namespace, key string) (string, error) {
	dir, ok := s.dirs[ns]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownNamespace, ns)
	}
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(dir, key), nil
}

func (s *localStore) Exists(ctx context.Context, ns domain.Namespace, key string) (bool, error) {
	p, err := s.path(ns, key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (s *localStore) Read(ctx context.Context, ns domain.Namespace, key string) ([]byte, error) {
	p, err := s.path(ns, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, wrapNotExist(err, ns, key)
	}
	return data, nil
}

// Write goes through a temp file in the same directory so readers never see a partial artifact.
func (s *localStore) Write(ctx context.Context, ns domain.Namespace, key string, data []byte) error {
	p, err := s.path(ns, key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-"+key+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *localStore) Open(ctx context.Context, ns domain.Namespace, key string) (io.ReadCloser, int64, error) {
	p, err := s.path(ns, key)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, 0, wrapNotExist(err, ns, key)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func (s *localStore) Delete(ctx context.Context, ns domain.Namespace, key string) error {
	p, err := s.path(ns, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".tmp-") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func wrapNotExist(err error, ns domain.Namespace, key string) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s/%s", ErrArtifactNotFound, ns, key)
	}
	return err
}
