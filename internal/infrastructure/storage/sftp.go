package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"

	"github.com/google/uuid"
	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/domain"
	"github.com/pixelift/backend/internal/infrastructure/logger"
	"github.com/pixelift/backend/internal/infrastructure/remote"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPStore keeps artifacts on a remote host. One SSH connection is shared and
// re-established after a failed operation.
type SFTPStore struct {
	dialer *remote.SSHClient
	dirs   map[domain.Namespace]string
	logger *logger.Logger

	mu   sync.Mutex
	conn *ssh.Client
	sc   *sftp.Client
}

var _ ports.ArtifactStore = (*SFTPStore)(nil)

func NewSFTPStore(client *remote.SSHClient, uploadDir, resultDir string, log *logger.Logger) *SFTPStore {
	return &SFTPStore{
		dialer: client,
		dirs: map[domain.Namespace]string{
			domain.NamespaceUploads: uploadDir,
			domain.NamespaceResults: resultDir,
		},
		logger: log,
	}
}

// Connect establishes the session eagerly and creates the remote directories.
func (s *SFTPStore) Connect(ctx context.Context) error {
	sc, err := s.client(ctx)
	if err != nil {
		return err
	}
	for ns, dir := range s.dirs {
		if err := sc.MkdirAll(dir); err != nil {
			return fmt.Errorf("create remote %s dir: %w", ns, err)
		}
	}
	s.logger.Infow("sftp_store_connected", "addr", s.dialer.Address())
	return nil
}

func (s *SFTPStore) client(ctx context.Context) (*sftp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sc != nil {
		return s.sc, nil
	}

	conn, err := s.dialer.ConnectWithRetry(ctx)
	if err != nil {
		return nil, err
	}
	sc, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}
	s.conn = conn
	s.sc = sc
	return sc, nil
}

// reset drops the cached session after a transport error so the next call redials.
func (s *SFTPStore) reset(err error) {
	if err == nil || errors.Is(err, os.ErrNotExist) || errors.Is(err, ErrInvalidKey) {
		return
	}
	var statusErr *sftp.StatusError
	if errors.As(err, &statusErr) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sc != nil {
		s.sc.Close()
		s.sc = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.logger.Warnw("sftp_store_session_reset", "error", err)
}

func (s *SFTPStore) path(ns domain.Namespace, key string) (string, error) {
	dir, ok := s.dirs[ns]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownNamespace, ns)
	}
	if err := validateKey(key); err != nil {
		return "", err
	}
	return path.Join(dir, key), nil
}

func (s *SFTPStore) Exists(ctx context.Context, ns domain.Namespace, key string) (bool, error) {
	p, err := s.path(ns, key)
	if err != nil {
		return false, err
	}
	sc, err := s.client(ctx)
	if err != nil {
		return false, err
	}
	info, err := sc.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		s.reset(err)
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (s *SFTPStore) Read(ctx context.Context, ns domain.Namespace, key string) ([]byte, error) {
	rc, _, err := s.Open(ctx, ns, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		s.reset(err)
		return nil, err
	}
	return data, nil
}

func (s *SFTPStore) Write(ctx context.Context, ns domain.Namespace, key string, data []byte) error {
	p, err := s.path(ns, key)
	if err != nil {
		return err
	}
	sc, err := s.client(ctx)
	if err != nil {
		return err
	}

	tmpPath := path.Join(path.Dir(p), tempName(key))
	remoteFile, err := sc.Create(tmpPath)
	if err != nil {
		s.reset(err)
		return fmt.Errorf("failed to create remote file: %w", err)
	}

	written, err := remoteFile.Write(data)
	if err != nil {
		remoteFile.Close()
		s.reset(err)
		return fmt.Errorf("failed to upload artifact: %w", err)
	}
	if err := remoteFile.Close(); err != nil {
		s.reset(err)
		return err
	}
	if written != len(data) {
		return fmt.Errorf("upload incomplete: expected %d bytes, got %d", len(data), written)
	}

	if err := sc.PosixRename(tmpPath, p); err != nil {
		s.reset(err)
		return fmt.Errorf("failed to publish artifact: %w", err)
	}
	return nil
}

// tempName is unique per call so concurrent writers of one key never share a file.
func tempName(key string) string {
	return ".tmp-" + key + "-" + uuid.New().String()
}

func (s *SFTPStore) Open(ctx context.Context, ns domain.Namespace, key string) (io.ReadCloser, int64, error) {
	p, err := s.path(ns, key)
	if err != nil {
		return nil, 0, err
	}
	sc, err := s.client(ctx)
	if err != nil {
		return nil, 0, err
	}
	f, err := sc.Open(p)
	if err != nil {
		s.reset(err)
		return nil, 0, wrapNotExist(err, ns, key)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		s.reset(err)
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func (s *SFTPStore) Delete(ctx context.Context, ns domain.Namespace, key string) error {
	p, err := s.path(ns, key)
	if err != nil {
		return err
	}
	sc, err := s.client(ctx)
	if err != nil {
		return err
	}
	if err := sc.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.reset(err)
		return err
	}
	return nil
}

func (s *SFTPStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.sc != nil {
		err = s.sc.Close()
		s.sc = nil
	}
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
		s.conn = nil
	}
	return err
}
