// Package blobstore keeps attachment bytes on local disk behind signed URLs
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"chatstream/internal/domain"
	chatSvc "chatstream/internal/domain/services/chat"
)

// LocalStore implements chatSvc.BlobStore on a directory.
// URLs point at the API's own /api/blobs/{storageId} route.
type LocalStore struct {
	dir     string
	baseURL string
	signer  *Signer
	logger  *slog.Logger
}

// NewLocalStore creates dir if needed
func NewLocalStore(dir, baseURL string, signer *Signer, logger *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: baseURL, signer: signer, logger: logger}, nil
}

var _ chatSvc.BlobStore = (*LocalStore)(nil)

// path maps a storage id to a file. Only uuids are accepted so an id can never
// escape the directory.
func (s *LocalStore) path(storageID string) (string, error) {
	if _, err := uuid.Parse(storageID); err != nil {
		return "", domain.NotFound("Blob not found")
	}
	return filepath.Join(s.dir, storageID), nil
}

func (s *LocalStore) signedURL(storageID, op string, ttl time.Duration) (string, time.Time, error) {
	token, expiresAt, err := s.signer.Sign(storageID, op, ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	u := fmt.Sprintf("%s/api/blobs/%s?token=%s", s.baseURL, storageID, url.QueryEscape(token))
	return u, expiresAt, nil
}

// UploadURL returns a URL accepting one PUT for storageID
func (s *LocalStore) UploadURL(ctx context.Context, storageID string, ttl time.Duration) (string, time.Time, error) {
	return s.signedURL(storageID, OpPut, ttl)
}

// ReadURL returns a time-limited GET URL
func (s *LocalStore) ReadURL(ctx context.Context, storageID string, ttl time.Duration) (string, error) {
	u, _, err := s.signedURL(storageID, OpGet, ttl)
	return u, err
}

// Delete removes the blob; a missing blob is not an error
func (s *LocalStore) Delete(ctx context.Context, storageID string) error {
	p, err := s.path(storageID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// Verify checks a URL token for op on storageID
func (s *LocalStore) Verify(token, storageID, op string) error {
	return s.signer.Verify(token, storageID, op)
}

// Write stores r as the blob, replacing any previous content atomically
func (s *LocalStore) Write(storageID string, r io.Reader) (int64, error) {
	p, err := s.path(storageID)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(s.dir, storageID+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return 0, fmt.Errorf("commit blob: %w", err)
	}

	s.logger.Debug("blob stored", "storage_id", storageID, "bytes", n)
	return n, nil
}

// Open returns the blob file for reading
func (s *LocalStore) Open(storageID string) (*os.File, error) {
	p, err := s.path(storageID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NotFound("Blob not found")
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}
