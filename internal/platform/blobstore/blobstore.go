// Package blobstore provides file storage for uploaded clinic documents:
// signed patient consent forms, patient documents, worker time-register
// sheets and generated invoice PDFs. It defines the Store interface, a
// filesystem implementation backed by the configured media directory, and
// an in-memory implementation for tests.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrInvalidCategory    = errors.New("unknown blob category")
	ErrMissingFileName    = errors.New("file name is required")
)

// MaxFileSize is the maximum allowed blob size in bytes (20 MB).
const MaxFileSize = 20 * 1024 * 1024

// Blob categories used across the clinic domain.
const (
	CategoryConsentGeneral    = "consent-general"
	CategoryConsentMinor      = "consent-minor"
	CategoryConsentInjections = "consent-injections"
	CategoryPatientDocument   = "patient-document"
	CategoryTimeRegister      = "time-register"
	CategoryInvoicePDF        = "invoice-pdf"
	CategoryProfilePhoto      = "profile-photo"
)

// AllowedCategories lists valid blob category values.
var AllowedCategories = map[string]bool{
	CategoryConsentGeneral:    true,
	CategoryConsentMinor:      true,
	CategoryConsentInjections: true,
	CategoryPatientDocument:   true,
	CategoryTimeRegister:      true,
	CategoryInvoicePDF:        true,
	CategoryProfilePhoto:      true,
}

// AllowedContentTypes lists MIME types accepted for uploads.
var AllowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
}

// Metadata describes a stored blob.
type Metadata struct {
	ID          uuid.UUID `json:"id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Category    string    `json:"category"`
	OwnerID     uuid.UUID `json:"owner_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store defines the contract for blob storage backends.
type Store interface {
	Save(ctx context.Context, meta Metadata, content io.Reader) (*Metadata, error)
	Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Metadata, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

func validate(meta *Metadata) error {
	if meta.FileName == "" {
		return ErrMissingFileName
	}
	if !AllowedCategories[meta.Category] {
		return ErrInvalidCategory
	}
	if meta.ContentType != "" && !AllowedContentTypes[meta.ContentType] {
		return ErrInvalidContentType
	}
	if meta.ID == uuid.Nil {
		meta.ID = uuid.New()
	}
	meta.CreatedAt = time.Now().UTC()
	return nil
}

func readLimited(content io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// FSStore stores blobs under dir/<category>/<id>_<filename> with a sidecar
// free layout; metadata is reconstructed from the file name on open.
type FSStore struct {
	dir string
	mu  sync.RWMutex
	// index maps blob id to its metadata; rebuilt lazily from disk layout.
	index map[uuid.UUID]Metadata
}

// NewFSStore creates the media directory if needed and returns the store.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir %s: %w", dir, err)
	}
	s := &FSStore{dir: dir, index: make(map[uuid.UUID]Metadata)}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FSStore) blobPath(meta Metadata) string {
	return filepath.Join(s.dir, meta.Category, meta.ID.String()+"_"+filepath.Base(meta.FileName))
}

func (s *FSStore) loadIndex() error {
	for category := range AllowedCategories {
		entries, err := os.ReadDir(filepath.Join(s.dir, category))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("read category dir %s: %w", category, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			idPart, fileName, ok := strings.Cut(name, "_")
			if !ok {
				continue
			}
			id, err := uuid.Parse(idPart)
			if err != nil {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			s.index[id] = Metadata{
				ID:        id,
				FileName:  fileName,
				Size:      info.Size(),
				Category:  category,
				CreatedAt: info.ModTime().UTC(),
			}
		}
	}
	return nil
}

func (s *FSStore) Save(_ context.Context, meta Metadata, content io.Reader) (*Metadata, error) {
	if err := validate(&meta); err != nil {
		return nil, err
	}
	data, err := readLimited(content)
	if err != nil {
		return nil, err
	}
	meta.Size = int64(len(data))

	path := s.blobPath(meta)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create category dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write blob: %w", err)
	}

	s.mu.Lock()
	s.index[meta.ID] = meta
	s.mu.Unlock()

	return &meta, nil
}

func (s *FSStore) Open(_ context.Context, id uuid.UUID) (io.ReadCloser, *Metadata, error) {
	s.mu.RLock()
	meta, ok := s.index[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrBlobNotFound
	}

	f, err := os.Open(s.blobPath(meta))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("open blob: %w", err)
	}
	return f, &meta, nil
}

func (s *FSStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.index[id]
	if !ok {
		return ErrBlobNotFound
	}
	if err := os.Remove(s.blobPath(meta)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob: %w", err)
	}
	delete(s.index, id)
	return nil
}

// InMemoryStore is a thread-safe, in-memory Store for tests.
type InMemoryStore struct {
	mu    sync.RWMutex
	blobs map[uuid.UUID]storedBlob
}

type storedBlob struct {
	meta    Metadata
	content []byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{blobs: make(map[uuid.UUID]storedBlob)}
}

func (s *InMemoryStore) Save(_ context.Context, meta Metadata, content io.Reader) (*Metadata, error) {
	if err := validate(&meta); err != nil {
		return nil, err
	}
	data, err := readLimited(content)
	if err != nil {
		return nil, err
	}
	meta.Size = int64(len(data))

	s.mu.Lock()
	s.blobs[meta.ID] = storedBlob{meta: meta, content: data}
	s.mu.Unlock()

	return &meta, nil
}

func (s *InMemoryStore) Open(_ context.Context, id uuid.UUID) (io.ReadCloser, *Metadata, error) {
	s.mu.RLock()
	blob, ok := s.blobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	meta := blob.meta
	return io.NopCloser(bytes.NewReader(blob.content)), &meta, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, id)
	return nil
}
