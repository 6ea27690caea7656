// Package filestore validates uploaded evidence files and keeps them
// encrypted at rest behind a Backend.
package filestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"p9e.in/reasonsform/pkg/apperr"
	"p9e.in/reasonsform/pkg/logger"
)

// allowedExt is the set of declared extensions accepted from clients.
var allowedExt = map[string]bool{"jpg": true, "png": true, "pdf": true}

// sniffed maps a detected content type to the extension it is stored under.
var sniffed = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"application/pdf": "pdf",
}

// Upload is a file as received from a client.
type Upload struct {
	Name string
	Data []byte
}

// File is an Upload that passed validation.
type File struct {
	OriginalName string
	Type         string // jpg, png or pdf, from the content
	Data         []byte
}

// Stored is a persisted File.
type Stored struct {
	File
	StoredName string
}

// Store is the encrypted attachment store.
type Store struct {
	backend  Backend
	key      []byte
	capacity int64
	maxFile  int64
}

// NewStore requires a 32-byte AES-256 key. capacity and maxFile of zero
// disable the respective limit.
func NewStore(backend Backend, key []byte, capacity, maxFile int64) (*Store, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return &Store{backend: backend, key: key, capacity: capacity, maxFile: maxFile}, nil
}

// Validate checks the name, the declared extension, the size and the sniffed
// content of u. Nothing is written.
func (s *Store) Validate(u Upload) (File, error) {
	name, err := SanitizeName(RepairFilename(u.Name))
	if err != nil {
		return File{}, err
	}
	if ext := declaredExt(name); !allowedExt[ext] {
		return File{}, apperr.Validation("file", "%s: only jpg, jpeg, png and pdf files are allowed", name)
	}
	if len(u.Data) == 0 {
		return File{}, apperr.Validation("file", "%s: file is empty", name)
	}
	if s.maxFile > 0 && int64(len(u.Data)) > s.maxFile {
		return File{}, apperr.Validation("file", "%s: file is larger than %d MB", name, s.maxFile>>20)
	}

	mt := mimetype.Detect(u.Data)
	ext, ok := "", false
	for m := mt; m != nil; m = m.Parent() {
		if ext, ok = sniffed[m.String()]; ok {
			break
		}
	}
	if !ok {
		return File{}, apperr.Integrity("%s: file content (%s) is not a JPEG, PNG or PDF", name, mt.String())
	}
	return File{OriginalName: name, Type: ext, Data: u.Data}, nil
}

// ValidateAll validates every upload before any of them is written.
func (s *Store) ValidateAll(uploads []Upload) ([]File, error) {
	files := make([]File, 0, len(uploads))
	for _, u := range uploads {
		f, err := s.Validate(u)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// CheckCapacity fails with a Capacity error when storing incoming more
// bytes would exceed the cap. Usage is measured on every call.
func (s *Store) CheckCapacity(ctx context.Context, incoming int64) error {
	if s.capacity <= 0 {
		return nil
	}
	used, err := s.backend.Usage(ctx)
	if err != nil {
		return apperr.FromStorage(err)
	}
	if used+incoming > s.capacity {
		logger.Warn("⚠️  Upload storage full: used=%d incoming=%d cap=%d", used, incoming, s.capacity)
		return apperr.Capacity("upload storage is full, please contact the administrator")
	}
	return nil
}

// Persist encrypts and writes files under fresh opaque names. On any failure
// the files already written by this call are removed.
func (s *Store) Persist(ctx context.Context, files []File) ([]Stored, error) {
	var incoming int64
	for _, f := range files {
		incoming += int64(len(f.Data) + Overhead)
	}
	if err := s.CheckCapacity(ctx, incoming); err != nil {
		return nil, err
	}

	stored := make([]Stored, 0, len(files))
	for _, f := range files {
		sealed, err := Encrypt(s.key, f.Data)
		if err != nil {
			s.Remove(context.WithoutCancel(ctx), Names(stored)...)
			return nil, apperr.Internal(fmt.Errorf("encrypt %s: %w", f.OriginalName, err))
		}
		name := uuid.NewString() + "." + f.Type
		if err := s.backend.Write(ctx, name, sealed); err != nil {
			s.Remove(context.WithoutCancel(ctx), Names(stored)...)
			return nil, apperr.FromStorage(fmt.Errorf("write %s: %w", name, err))
		}
		stored = append(stored, Stored{File: f, StoredName: name})
	}
	return stored, nil
}

// Read returns the plaintext of name. Content that does not decrypt is
// returned unchanged, which serves files stored before encryption existed.
func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := s.backend.Read(ctx, name)
	switch {
	case errors.Is(err, ErrUnsafePath):
		return nil, apperr.Validation("file", "invalid file name")
	case errors.Is(err, ErrNotExist):
		return nil, apperr.NotFound("file not found")
	case err != nil:
		return nil, apperr.FromStorage(err)
	}

	plain, err := Decrypt(s.key, data)
	if err != nil {
		logger.Debug("Serving %s as legacy plaintext: %v", name, err)
		return data, nil
	}
	return plain, nil
}

// Remove deletes names best-effort. Failures are logged, not returned: the
// database is the source of truth for which files exist.
func (s *Store) Remove(ctx context.Context, names ...string) {
	for _, n := range names {
		if err := s.backend.Delete(ctx, n); err != nil {
			logger.Warn("⚠️  Failed to delete file %s: %v", n, err)
		}
	}
}

// Names lists the stored names of stored.
func Names(stored []Stored) []string {
	out := make([]string, len(stored))
	for i, s := range stored {
		out[i] = s.StoredName
	}
	return out
}
