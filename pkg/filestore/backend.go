package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotExist is returned by Backend.Read for unknown names.
	ErrNotExist = errors.New("file does not exist")
	// ErrUnsafePath is returned for names that would resolve outside the root.
	ErrUnsafePath = errors.New("path escapes upload directory")
)

// Backend stores opaque blobs by flat name.
type Backend interface {
	Write(ctx context.Context, name string, data []byte) error
	Read(ctx context.Context, name string) ([]byte, error)
	// Delete succeeds when name does not exist.
	Delete(ctx context.Context, name string) error
	// Usage is the total size in bytes of everything stored.
	Usage(ctx context.Context) (int64, error)
}

// checkName accepts a single path element only.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}
	return nil
}

// LocalBackend keeps files in one directory on local disk.
type LocalBackend struct {
	root string
}

// NewLocalBackend creates dir if needed and resolves it to an absolute path.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory %s: %w", dir, err)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	return &LocalBackend{root: root}, nil
}

// Root is the absolute upload directory.
func (b *LocalBackend) Root() string { return b.root }

// resolve joins name to the root and verifies the result stays inside it.
func (b *LocalBackend) resolve(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	full := filepath.Join(b.root, name)
	rel, err := filepath.Rel(b.root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}
	return full, nil
}

// Write stores data via temp file, fsync and atomic rename, so a crash never
// leaves a partial file under name.
func (b *LocalBackend) Write(ctx context.Context, name string, data []byte) error {
	full, err := b.resolve(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.CreateTemp(b.root, ".upload-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("fsync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func (b *LocalBackend) Read(ctx context.Context, name string) ([]byte, error) {
	full, err := b.resolve(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotExist)
	}
	return data, err
}

func (b *LocalBackend) Delete(ctx context.Context, name string) error {
	full, err := b.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// Usage walks the directory on every call.
func (b *LocalBackend) Usage(ctx context.Context) (int64, error) {
	var total int64
	err := filepath.WalkDir(b.root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("measure upload directory: %w", err)
	}
	return total, nil
}
