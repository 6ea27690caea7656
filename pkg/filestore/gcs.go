package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSBackend keeps files as objects under prefix in a Cloud Storage bucket.
type GCSBackend struct {
	bucket *storage.BucketHandle
	prefix string // no leading or trailing slash; empty means the bucket root
}

// NewGCSBackend uses application default credentials.
func NewGCSBackend(ctx context.Context, bucket, prefix string) (*GCSBackend, *storage.Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return newGCSBackend(client.Bucket(bucket), prefix), client, nil
}

func newGCSBackend(bucket *storage.BucketHandle, prefix string) *GCSBackend {
	return &GCSBackend{bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// objectName is the key name is stored under.
func (b *GCSBackend) objectName(name string) string {
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

// listPrefix selects every object written through objectName.
func (b *GCSBackend) listPrefix() string {
	if b.prefix == "" {
		return ""
	}
	return b.prefix + "/"
}

func (b *GCSBackend) object(name string) (*storage.ObjectHandle, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	return b.bucket.Object(b.objectName(name)), nil
}

func (b *GCSBackend) Write(ctx context.Context, name string, data []byte) error {
	obj, err := b.object(name)
	if err != nil {
		return err
	}
	// DoesNotExist keeps a generated name from overwriting another object.
	w := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object %s: %w", name, err)
	}
	return nil
}

func (b *GCSBackend) Read(ctx context.Context, name string) ([]byte, error) {
	obj, err := b.object(name)
	if err != nil {
		return nil, err
	}
	r, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", name, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (b *GCSBackend) Delete(ctx context.Context, name string) error {
	obj, err := b.object(name)
	if err != nil {
		return err
	}
	if err := obj.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object %s: %w", name, err)
	}
	return nil
}

// Usage sums object sizes under the prefix.
func (b *GCSBackend) Usage(ctx context.Context) (int64, error) {
	q := &storage.Query{Prefix: b.listPrefix()}
	if err := q.SetAttrSelection([]string{"Size"}); err != nil {
		return 0, err
	}
	var total int64
	it := b.bucket.Objects(ctx, q)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("list objects: %w", err)
		}
		total += attrs.Size
	}
	return total, nil
}
