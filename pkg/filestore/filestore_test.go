package filestore

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"os"
	"strings"
	"testing"

	"p9e.in/reasonsform/pkg/apperr"
	"p9e.in/reasonsform/testutil"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	return key
}

// latin1 returns s as a Latin-1 decoder would have seen its UTF-8 bytes.
func latin1(s string) string {
	runes := make([]rune, 0, len(s))
	for _, b := range []byte(s) {
		runes = append(runes, rune(b))
	}
	return string(runes)
}

func newTestStore(t *testing.T, capacity int64) (*Store, *LocalBackend) {
	t.Helper()
	b, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewStore(b, testKey(t), capacity, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	return s, b
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRepairFilename(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"ascii untouched", "receipt.pdf", "receipt.pdf"},
		{"correct korean untouched", "입금증.jpg", "입금증.jpg"},
		{"correct latin untouched", "café.png", "café.png"},
		{"mis-decoded korean repaired", latin1("입금증.jpg"), "입금증.jpg"},
		{"mis-decoded accented repaired", latin1("résumé.pdf"), "résumé.pdf"},
		{"invalid utf-8 after re-encoding untouched", "éé.pdf", "éé.pdf"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RepairFilename(tt.raw); got != tt.want {
				t.Errorf("RepairFilename(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRepairFilenameIsIdempotent(t *testing.T) {
	once := RepairFilename(latin1("통장사본.png"))
	if twice := RepairFilename(once); twice != once {
		t.Errorf("second repair changed %q to %q", once, twice)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", "receipt.jpg", "receipt.jpg", false},
		{"trimmed", "  receipt.jpg ", "receipt.jpg", false},
		{"nfc", "café.pdf", "café.pdf", false},
		{"empty", "   ", "", true},
		{"null byte", "a\x00.jpg", "", true},
		{"control char", "a\x07b.jpg", "", true},
		{"newline", "a\nb.jpg", "", true},
		{"slash", "dir/a.jpg", "", true},
		{"backslash", `dir\a.jpg`, "", true},
		{"inner dots", "scan..final.pdf", "scan..final.pdf", false},
		{"leading dots", "..jpg", "..jpg", false},
		{"dot", ".", "", true},
		{"dot dot", "..", "", true},
		{"traversal", "../../etc/passwd", "", true},
		{"too long", strings.Repeat("a", 252) + ".jpg", "", true},
		{"invalid utf-8", "\xff\xfe.jpg", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeName(tt.in)
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrValidation) {
					t.Errorf("SanitizeName(%q) err = %v, want Validation", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SanitizeName(%q) err = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGCSObjectNames(t *testing.T) {
	tests := []struct {
		prefix     string
		wantObject string
		wantList   string
	}{
		{"", "a.enc", ""},
		{"/", "a.enc", ""},
		{"uploads", "uploads/a.enc", "uploads/"},
		{"uploads/", "uploads/a.enc", "uploads/"},
		{"/claims/uploads/", "claims/uploads/a.enc", "claims/uploads/"},
	}
	for _, tt := range tests {
		b := newGCSBackend(nil, tt.prefix)
		if got := b.objectName("a.enc"); got != tt.wantObject {
			t.Errorf("prefix %q: objectName = %q, want %q", tt.prefix, got, tt.wantObject)
		}
		if got := b.listPrefix(); got != tt.wantList {
			t.Errorf("prefix %q: listPrefix = %q, want %q", tt.prefix, got, tt.wantList)
		}
		if !strings.HasPrefix(b.objectName("a.enc"), b.listPrefix()) {
			t.Errorf("prefix %q: written objects fall outside the usage listing", tt.prefix)
		}
	}
}

func TestEncryptDecrypt(t *testing.T) {
	key := testKey(t)
	plain := []byte("deposit slip contents")

	sealed, err := Encrypt(key, plain)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if len(sealed) != Overhead+len(plain) {
		t.Errorf("len(sealed) = %d, want %d", len(sealed), Overhead+len(plain))
	}
	if bytes.Contains(sealed, plain) {
		t.Error("sealed data contains the plaintext")
	}

	got, err := Decrypt(key, sealed)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("Decrypt() = %q, want %q", got, plain)
	}

	again, _ := Encrypt(key, plain)
	if bytes.Equal(again[:ivSize], sealed[:ivSize]) {
		t.Error("two encryptions share an IV")
	}

	t.Run("tampered tag", func(t *testing.T) {
		bad := bytes.Clone(sealed)
		bad[ivSize] ^= 0xFF
		if _, err := Decrypt(key, bad); err == nil {
			t.Error("Decrypt() accepted a tampered tag")
		}
	})
	t.Run("tampered ciphertext", func(t *testing.T) {
		bad := bytes.Clone(sealed)
		bad[len(bad)-1] ^= 0x01
		if _, err := Decrypt(key, bad); err == nil {
			t.Error("Decrypt() accepted tampered ciphertext")
		}
	})
	t.Run("wrong key", func(t *testing.T) {
		if _, err := Decrypt(testKey(t), sealed); err == nil {
			t.Error("Decrypt() accepted the wrong key")
		}
	})
	t.Run("too short", func(t *testing.T) {
		if _, err := Decrypt(key, sealed[:Overhead]); err == nil {
			t.Error("Decrypt() accepted a header-only blob")
		}
	})
}

func TestValidate(t *testing.T) {
	s, _ := newTestStore(t, 0)
	tests := []struct {
		name     string
		upload   Upload
		wantType string
		wantErr  error
	}{
		{"jpg", Upload{"slip.jpg", testutil.JPEG}, "jpg", nil},
		{"jpeg extension", Upload{"slip.JPEG", testutil.JPEG}, "jpg", nil},
		{"png", Upload{"slip.png", testutil.PNG}, "png", nil},
		{"pdf", Upload{"id.pdf", testutil.PDF}, "pdf", nil},
		{"type follows content", Upload{"slip.jpg", testutil.PNG}, "png", nil},
		{"fake jpg", Upload{"slip.jpg", testutil.Text}, "", apperr.ErrIntegrity},
		{"gif extension", Upload{"anim.gif", testutil.PNG}, "", apperr.ErrValidation},
		{"no extension", Upload{"slip", testutil.JPEG}, "", apperr.ErrValidation},
		{"empty", Upload{"slip.jpg", nil}, "", apperr.ErrValidation},
		{"too large", Upload{"slip.pdf", append(bytes.Clone(testutil.PDF), make([]byte, 1<<20)...)}, "", apperr.ErrValidation},
		{"traversal", Upload{"../slip.jpg", testutil.JPEG}, "", apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := s.Validate(tt.upload)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Validate() err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() err = %v", err)
			}
			if f.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", f.Type, tt.wantType)
			}
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s, b := newTestStore(t, 0)
	ctx := context.Background()

	files, err := s.ValidateAll([]Upload{{"slip.jpg", testutil.JPEG}, {"id.pdf", testutil.PDF}})
	if err != nil {
		t.Fatal(err)
	}
	stored, err := s.Persist(ctx, files)
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored %d files, want 2", len(stored))
	}

	for i, st := range stored {
		if !strings.HasSuffix(st.StoredName, "."+files[i].Type) || strings.Contains(st.StoredName, files[i].OriginalName) {
			t.Errorf("stored name %q leaks or mismatches %q", st.StoredName, files[i].OriginalName)
		}
		raw, err := os.ReadFile(b.Root() + "/" + st.StoredName)
		if err != nil {
			t.Fatal(err)
		}
		if bytes.Equal(raw, files[i].Data) || len(raw) != len(files[i].Data)+Overhead {
			t.Errorf("%s is not stored in sealed layout", st.StoredName)
		}

		got, err := s.Read(ctx, st.StoredName)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if !bytes.Equal(got, files[i].Data) {
			t.Errorf("Read(%s) returned different bytes", st.StoredName)
		}
	}
}

func TestStoreReadLegacyPlaintext(t *testing.T) {
	s, b := newTestStore(t, 0)
	ctx := context.Background()

	for _, data := range [][]byte{testutil.JPEG, []byte("tiny")} {
		if err := b.Write(ctx, "legacy.jpg", data); err != nil {
			t.Fatal(err)
		}
		got, err := s.Read(ctx, "legacy.jpg")
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("Read() = %x, want raw %x", got, data)
		}
	}
}

func TestStoreReadErrors(t *testing.T) {
	s, _ := newTestStore(t, 0)
	ctx := context.Background()

	if _, err := s.Read(ctx, "missing.jpg"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Read(missing) err = %v, want NotFound", err)
	}
	if _, err := s.Read(ctx, "../config.go"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Read(traversal) err = %v, want Validation", err)
	}
}

func TestFakeJPEGLeavesNoResidue(t *testing.T) {
	s, b := newTestStore(t, 0)

	_, err := s.ValidateAll([]Upload{{"ok.png", testutil.PNG}, {"fake.jpg", testutil.Text}})
	if !errors.Is(err, apperr.ErrIntegrity) {
		t.Fatalf("ValidateAll() err = %v, want Integrity", err)
	}
	if left := dirEntries(t, b.Root()); len(left) != 0 {
		t.Errorf("upload dir not empty: %v", left)
	}
}

func TestPersistCapacity(t *testing.T) {
	s, b := newTestStore(t, int64(len(testutil.PDF)+Overhead+10))
	ctx := context.Background()

	files, _ := s.ValidateAll([]Upload{{"a.pdf", testutil.PDF}})
	if _, err := s.Persist(ctx, files); err != nil {
		t.Fatalf("first Persist() error = %v", err)
	}

	_, err := s.Persist(ctx, files)
	if !errors.Is(err, apperr.ErrCapacity) {
		t.Fatalf("second Persist() err = %v, want Capacity", err)
	}
	if left := dirEntries(t, b.Root()); len(left) != 1 {
		t.Errorf("upload dir holds %v, want only the first file", left)
	}
}

type failingBackend struct {
	Backend
	failAt int
	writes int
}

func (f *failingBackend) Write(ctx context.Context, name string, data []byte) error {
	f.writes++
	if f.writes == f.failAt {
		return errors.New("disk full")
	}
	return f.Backend.Write(ctx, name, data)
}

func TestPersistCleansUpOnWriteFailure(t *testing.T) {
	local, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewStore(&failingBackend{Backend: local, failAt: 3}, testKey(t), 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	files, _ := s.ValidateAll([]Upload{{"a.jpg", testutil.JPEG}, {"b.png", testutil.PNG}, {"c.pdf", testutil.PDF}})
	if _, err := s.Persist(context.Background(), files); !errors.Is(err, apperr.ErrInternal) {
		t.Fatalf("Persist() err = %v, want Internal", err)
	}
	if left := dirEntries(t, local.Root()); len(left) != 0 {
		t.Errorf("upload dir not empty after failed batch: %v", left)
	}
}

func TestLocalBackendPathSafety(t *testing.T) {
	b, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for _, name := range []string{"", ".", "..", "../escape.jpg", "a/b.jpg", `a\b.jpg`, "/etc/passwd", "a\x00.jpg"} {
		t.Run(name, func(t *testing.T) {
			if err := b.Write(ctx, name, []byte("x")); !errors.Is(err, ErrUnsafePath) {
				t.Errorf("Write(%q) err = %v", name, err)
			}
			if _, err := b.Read(ctx, name); !errors.Is(err, ErrUnsafePath) {
				t.Errorf("Read(%q) err = %v", name, err)
			}
			if err := b.Delete(ctx, name); !errors.Is(err, ErrUnsafePath) {
				t.Errorf("Delete(%q) err = %v", name, err)
			}
		})
	}
}

func TestLocalBackendUsageAndDelete(t *testing.T) {
	b, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	_ = b.Write(ctx, "a.bin", make([]byte, 100))
	_ = b.Write(ctx, "b.bin", make([]byte, 50))
	if used, err := b.Usage(ctx); err != nil || used != 150 {
		t.Errorf("Usage() = %d, %v; want 150", used, err)
	}

	if err := b.Delete(ctx, "a.bin"); err != nil {
		t.Fatal(err)
	}
	if err := b.Delete(ctx, "a.bin"); err != nil {
		t.Errorf("second Delete() err = %v, want nil", err)
	}
	if used, _ := b.Usage(ctx); used != 50 {
		t.Errorf("Usage() after delete = %d, want 50", used)
	}
}
