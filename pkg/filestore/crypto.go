package filestore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// On-disk layout: IV(16) || Tag(16) || Ciphertext.
const (
	ivSize  = 16
	tagSize = 16
	// Overhead is the number of bytes encryption adds to a file.
	Overhead = ivSize + tagSize
)

var errNotSealed = errors.New("data is not in sealed layout")

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes key: %w", err)
	}
	return cipher.NewGCMWithNonceSize(block, ivSize)
}

// Encrypt seals plaintext with AES-256-GCM under key.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("read iv: %w", err)
	}

	// Seal appends the tag after the ciphertext; move it in front.
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, Overhead+len(ct))
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ct...)
	return out, nil
}

// Decrypt opens data written by Encrypt. It fails for tampered data, a wrong
// key, or anything too short to hold a ciphertext.
func Decrypt(key, data []byte) ([]byte, error) {
	if len(data) <= Overhead {
		return nil, errNotSealed
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	iv, tag, ct := data[:ivSize], data[ivSize:Overhead], data[Overhead:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	return gcm.Open(nil, iv, sealed, nil)
}
