// Package encryption seals configuration secrets so they can be stored in a
// config file. Sealed values look like enc:v1:<base64(salt|nonce|ciphertext)>
// and are opened with a key derived from a passphrase.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Prefix marks a sealed value.
const Prefix = "enc:v1:"

// pbkdf2Iterations is the OWASP-recommended iteration count for PBKDF2-SHA256.
const pbkdf2Iterations = 600_000

const (
	saltSize = 16
	keySize  = 32
)

var (
	// ErrNoPassphrase is returned when sealing or opening without a passphrase.
	ErrNoPassphrase = errors.New("encryption: passphrase is required")
	// ErrNotSealed is returned by Open for values without the sealed prefix.
	ErrNotSealed = errors.New("encryption: value is not sealed")
)

// IsSealed reports whether v carries the sealed prefix.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, Prefix)
}

// Sealer seals and opens secrets with a passphrase.
type Sealer struct {
	passphrase []byte
	iterations int
}

// NewSealer creates a Sealer for passphrase.
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, ErrNoPassphrase
	}
	return &Sealer{passphrase: []byte(passphrase), iterations: pbkdf2Iterations}, nil
}

// Seal encrypts plaintext under a fresh salt and nonce.
func (s *Sealer) Seal(plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	gcm, err := s.gcm(salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	blob := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = gcm.Seal(blob, nonce, []byte(plaintext), nil)
	return Prefix + base64.StdEncoding.EncodeToString(blob), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	if !IsSealed(sealed) {
		return "", ErrNotSealed
	}
	blob, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, Prefix))
	if err != nil {
		return "", fmt.Errorf("decoding sealed value: %w", err)
	}
	if len(blob) < saltSize {
		return "", errors.New("sealed value too short")
	}
	gcm, err := s.gcm(blob[:saltSize])
	if err != nil {
		return "", err
	}
	rest := blob[saltSize:]
	if len(rest) < gcm.NonceSize() {
		return "", errors.New("sealed value too short")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}
	return string(plaintext), nil
}

func (s *Sealer) gcm(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(s.passphrase, salt, s.iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}
