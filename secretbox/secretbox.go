// Package secretbox encrypts secrets at rest with AES-256-GCM.
//
// Ciphertexts are framed as "<ivHex>:<authTagHex>:<cipherHex>" with a 16 byte
// IV and a 16 byte tag. The framing is a durable on-disk format.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	// DefaultKeyEnv is the variable FromEnv reads when no name is given.
	DefaultKeyEnv = "ENCRYPTION_KEY"

	keySize = 32
	ivSize  = 16
	tagSize = 16
)

var ErrInvalidKey = errors.New("encryption key must be 64 hex characters (32 bytes)", errors.CategoryInternal).
	WithTextCode("secretbox_invalid_key").
	WithCode(errors.CodeInternal)

var ErrEmptyPlaintext = errors.New("cannot encrypt empty value", errors.CategoryBadInput).
	WithTextCode("secretbox_empty_plaintext").
	WithCode(errors.CodeBadRequest)

var ErrInvalidFormat = errors.New("invalid encrypted data format", errors.CategoryBadInput).
	WithTextCode("secretbox_invalid_format").
	WithCode(errors.CodeBadRequest)

var ErrDecrypt = errors.New("failed to decrypt value", errors.CategoryInternal).
	WithTextCode("secretbox_decrypt_failed").
	WithCode(errors.CodeInternal)

// Box holds the AEAD built from the key. It is safe for concurrent use.
type Box struct {
	aead cipher.AEAD
}

// New builds a Box from a 64 character hex key.
func New(hexKey string) (*Box, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return &Box{aead: aead}, nil
}

// FromEnv reads the key through lookup, e.g. os.Getenv. An empty name uses DefaultKeyEnv.
func FromEnv(lookup func(string) string, name string) (*Box, error) {
	if name == "" {
		name = DefaultKeyEnv
	}
	if lookup == nil {
		return nil, fmt.Errorf("%w: no lookup for %s", ErrInvalidKey, name)
	}

	value := lookup(name)
	if strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("%w: %s is not set", ErrInvalidKey, name)
	}
	return New(value)
}

// GenerateKey returns a fresh random key in hex.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// Encrypt seals plaintext with a fresh IV.
func (b *Box) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	sealed := b.aead.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt opens a value produced by Encrypt.
func (b *Box) Decrypt(ciphertext string) (string, error) {
	parts := strings.Split(ciphertext, ":")
	if len(parts) != 3 {
		return "", ErrInvalidFormat
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivSize {
		return "", fmt.Errorf("%w: bad iv", ErrInvalidFormat)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", fmt.Errorf("%w: bad auth tag", ErrInvalidFormat)
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext", ErrInvalidFormat)
	}

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plain, err := b.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// SafeEncrypt encrypts value, passing nil through.
func (b *Box) SafeEncrypt(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	out, err := b.Encrypt(*value)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SafeDecrypt decrypts value, passing nil through.
func (b *Box) SafeDecrypt(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	out, err := b.Decrypt(*value)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
