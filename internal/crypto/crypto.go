// Package crypto is the encryption service protecting stored
// credentials. It produces self-describing blobs in the form
// hex(salt):hex(iv):hex(ciphertext) using AES-256-CBC with a key
// derived per call via PBKDF2-SHA256, plus salted password hashing
// with constant-time verification.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/pbkdf2"

	"github.com/glimmerhq/glimmer/internal/core/domain"
)

// Derivation parameters. Fixed so that previously stored blobs remain
// decryptable.
const (
	keyLen     = 32
	saltLen    = 16
	iterations = 100_000
)

// EnvKey is the environment variable consulted for the process-default
// passphrase.
const EnvKey = "GLIMMER_ENCRYPTION_KEY"

// Service encrypts and decrypts credential blobs with a process-default
// passphrase. Per-call passphrases override the default.
type Service struct {
	passphrase string
	fallback   bool
}

// NewService resolves the default passphrase: explicit argument first,
// then the environment, then a generated fallback. The fallback keeps
// the process usable but is unsuitable for production because blobs
// cannot be decrypted after a restart; check UsingFallbackKey.
func NewService(passphrase string) (*Service, error) {
	if passphrase != "" {
		return &Service{passphrase: passphrase}, nil
	}
	if env := os.Getenv(EnvKey); env != "" {
		return &Service{passphrase: env}, nil
	}
	generated, err := GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating fallback key: %w", err)
	}
	return &Service{passphrase: generated, fallback: true}, nil
}

// UsingFallbackKey reports whether the service runs on a generated
// throwaway passphrase.
func (s *Service) UsingFallbackKey() bool {
	return s.fallback
}

// Encrypt encrypts plaintext with the process-default passphrase.
func (s *Service) Encrypt(plaintext string) (string, error) {
	return s.EncryptWithKey(plaintext, s.passphrase)
}

// EncryptWithKey encrypts plaintext with an explicit passphrase,
// generating a fresh salt and IV so repeated calls never produce the
// same blob.
func (s *Service) EncryptWithKey(plaintext, passphrase string) (string, error) {
	if plaintext == "" {
		return "", domain.ErrEmptyPlaintext
	}
	if passphrase == "" {
		passphrase = s.passphrase
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generating iv: %w", err)
	}

	key := pbkdf2.Key([]byte(passphrase), salt, iterations, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(salt),
		hex.EncodeToString(iv),
		hex.EncodeToString(ciphertext)), nil
}

// Decrypt decrypts a blob with the process-default passphrase.
func (s *Service) Decrypt(blob string) (string, error) {
	return s.DecryptWithKey(blob, s.passphrase)
}

// DecryptWithKey reverses EncryptWithKey. It re-derives the key from
// the embedded salt and fails loudly on a malformed blob or a wrong
// passphrase; an empty result is never returned as valid plaintext.
func (s *Service) DecryptWithKey(blob, passphrase string) (string, error) {
	if blob == "" {
		return "", domain.ErrMalformedBlob
	}
	if passphrase == "" {
		passphrase = s.passphrase
	}

	parts := strings.Split(blob, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: expected 3 parts, got %d", domain.ErrMalformedBlob, len(parts))
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil || len(salt) != saltLen {
		return "", fmt.Errorf("%w: bad salt", domain.ErrMalformedBlob)
	}
	iv, err := hex.DecodeString(parts[1])
	if err != nil || len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: bad iv", domain.ErrMalformedBlob)
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: bad ciphertext", domain.ErrMalformedBlob)
	}

	key := pbkdf2.Key([]byte(passphrase), salt, iterations, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return "", domain.ErrDecryptFailed
	}
	// A wrong passphrase can survive the padding check by chance;
	// garbage bytes are still a decryption failure, not plaintext.
	if len(plaintext) == 0 || !utf8.Valid(plaintext) {
		return "", domain.ErrDecryptFailed
	}
	return string(plaintext), nil
}

// GenerateKey returns a fresh 256-bit key as a hex string.
func GenerateKey() (string, error) {
	key := make([]byte, keyLen)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

// HashPassword hashes a password with an independent random salt,
// formatted hex(salt):hex(hash).
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", domain.ErrEmptyPlaintext
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	hash := pbkdf2.Key([]byte(password), salt, iterations, keyLen, sha256.New)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(hash), nil
}

// VerifyPassword recomputes the hash from the embedded salt and
// compares in constant time.
func VerifyPassword(password, stored string) bool {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil || len(salt) != saltLen {
		return false
	}
	computed := pbkdf2.Key([]byte(password), salt, iterations, keyLen, sha256.New)
	return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(computed)), []byte(parts[1])) == 1
}

// pkcs7Pad pads data to a multiple of blockSize.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

// pkcs7Unpad strips and validates PKCS7 padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, domain.ErrDecryptFailed
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, domain.ErrDecryptFailed
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, domain.ErrDecryptFailed
		}
	}
	return data[:len(data)-padding], nil
}
