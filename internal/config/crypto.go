package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	sealedPrefix = "enc:"
	keySize      = 32
)

const (
	// SecretKeyEnv names the variable holding the sealing passphrase
	SecretKeyEnv = "HOSTELSCOUT_SECRET_KEY"
	// SecretKeyFileEnv overrides where the generated key is stored
	SecretKeyFileEnv = "HOSTELSCOUT_SECRET_KEY_FILE"
)

var errSealedTooShort = errors.New("sealed value too short")

// SecretKey seals API keys with AES-256-GCM so they can sit in .env files
// and deployment manifests.
type SecretKey struct {
	key []byte
}

// NewSecretKey derives the key from HOSTELSCOUT_SECRET_KEY. Without a
// passphrase it loads, or creates on first use, a random key file.
func NewSecretKey() (*SecretKey, error) {
	if pass := os.Getenv(SecretKeyEnv); pass != "" {
		sum := sha256.Sum256([]byte(pass))
		return &SecretKey{key: sum[:]}, nil
	}
	return loadKeyFile(keyFilePath())
}

func keyFilePath() string {
	if p := os.Getenv(SecretKeyFileEnv); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".hostelscout", "secret.key")
}

func loadKeyFile(path string) (*SecretKey, error) {
	if data, err := os.ReadFile(path); err == nil && len(data) >= keySize {
		return &SecretKey{key: data[:keySize]}, nil
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate secret key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("write secret key: %w", err)
	}
	return &SecretKey{key: key}, nil
}

func (s *SecretKey) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return gcm, nil
}

// Encrypt returns "enc:" followed by base64(nonce || ciphertext).
// An empty plaintext stays empty.
func (s *SecretKey) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	gcm, err := s.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Unsealed values pass through.
func (s *SecretKey) Decrypt(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	gcm, err := s.aead()
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", errSealedTooShort
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("unseal: %w", err)
	}
	return string(plain), nil
}

// IsSealed reports whether value was produced by Encrypt
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}

// MaskSecret keeps the last four characters: "****abcd"
func MaskSecret(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 4:
		return "****"
	default:
		return "****" + secret[len(secret)-4:]
	}
}
