// Package vault implements the credential vault that protects secrets at
// rest (repository tokens, sandbox passwords) with an authenticated
// symmetric cipher.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/taskforge/taskforge/internal/log"
	"github.com/taskforge/taskforge/internal/model"
)

const (
	ivSize   = 16
	saltSize = 64
	tagSize  = 16
	keySize  = 32
)

// VaultConfig is the configuration for the credential vault.
type VaultConfig struct {
	// Key is the process-wide encryption key material, read-only after
	// startup. It may be any non-empty string, a per-record 256-bit key is
	// derived from it.
	Key    string
	Logger log.Logger
}

func (c *VaultConfig) defaults() error {
	if c.Key == "" {
		return fmt.Errorf("encryption key is required: %w", model.ErrCryptoConfig)
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "vault.Vault"})
	return nil
}

// Vault encrypts and decrypts secrets with AES-256-GCM. The stored blob is
// `base64(IV(16) ‖ SALT(64) ‖ TAG(16) ‖ CIPHERTEXT)`. The salt feeds an
// HKDF-SHA256 derivation of the per-record key, so every record is sealed
// under its own key even though the configured key material is shared.
type Vault struct {
	key    []byte
	logger log.Logger
}

// NewVault creates a new credential vault.
func NewVault(cfg VaultConfig) (*Vault, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Vault{
		key:    []byte(cfg.Key),
		logger: cfg.Logger,
	}, nil
}

// Encrypt seals the plaintext and returns the base64 blob.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("could not generate iv: %w", model.ErrEncryption)
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("could not generate salt: %w", model.ErrEncryption)
	}

	aead, err := v.aead(salt)
	if err != nil {
		return "", fmt.Errorf("could not create cipher: %w", model.ErrEncryption)
	}

	// Seal appends the auth tag after the ciphertext, the wire format wants
	// it before, so split and reorder.
	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	blob := make([]byte, 0, ivSize+saltSize+tagSize+len(ciphertext))
	blob = append(blob, iv...)
	blob = append(blob, salt...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt. It fails closed: any tamper
// (including a single flipped bit in the auth tag) returns an error and
// never partial plaintext.
func (v *Vault) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("blob is not valid base64: %w", model.ErrDecryption)
	}
	if len(raw) < ivSize+saltSize+tagSize {
		return "", fmt.Errorf("blob is too short: %w", model.ErrDecryption)
	}

	iv := raw[:ivSize]
	salt := raw[ivSize : ivSize+saltSize]
	tag := raw[ivSize+saltSize : ivSize+saltSize+tagSize]
	ciphertext := raw[ivSize+saltSize+tagSize:]

	aead, err := v.aead(salt)
	if err != nil {
		return "", fmt.Errorf("could not create cipher: %w", model.ErrDecryption)
	}

	// Reassemble into Go's ciphertext‖tag layout.
	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("could not authenticate blob: %w", model.ErrDecryption)
	}

	return string(plaintext), nil
}

// aead builds the AES-256-GCM AEAD for the per-record key derived from the
// configured key material and the record salt.
func (v *Vault) aead(salt []byte) (cipher.AEAD, error) {
	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, v.key, salt, nil)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("could not derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("could not create aes cipher: %w", err)
	}

	return cipher.NewGCMWithNonceSize(block, ivSize)
}
