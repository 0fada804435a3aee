package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	nonceSize        = 16
	tagSize          = 16
	keySize          = 32
	pbkdf2Iterations = 100000
)

// EncryptionStats contains statistics about encryption operations
type EncryptionStats struct {
	OriginalSize  int64         `json:"original_size"`
	EncryptedSize int64         `json:"encrypted_size"`
	Algorithm     string        `json:"algorithm"`
	KeyDerivation string        `json:"key_derivation"`
	Duration      time.Duration `json:"duration"`
}

// EncryptionManager seals artifacts with AES-256-GCM. The key is derived
// from the passphrase with PBKDF2-SHA256 salted by the per-call nonce, and
// the output layout is nonce || tag || ciphertext.
type EncryptionManager struct {
	random io.Reader
}

// NewEncryptionManager creates a new encryption manager
func NewEncryptionManager() *EncryptionManager {
	return &EncryptionManager{random: rand.Reader}
}

// Encrypt seals data under passphrase with a fresh random nonce
func (em *EncryptionManager) Encrypt(data []byte, passphrase string) ([]byte, *EncryptionStats, error) {
	if passphrase == "" {
		return nil, nil, NewEncryptionError("encryption key is required", nil)
	}
	start := time.Now()

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(em.random, nonce); err != nil {
		return nil, nil, NewEncryptionError("failed to generate nonce", err)
	}

	gcm, err := newGCM(passphrase, nonce)
	if err != nil {
		return nil, nil, NewEncryptionError("failed to create GCM cipher", err)
	}

	sealed := gcm.Seal(nil, nonce, data, nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, nonceSize+tagSize+len(ciphertext))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ciphertext...)

	return out, &EncryptionStats{
		OriginalSize:  int64(len(data)),
		EncryptedSize: int64(len(out)),
		Algorithm:     em.GetAlgorithm(),
		KeyDerivation: "PBKDF2-SHA256",
		Duration:      time.Since(start),
	}, nil
}

// Decrypt opens a blob produced by Encrypt. Any failure, short input or a
// tag mismatch alike, is reported as a DecryptionError.
func (em *EncryptionManager) Decrypt(blob []byte, passphrase string) ([]byte, error) {
	if len(blob) < nonceSize+tagSize {
		return nil, NewDecryptionError("invalid key or corrupted data", nil)
	}

	nonce := blob[:nonceSize]
	tag := blob[nonceSize : nonceSize+tagSize]
	ciphertext := blob[nonceSize+tagSize:]

	gcm, err := newGCM(passphrase, nonce)
	if err != nil {
		return nil, NewDecryptionError("invalid key or corrupted data", err)
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, NewDecryptionError("invalid key or corrupted data", err)
	}
	return plaintext, nil
}

// GetAlgorithm returns the encryption algorithm being used
func (em *EncryptionManager) GetAlgorithm() string {
	return "AES-256-GCM"
}

// DeriveKey stretches passphrase into an AES-256 key
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
}

func newGCM(passphrase string, nonce []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(DeriveKey(passphrase, nonce))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}
