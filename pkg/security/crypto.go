package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sync"
)

// clusterKey encrypts the CA's root private key at rest. It is derived
// once from the cluster ID on bootstrap/join and held only in memory.
var (
	clusterKeyMu sync.RWMutex
	clusterKey   []byte
)

// DeriveKeyFromClusterID derives a 32-byte AES-256 key from the cluster
// ID, so every manager node in the cluster arrives at the same key
// without it ever crossing the wire.
func DeriveKeyFromClusterID(clusterID string) []byte {
	sum := sha256.Sum256([]byte(clusterID))
	return sum[:]
}

// SetClusterEncryptionKey installs the key used by Encrypt/Decrypt.
func SetClusterEncryptionKey(key []byte) error {
	if len(key) != 32 {
		return fmt.Errorf("cluster encryption key must be 32 bytes, got %d", len(key))
	}
	clusterKeyMu.Lock()
	defer clusterKeyMu.Unlock()
	clusterKey = key
	return nil
}

// Encrypt encrypts plaintext with AES-256-GCM under the cluster key,
// prepending the nonce to the returned ciphertext.
func Encrypt(plaintext []byte) ([]byte, error) {
	clusterKeyMu.RLock()
	key := clusterKey
	clusterKeyMu.RUnlock()
	if key == nil {
		return nil, fmt.Errorf("cluster encryption key not set")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt.
func Decrypt(ciphertext []byte) ([]byte, error) {
	clusterKeyMu.RLock()
	key := clusterKey
	clusterKeyMu.RUnlock()
	if key == nil {
		return nil, fmt.Errorf("cluster encryption key not set")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, data := ciphertext[:nonceSize], ciphertext[nonceSize:]

	return gcm.Open(nil, nonce, data, nil)
}
