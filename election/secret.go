package election

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// NewAEAD derives an AES-GCM cipher.AEAD from an arbitrary-length key
// (typically read from a secret file, as the caller sees fit). Passing
// the result to WithSecret makes Service seal ballot bodies at rest.
func NewAEAD(key []byte) (cipher.AEAD, error) {
	hashed := sha256.Sum256(key)
	block, err := aes.NewCipher(hashed[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

// sealBallot encrypts body with aead, prefixing the nonce. Voter ids are
// never sealed: the backend must still dedupe and overwrite by voter id.
func sealBallot(aead cipher.AEAD, body []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("create nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, body, nil), nil
}

// openBallot reverses sealBallot.
func openBallot(aead cipher.AEAD, sealed []byte) ([]byte, error) {
	nonceSize := aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("sealed ballot too short")
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt ballot: %w", err)
	}
	return plaintext, nil
}
