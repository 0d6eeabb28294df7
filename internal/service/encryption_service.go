package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// AESKeySize is the AES-256 key length in bytes.
const AESKeySize = 32

var errSealedTooShort = errors.New("sealed value too short")

// AESEncryptionService implements ports.EncryptionService with AES-256-GCM.
// Sealed values are base64(nonce || ciphertext || tag) and carry the field
// name as associated data.
type AESEncryptionService struct {
	aead cipher.AEAD
}

// NewAESEncryptionService creates the service from a 64-character hex key.
func NewAESEncryptionService(hexKey string) (*AESEncryptionService, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding AES key: %w", err)
	}
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("AES key must be %d bytes, got %d", AESKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &AESEncryptionService{aead: aead}, nil
}

// GenerateAESKey returns a fresh random key as a 64-character hex string.
func GenerateAESKey() (string, error) {
	key := make([]byte, AESKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// Seal encrypts plaintext for field.
func (s *AESEncryptionService) Seal(field, plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(field))
	return base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value sealed for field.
func (s *AESEncryptionService) Open(field, sealed string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decoding sealed value: %w", err)
	}

	nonceSize := s.aead.NonceSize()
	if len(raw) < nonceSize+s.aead.Overhead() {
		return "", errSealedTooShort
	}

	plaintext, err := s.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], []byte(field))
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", field, err)
	}
	return string(plaintext), nil
}
