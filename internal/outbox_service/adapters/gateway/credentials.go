package gateway

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
)

// AESCredentialDecryptor decrypts channel credentials stored as
// base64(nonce || AES-256-GCM ciphertext), the format the provisioning
// service writes.
type AESCredentialDecryptor struct {
	aead cipher.AEAD
}

// NewAESCredentialDecryptor creates a decryptor from a 32-byte key.
func NewAESCredentialDecryptor(key []byte) (*AESCredentialDecryptor, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential cipher: %w", err)
	}
	return &AESCredentialDecryptor{aead: aead}, nil
}

func (d *AESCredentialDecryptor) Decrypt(_ context.Context, ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("credential is not valid base64: %w", err)
	}
	if len(raw) < d.aead.NonceSize() {
		return "", fmt.Errorf("credential ciphertext too short")
	}
	nonce, sealed := raw[:d.aead.NonceSize()], raw[d.aead.NonceSize():]
	plain, err := d.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return string(plain), nil
}
