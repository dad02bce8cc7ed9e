// Package userdata carries per-user configuration through opaque URL
// segments instead of server-side sessions. The payload is encrypted so
// streaming-provider tokens never appear in logs or browser history in the
// clear.
package userdata

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// StreamingProvider is the user's debrid account.
type StreamingProvider struct {
	Service string `json:"service"`
	Token   string `json:"token"`
}

// UserData is everything a user configures for their install.
type UserData struct {
	StreamingProvider *StreamingProvider `json:"streaming_provider,omitempty"`
	SelectedCatalogs  []string           `json:"selected_catalogs,omitempty"`
}

// Codec encrypts and decrypts user data blobs. The same server secret must
// decode what it encoded; rotating the secret invalidates outstanding URLs.
type Codec struct {
	key [32]byte
}

func NewCodec(secret string) *Codec {
	return &Codec{key: sha256.Sum256([]byte(secret))}
}

// Encode serializes and encrypts data into a URL-safe string.
func (c *Codec) Encode(data *UserData) (string, error) {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user data: %w", err)
	}

	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode reverses Encode. Tampered or foreign blobs fail authentication.
func (c *Codec) Decode(encoded string) (*UserData, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid user data encoding: %w", err)
	}

	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}

	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("user data blob too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt user data: %w", err)
	}

	var data UserData
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user data: %w", err)
	}
	return &data, nil
}
