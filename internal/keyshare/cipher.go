package keyshare

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"

	"mpc-wallet/internal/dto"
)

// Algorithm tags the envelope format so stored blobs stay decryptable if
// the parameters ever change.
const Algorithm = "argon2id-aes256-gcm"

const (
	saltLen = 16
	keyLen  = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// Cipher encrypts and decrypts local key shares with a password. The engine
// itself never handles plaintext key material; everything crossing the
// storage or wire boundary goes through here first.
type Cipher struct {
	rand io.Reader
}

func NewCipher() *Cipher {
	return &Cipher{rand: rand.Reader}
}

// seal encrypts plaintext into base64(salt || gcm-nonce || ciphertext).
func (c *Cipher) seal(password string, plaintext []byte) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(c.rand, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, keyLen)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := append(salt, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// open reverses seal.
func (c *Cipher) open(password string, blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("malformed encrypted blob: %w", err)
	}
	if len(raw) < saltLen {
		return nil, errors.New("encrypted blob too short")
	}
	salt, rest := raw[:saltLen], raw[saltLen:]
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, keyLen)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, errors.New("encrypted blob too short")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("decryption failed, wrong password or corrupted blob")
	}
	return plaintext, nil
}

// EncryptShare seals a party's key share and its nonce-derivation seed into
// an EncryptedLocalKey envelope.
func (c *Cipher) EncryptShare(password, pubkey string, share, nonceSeed []byte) (dto.EncryptedLocalKey, error) {
	encKey, err := c.seal(password, share)
	if err != nil {
		return dto.EncryptedLocalKey{}, err
	}
	encNonce, err := c.seal(password, nonceSeed)
	if err != nil {
		return dto.EncryptedLocalKey{}, err
	}
	return dto.EncryptedLocalKey{
		Pubkey:         pubkey,
		EncryptedKey:   encKey,
		EncryptedNonce: encNonce,
		Algorithm:      Algorithm,
	}, nil
}

// DecryptShare opens the key-share blob of an envelope.
func (c *Cipher) DecryptShare(password string, key dto.EncryptedLocalKey) ([]byte, error) {
	if key.Algorithm != Algorithm {
		return nil, fmt.Errorf("unsupported encryption algorithm %q", key.Algorithm)
	}
	return c.open(password, key.EncryptedKey)
}

// DecryptNonceSeed opens the nonce-seed blob of an envelope.
func (c *Cipher) DecryptNonceSeed(password string, key dto.EncryptedLocalKey) ([]byte, error) {
	if key.Algorithm != Algorithm {
		return nil, fmt.Errorf("unsupported encryption algorithm %q", key.Algorithm)
	}
	return c.open(password, key.EncryptedNonce)
}
