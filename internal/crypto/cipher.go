package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// NonceSize - длина nonce AES-GCM
const NonceSize = 12

// sealedPrefix отмечает значения, запечатанные SecretBox.Seal
const sealedPrefix = "gcm1:"

// ErrNoSecretBox возвращается при открытии запечатанного значения без ключа
var ErrNoSecretBox = errors.New("sealed value requires an encryption key")

// Encrypt шифрует данные с помощью AES-256-GCM
// Формат: nonce (12 bytes) + ciphertext + auth_tag (16 bytes)
func Encrypt(plaintext, key []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("plaintext cannot be empty")
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// GCM дописывает auth tag в конец
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt расшифровывает данные, полученные из Encrypt
func Decrypt(encrypted, key []byte) ([]byte, error) {
	if len(encrypted) < NonceSize {
		return nil, fmt.Errorf("encrypted data too short")
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, encrypted[:NonceSize], encrypted[NonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: authentication failed or corrupted data: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeyLen, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

// SecretBox шифрует короткие секреты (например, TOTP) для хранения
// в текстовой колонке. Nil *SecretBox сохраняет значения как есть.
type SecretBox struct {
	key []byte
}

// NewSecretBox создает SecretBox с 32-байтным ключом
func NewSecretBox(key []byte) (*SecretBox, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeyLen, len(key))
	}
	return &SecretBox{key: key}, nil
}

// Seal шифрует значение и кодирует его для хранения
func (b *SecretBox) Seal(value string) (string, error) {
	if b == nil {
		return value, nil
	}
	encrypted, err := Encrypt([]byte(value), b.key)
	if err != nil {
		return "", err
	}
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(encrypted), nil
}

// Open обращает Seal. Значения, сохраненные до включения шифрования,
// возвращаются без изменений.
func (b *SecretBox) Open(stored string) (string, error) {
	raw, sealed := strings.CutPrefix(stored, sealedPrefix)
	if !sealed {
		return stored, nil
	}
	if b == nil {
		return "", ErrNoSecretBox
	}

	encrypted, err := base64.RawStdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed value: %w", err)
	}
	plaintext, err := Decrypt(encrypted, b.key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
