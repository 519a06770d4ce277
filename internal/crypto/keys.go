package crypto

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Параметры Argon2id
const (
	Argon2Time    = 1
	Argon2Memory  = 64 * 1024 // KB
	Argon2Threads = 4
	// KeyLen - длина выводимых ключей, подходит для AES-256
	KeyLen = 32
)

// DeriveKey выводит независимый 32-байтный ключ из секрета сервера.
// Для разных purpose из одного секрета получаются несвязанные ключи.
func DeriveKey(secret, purpose string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("secret cannot be empty")
	}
	if purpose == "" {
		return nil, fmt.Errorf("purpose cannot be empty")
	}

	salt := sha256.Sum256([]byte("commentauth:" + purpose))
	return argon2.IDKey([]byte(secret), salt[:], Argon2Time, Argon2Memory, Argon2Threads, KeyLen), nil
}
