package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PasswordAlgorithm - метка в первом поле закодированного хеша
	PasswordAlgorithm = "pbkdf2_sha256"

	// DefaultIterations - число итераций PBKDF2 для новых хешей
	DefaultIterations = 100_000

	passwordSaltSize = 16
	passwordKeySize  = 32
)

// Hasher вычисляет и проверяет хеши паролей PBKDF2-HMAC-SHA256.
// Формат: pbkdf2_sha256$<iterations>$<base64 salt>$<base64 hash>
type Hasher struct {
	iterations int
}

// NewHasher возвращает Hasher с заданным числом итераций.
// Значения меньше DefaultIterations поднимаются до DefaultIterations.
func NewHasher(iterations int) *Hasher {
	if iterations < DefaultIterations {
		iterations = DefaultIterations
	}
	return &Hasher{iterations: iterations}
}

// Hash возвращает закодированный хеш пароля со свежей случайной солью
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, passwordSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, h.iterations, passwordKeySize, sha256.New)

	return fmt.Sprintf("%s$%d$%s$%s",
		PasswordAlgorithm,
		h.iterations,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify сообщает, совпадает ли пароль с хешем. Берутся сохраненные
// итерации и соль, так что старые хеши тоже проверяются.
// На битом входе возвращает false.
func (h *Hasher) Verify(password, encoded string) bool {
	return VerifyPassword(password, encoded)
}

// HashPassword хеширует пароль с DefaultIterations
func HashPassword(password string) (string, error) {
	return NewHasher(DefaultIterations).Hash(password)
}

// VerifyPassword проверяет пароль по закодированному хешу PBKDF2
func VerifyPassword(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != PasswordAlgorithm {
		return false
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return false
	}

	stored, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(stored) == 0 {
		return false
	}

	derived := pbkdf2.Key([]byte(password), salt, iterations, len(stored), sha256.New)

	return subtle.ConstantTimeCompare(derived, stored) == 1
}
