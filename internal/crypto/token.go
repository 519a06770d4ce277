package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	digits       = "0123456789"

	// OAuthStateLength - длина параметра state в OAuth
	OAuthStateLength = 32
	// PKCEVerifierLength - минимальная длина verifier по RFC 7636
	PKCEVerifierLength = 43
	// SessionTokenLength - длина непрозрачного токена сессии
	SessionTokenLength = 48

	totpSecretSize = TOTPSecretMinBytes
)

// RandomToken возвращает буквенно-цифровую строку длины n.
// Каждый символ берется из crypto/rand независимо.
func RandomToken(n int) (string, error) {
	return randomFrom(alphanumeric, n)
}

// NumericCode возвращает n случайных десятичных цифр
func NumericCode(n int) (string, error) {
	return randomFrom(digits, n)
}

func randomFrom(alphabet string, n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", n)
	}

	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}

	return string(out), nil
}

// RandomID возвращает идентификатор с префиксом времени: unix millis в base36,
// дефис и 16 случайных символов. Уникален, но строго не упорядочен.
func RandomID() (string, error) {
	suffix, err := RandomToken(16)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + suffix, nil
}

// NewID возвращает случайный UUID для первичного ключа
func NewID() string {
	return uuid.New().String()
}

// Base32Secret возвращает случайные байты в base32 (RFC 4648) без
// паддинга. Подходит как общий секрет TOTP.
func Base32Secret() (string, error) {
	buf := make([]byte, totpSecretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// OAuthState возвращает случайный state для запроса авторизации
func OAuthState() (string, error) {
	return RandomToken(OAuthStateLength)
}

// PKCEVerifier возвращает случайный code verifier
func PKCEVerifier() (string, error) {
	return RandomToken(PKCEVerifierLength)
}

// PKCEChallenge возвращает S256 challenge для verifier:
// base64url(SHA-256(verifier)) без паддинга.
func PKCEChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// SessionToken возвращает новый непрозрачный токен сессии
func SessionToken() (string, error) {
	return RandomToken(SessionTokenLength)
}
