package crypto

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// TOTPPeriod - шаг времени RFC 6238
	TOTPPeriod = 30 * time.Second
	// TOTPDigits - количество цифр в коде
	TOTPDigits = 6
	// TOTPWindow - сколько шагов до и после текущего принимаем по умолчанию
	TOTPWindow = 1
	// TOTPSecretMinBytes - минимальная длина секрета после декодирования (RFC 4226, 160 бит)
	TOTPSecretMinBytes = 20
)

// ErrWeakTOTPSecret возвращается для секрета короче TOTPSecretMinBytes
var ErrWeakTOTPSecret = errors.New("totp secret is too short")

func totpOpts(window int) totp.ValidateOpts {
	if window < 0 {
		window = 0
	}
	return totp.ValidateOpts{
		Period:    uint(TOTPPeriod / time.Second),
		Skew:      uint(window),
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// normalizeSecret приводит секрет к виду, который понимает otp:
// без пробелов, в верхнем регистре, без паддинга.
func normalizeSecret(secret string) string {
	cleaned := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	return strings.TrimRight(cleaned, "=")
}

func decodeSecret(secret string) ([]byte, error) {
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalizeSecret(secret))
	if err != nil {
		return nil, fmt.Errorf("invalid base32 secret: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("empty secret")
	}
	return key, nil
}

// ValidateTOTPSecret проверяет, что секрет - корректный base32 длиной
// не меньше TOTPSecretMinBytes байт.
func ValidateTOTPSecret(secret string) error {
	key, err := decodeSecret(secret)
	if err != nil {
		return err
	}
	if len(key) < TOTPSecretMinBytes {
		return ErrWeakTOTPSecret
	}
	return nil
}

// GenerateTOTP возвращает код для секрета на момент t
func GenerateTOTP(secret string, t time.Time) (string, error) {
	// пустой ключ otp не отвергает, проверяем сами
	if _, err := decodeSecret(secret); err != nil {
		return "", err
	}

	code, err := totp.GenerateCodeCustom(normalizeSecret(secret), t, totpOpts(0))
	if err != nil {
		return "", fmt.Errorf("failed to generate totp code: %w", err)
	}
	return code, nil
}

// VerifyTOTP проверяет код на момент t, принимая шаги в пределах
// [-window, +window].
func VerifyTOTP(secret, code string, t time.Time, window int) bool {
	if len(code) != TOTPDigits {
		return false
	}
	if _, err := decodeSecret(secret); err != nil {
		return false
	}

	ok, err := totp.ValidateCustom(code, normalizeSecret(secret), t, totpOpts(window))
	return err == nil && ok
}

// ProvisioningURI строит otpauth:// URI для приложений-аутентификаторов
func ProvisioningURI(secret, issuer, account string) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}

	k, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      uint(TOTPPeriod / time.Second),
		Secret:      key,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build provisioning uri: %w", err)
	}
	return k.URL(), nil
}
