package mailer

import (
	"context"
	"log/slog"
)

// LogMailer пишет письма в лог вместо отправки.
// Используется в разработке, когда ключ API не задан; в production
// конфигурация без ключа не проходит валидацию.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer создает LogMailer
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendVerificationCode сообщает о неотправленном письме. Сам код виден
// только на уровне debug.
func (m *LogMailer) SendVerificationCode(ctx context.Context, to, code, lang string) error {
	lang = NormalizeLang(lang)
	m.logger.WarnContext(ctx, "Email delivery disabled, verification code not sent",
		slog.String("to", to),
		slog.String("lang", lang),
	)
	m.logger.DebugContext(ctx, "Verification code",
		slog.String("to", to),
		slog.String("code", code),
	)
	return nil
}

// SendTwoFactorCode - то же для кода 2FA
func (m *LogMailer) SendTwoFactorCode(ctx context.Context, to, code string) error {
	m.logger.WarnContext(ctx, "Email delivery disabled, two-factor code not sent",
		slog.String("to", to),
	)
	m.logger.DebugContext(ctx, "Two-factor code",
		slog.String("to", to),
		slog.String("code", code),
	)
	return nil
}
