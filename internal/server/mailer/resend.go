package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// DefaultResendURL - боевой адрес Resend API
const DefaultResendURL = "https://api.resend.com"

// ResendConfig настраивает клиент Resend
type ResendConfig struct {
	APIKey  string
	From    string
	BaseURL string
	Site    string
}

// Resend отправляет письма через Resend SDK
type Resend struct {
	client   *resend.Client
	renderer *Renderer
	logger   *slog.Logger
	from     string
}

// NewResend создает почтовый клиент Resend
func NewResend(cfg ResendConfig, logger *slog.Logger) (*Resend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("sender address is required")
	}

	// SDK склеивает путь относительно BaseURL, поэтому нужен завершающий слэш
	base, err := url.Parse(strings.TrimRight(orDefault(cfg.BaseURL, DefaultResendURL), "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid resend base url: %w", err)
	}

	client := resend.NewCustomClient(&http.Client{Timeout: 15 * time.Second}, cfg.APIKey)
	client.BaseURL = base

	return &Resend{
		client:   client,
		renderer: NewRenderer(cfg.Site),
		logger:   logger,
		from:     cfg.From,
	}, nil
}

// SendVerificationCode отправляет код регистрации на языке lang
func (m *Resend) SendVerificationCode(ctx context.Context, to, code, lang string) error {
	msg, err := m.renderer.Verification(to, code, lang)
	if err != nil {
		return err
	}
	return m.Send(ctx, msg)
}

// SendTwoFactorCode отправляет код входа
func (m *Resend) SendTwoFactorCode(ctx context.Context, to, code string) error {
	msg, err := m.renderer.TwoFactor(to, code)
	if err != nil {
		return err
	}
	return m.Send(ctx, msg)
}

// Send отправляет готовое письмо
func (m *Resend) Send(ctx context.Context, msg *Message) error {
	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.DebugContext(ctx, "Email sent",
		slog.String("id", sent.Id),
		slog.String("subject", msg.Subject),
	)

	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
