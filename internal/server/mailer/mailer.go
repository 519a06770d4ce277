// Package mailer renders and delivers transactional email: registration
// verification codes and email two-factor codes.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// DefaultLang is used when the requested language has no template.
const DefaultLang = "en"

//go:embed templates/*.html
var templateFS embed.FS

var layout = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Mailer delivers the messages the auth flows send.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, code, lang string) error
	SendTwoFactorCode(ctx context.Context, to, code string) error
}

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type copyText struct {
	Subject  string
	Greeting string
	Expire   string
	Ignore   string
}

var verificationText = map[string]copyText{
	"en": {
		Subject:  "Verify your email address",
		Greeting: "Thank you for signing up! Please use the verification code below to complete your registration:",
		Expire:   "This code will expire in 5 minutes.",
		Ignore:   "If you didn't request this verification, please ignore this email.",
	},
	"zh-cn": {
		Subject:  "验证您的邮箱地址",
		Greeting: "感谢您的注册！请使用下方的验证码完成注册：",
		Expire:   "此验证码将在 5 分钟后失效。",
		Ignore:   "如果您没有请求此验证，请忽略此邮件。",
	},
	"zh-tw": {
		Subject:  "驗證您的電子郵件地址",
		Greeting: "感謝您的註冊！請使用下方的驗證碼完成註冊：",
		Expire:   "此驗證碼將在 5 分鐘後失效。",
		Ignore:   "如果您沒有請求此驗證，請忽略此郵件。",
	},
	"ja": {
		Subject:  "メールアドレスの確認",
		Greeting: "ご登録ありがとうございます！以下の認証コードを使用して登録を完了してください：",
		Expire:   "このコードは5分後に無効になります。",
		Ignore:   "この認証をリクエストしていない場合は、このメールを無視してください。",
	},
	"de": {
		Subject:  "E-Mail-Adresse bestätigen",
		Greeting: "Vielen Dank für Ihre Registrierung! Bitte verwenden Sie den untenstehenden Bestätigungscode, um Ihre Registrierung abzuschließen:",
		Expire:   "Dieser Code läuft in 5 Minuten ab.",
		Ignore:   "Wenn Sie diese Bestätigung nicht angefordert haben, ignorieren Sie bitte diese E-Mail.",
	},
	"es": {
		Subject:  "Verifica tu dirección de correo electrónico",
		Greeting: "¡Gracias por registrarte! Por favor usa el código de verificación a continuación para completar tu registro:",
		Expire:   "Este código expirará en 5 minutos.",
		Ignore:   "Si no solicitaste esta verificación, por favor ignora este correo electrónico.",
	},
}

var twoFactorText = copyText{
	Subject:  "Your two-factor authentication code",
	Greeting: "Use the code below to complete your sign-in:",
	Expire:   "This code will expire in 5 minutes.",
	Ignore:   "If you didn't request this code, please ignore this email and secure your account.",
}

type layoutData struct {
	Lang     string
	Site     string
	Title    string
	Greeting string
	Code     string
	Expire   string
	Ignore   string
	Year     int
}

// Renderer builds messages from the embedded templates.
type Renderer struct {
	now  func() time.Time
	site string
}

// NewRenderer creates a Renderer that signs messages with site.
func NewRenderer(site string) *Renderer {
	return &Renderer{site: site, now: time.Now}
}

// NormalizeLang maps a request language to a supported template key.
// "zh" and "zh-hans" become "zh-cn", "zh-hant" becomes "zh-tw".
func NormalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(lang, "_", "-")))
	switch lang {
	case "zh", "zh-hans", "zh-sg":
		lang = "zh-cn"
	case "zh-hant", "zh-hk", "zh-mo":
		lang = "zh-tw"
	}

	if _, ok := verificationText[lang]; ok {
		return lang
	}

	// en-US, ja-JP, ...
	if base, _, ok := strings.Cut(lang, "-"); ok {
		if _, ok := verificationText[base]; ok {
			return base
		}
	}

	return DefaultLang
}

// Verification renders the registration code message.
func (r *Renderer) Verification(to, code, lang string) (*Message, error) {
	lang = NormalizeLang(lang)
	text := verificationText[lang]
	return r.render(to, code, lang, text, fmt.Sprintf("%s: %s", text.Subject, code))
}

// TwoFactor renders the email 2FA code message.
func (r *Renderer) TwoFactor(to, code string) (*Message, error) {
	return r.render(to, code, DefaultLang, twoFactorText, "Your 2FA code is: "+code)
}

func (r *Renderer) render(to, code, lang string, text copyText, plain string) (*Message, error) {
	var buf bytes.Buffer
	err := layout.ExecuteTemplate(&buf, "layout", layoutData{
		Lang:     lang,
		Site:     r.site,
		Title:    text.Subject,
		Greeting: text.Greeting,
		Code:     code,
		Expire:   text.Expire,
		Ignore:   text.Ignore,
		Year:     r.now().Year(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render email: %w", err)
	}

	return &Message{
		To:      to,
		Subject: text.Subject,
		HTML:    buf.String(),
		Text:    plain,
	}, nil
}
