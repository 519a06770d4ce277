package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLang(t *testing.T) {
	tests := map[string]string{
		"":      "en",
		"en":    "en",
		"en-US": "en",
		"zh":    "zh-cn",
		"zh-CN": "zh-cn",
		"zh_TW": "zh-tw",
		"ja-JP": "ja",
		"de":    "de",
		"fr":    "en",
	}

	for in, want := range tests {
		assert.Equal(t, want, NormalizeLang(in), in)
	}
}

func TestRenderer_Verification(t *testing.T) {
	r := NewRenderer("Example Blog")

	msg, err := r.Verification("a@example.com", "Ab3dE9", "ja")
	require.NoError(t, err)
	assert.Equal(t, "メールアドレスの確認", msg.Subject)
	assert.Contains(t, msg.HTML, "Ab3dE9")
	assert.Contains(t, msg.HTML, `lang="ja"`)
	assert.Contains(t, msg.HTML, "Example Blog")
	assert.Equal(t, "メールアドレスの確認: Ab3dE9", msg.Text)
}

func TestRenderer_EscapesInput(t *testing.T) {
	r := NewRenderer("<b>Blog</b>")

	msg, err := r.TwoFactor("a@example.com", "<script>")
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
	assert.NotContains(t, msg.HTML, "<b>Blog</b>")
}

// sentEmail is the body the Resend API receives.
type sentEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

func TestResend_Send(t *testing.T) {
	var got sentEmail
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email-1"}`))
	}))
	defer server.Close()

	m, err := NewResend(ResendConfig{APIKey: "re_test", From: "blog@example.com", BaseURL: server.URL, Site: "Blog"}, discardLogger())
	require.NoError(t, err)

	require.NoError(t, m.SendVerificationCode(context.Background(), "a@example.com", "XyZ123", "en"))
	assert.Equal(t, "blog@example.com", got.From)
	assert.Equal(t, []string{"a@example.com"}, got.To)
	assert.Equal(t, "Verify your email address", got.Subject)
	assert.Contains(t, got.HTML, "XyZ123")
	assert.Equal(t, "Verify your email address: XyZ123", got.Text)
}

func TestResend_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"validation_error","message":"Invalid from address"}`))
	}))
	defer server.Close()

	m, err := NewResend(ResendConfig{APIKey: "re_test", From: "blog@example.com", BaseURL: server.URL}, discardLogger())
	require.NoError(t, err)

	err = m.SendTwoFactorCode(context.Background(), "a@example.com", "123456")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid from address")
}

func TestNewResend_RequiresConfig(t *testing.T) {
	_, err := NewResend(ResendConfig{From: "blog@example.com"}, discardLogger())
	assert.Error(t, err)

	_, err = NewResend(ResendConfig{APIKey: "re_test"}, discardLogger())
	assert.Error(t, err)
}

func TestLogMailer(t *testing.T) {
	ctx := context.Background()

	t.Run("info level hides codes", func(t *testing.T) {
		var buf bytes.Buffer
		m := NewLogMailer(slog.New(slog.NewTextHandler(&buf, nil)))

		require.NoError(t, m.SendVerificationCode(ctx, "a@example.com", "Code12", "zh"))
		require.NoError(t, m.SendTwoFactorCode(ctx, "a@example.com", "654321"))

		out := buf.String()
		assert.Contains(t, out, "lang=zh-cn")
		assert.Contains(t, out, "verification code not sent")
		assert.NotContains(t, out, "Code12")
		assert.NotContains(t, out, "654321")
	})

	t.Run("debug level shows codes", func(t *testing.T) {
		var buf bytes.Buffer
		m := NewLogMailer(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

		require.NoError(t, m.SendVerificationCode(ctx, "a@example.com", "Code12", "en"))
		require.NoError(t, m.SendTwoFactorCode(ctx, "a@example.com", "654321"))

		assert.Contains(t, buf.String(), "code=Code12")
		assert.Contains(t, buf.String(), "code=654321")
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
