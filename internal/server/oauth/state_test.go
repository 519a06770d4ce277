package oauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateCodec_RoundTrip(t *testing.T) {
	codec := NewStateCodec("state-secret", false)

	raw, err := codec.Encode(State{State: "s1", Verifier: "v1", Provider: "google", ReturnTo: "/posts/1"})
	require.NoError(t, err)

	got, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, &State{State: "s1", Verifier: "v1", Provider: "google", ReturnTo: "/posts/1"}, got)
}

func TestStateCodec_Rejects(t *testing.T) {
	codec := NewStateCodec("state-secret", false)
	raw, err := codec.Encode(State{State: "s1", Verifier: "v1", Provider: "google"})
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := codec.Decode("")
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("other secret", func(t *testing.T) {
		_, err := NewStateCodec("another-secret", false).Decode(raw)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("tampered", func(t *testing.T) {
		_, err := codec.Decode(raw[:len(raw)-2] + "xx")
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("expired", func(t *testing.T) {
		late := NewStateCodec("state-secret", false)
		late.now = func() time.Time { return time.Now().Add(StateTTL + time.Minute) }
		_, err := late.Decode(raw)
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestStateCodec_Cookie(t *testing.T) {
	codec := NewStateCodec("state-secret", true)

	rec := httptest.NewRecorder()
	require.NoError(t, codec.SetCookie(rec, State{State: "s1", Verifier: "v1", Provider: "google"}))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, StateCookieName, c.Name)
	assert.Equal(t, 600, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	req := httptest.NewRequest(http.MethodGet, "/callback", nil)
	req.AddCookie(c)
	st, err := codec.FromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "s1", st.State)

	_, err = codec.FromRequest(httptest.NewRequest(http.MethodGet, "/callback", nil))
	assert.ErrorIs(t, err, ErrInvalidState)

	rec = httptest.NewRecorder()
	codec.ClearCookie(rec)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestSafeReturnTo(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/":                    "/",
		"/posts/1?x=1":         "/posts/1?x=1",
		"https://evil.example": "/",
		"//evil.example":       "/",
		`/\evil.example`:       "/",
		"posts/1":              "/",
		"/posts/%20hello":      "/posts/%20hello",
		"/\t/evil.example":     "/",
		"/\n/evil.example":     "/",
		"/\r/evil.example":     "/",
		"\t//evil.example":     "/",
		"/%09/evil.example":    "/",
		"/%0a/evil.example":    "/",
		"/%2F/evil.example":    "/",
		"/%5Cevil.example":     "/",
		"/posts\x7f":           "/",
		"/posts/1\x00":         "/",
	}

	for in, want := range tests {
		assert.Equal(t, want, SafeReturnTo(in), in)
	}
}
