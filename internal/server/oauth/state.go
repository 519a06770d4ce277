package oauth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// StateCookieName хранит незавершенный запрос авторизации
	StateCookieName = "oauth_state"
	// StateTTL ограничивает время на экране согласия
	StateTTL = 10 * time.Minute

	stateIssuer = "commentauth-oauth"
)

// ErrInvalidState возвращается для отсутствующей, подделанной или просроченной cookie
var ErrInvalidState = errors.New("invalid oauth state")

// State - данные, которые переносятся от старта до callback
type State struct {
	State    string
	Verifier string
	Provider string
	ReturnTo string
}

type stateClaims struct {
	State    string `json:"state"`
	Verifier string `json:"verifier"`
	Provider string `json:"provider"`
	ReturnTo string `json:"return_to,omitempty"`
	jwt.RegisteredClaims
}

// StateCodec запечатывает State в cookie с подписью HS256
type StateCodec struct {
	now    func() time.Time
	secret []byte
	secure bool
}

// NewStateCodec создает кодек с ключом подписи secret
func NewStateCodec(secret string, secure bool) *StateCodec {
	return &StateCodec{
		secret: []byte(secret),
		secure: secure,
		now:    time.Now,
	}
}

// Encode подписывает st
func (c *StateCodec) Encode(st State) (string, error) {
	now := c.now()

	claims := stateClaims{
		State:    st.State,
		Verifier: st.Verifier,
		Provider: st.Provider,
		ReturnTo: st.ReturnTo,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(StateTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    stateIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}

	return signed, nil
}

// Decode проверяет raw и возвращает State
func (c *StateCodec) Decode(raw string) (*State, error) {
	if raw == "" {
		return nil, ErrInvalidState
	}

	token, err := jwt.ParseWithClaims(raw, &stateClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	claims, ok := token.Claims.(*stateClaims)
	if !ok || !token.Valid || claims.State == "" || claims.Verifier == "" {
		return nil, ErrInvalidState
	}

	return &State{
		State:    claims.State,
		Verifier: claims.Verifier,
		Provider: claims.Provider,
		ReturnTo: claims.ReturnTo,
	}, nil
}

// SetCookie записывает st в cookie
func (c *StateCodec) SetCookie(w http.ResponseWriter, st State) error {
	value, err := c.Encode(st)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(StateTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// ClearCookie удаляет cookie со state
func (c *StateCodec) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest декодирует cookie со state из запроса
func (c *StateCodec) FromRequest(r *http.Request) (*State, error) {
	cookie, err := r.Cookie(StateCookieName)
	if err != nil {
		return nil, ErrInvalidState
	}
	return c.Decode(cookie.Value)
}

// SafeReturnTo пропускает только относительные пути того же origin
func SafeReturnTo(returnTo string) string {
	if !isLocalPath(returnTo) {
		return "/"
	}
	return returnTo
}

// isLocalPath отбрасывает всё, что браузер может прочитать как другой origin:
// "//host", "/\host" и управляющие символы, которые WHATWG-парсер вырезает.
func isLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.IndexFunc(p, isControl) >= 0 {
		return false
	}

	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil || u.Opaque != "" {
		return false
	}

	for _, path := range []string{p, u.Path} {
		if strings.HasPrefix(path, "//") || strings.HasPrefix(path, `/\`) ||
			strings.IndexFunc(path, isControl) >= 0 {
			return false
		}
	}
	return true
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
