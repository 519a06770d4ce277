package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/iudanet/commentauth/internal/server/auth"
	"github.com/iudanet/commentauth/internal/server/metrics"
	"github.com/iudanet/commentauth/internal/server/oauth"
	"github.com/iudanet/commentauth/internal/server/session"
	"github.com/iudanet/commentauth/pkg/api"
)

var errProviderDenied = errors.New("provider denied authorization")

// OAuthHandler обрабатывает вход через внешних провайдеров
type OAuthHandler struct {
	responder
	auth     *auth.Service
	sessions *session.Manager
	codec    *oauth.StateCodec
	metrics  *metrics.Metrics
}

// NewOAuthHandler создает новый handler для OAuth
func NewOAuthHandler(
	logger *slog.Logger,
	svc *auth.Service,
	sessions *session.Manager,
	codec *oauth.StateCodec,
	m *metrics.Metrics,
) *OAuthHandler {
	return &OAuthHandler{
		responder: responder{logger: logger},
		auth:      svc,
		sessions:  sessions,
		codec:     codec,
		metrics:   m,
	}
}

// Start обрабатывает GET /auth/oauth/{provider}
// Возвращает authUrl и ставит cookie oauth_state
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	start, err := h.auth.StartOAuth(r.Context(), r.PathValue("provider"), r.URL.Query().Get("returnTo"))
	if err != nil {
		h.sendAppError(w, r, err)
		return
	}

	if err := h.codec.SetCookie(w, start.State); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to seal oauth state", slog.Any("error", err))
		h.sendError(w, msgInternal, http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, api.OAuthStartResponse{AuthURL: start.AuthURL}, http.StatusOK)
}

// Callback обрабатывает GET|POST /auth/oauth/{provider}/callback
// GET завершается редиректом на returnTo, POST отвечает JSON с пользователем
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params, ok := h.callbackParams(w, r)
	if !ok {
		return
	}

	// cookie состояния одноразовая
	expected, err := h.codec.FromRequest(r)
	if err != nil {
		h.logger.InfoContext(ctx, "oauth state cookie missing or invalid", slog.Any("error", err))
		expected = nil
	}
	h.codec.ClearCookie(w)

	if providerErr := params.Get("error"); providerErr != "" {
		h.logger.InfoContext(ctx, "oauth provider returned error", slog.String("error", providerErr))
		h.metrics.AuthEvent("oauth", errProviderDenied)
		h.sendError(w, "OAuth error: "+providerErr, http.StatusBadRequest)
		return
	}

	res, err := h.auth.CompleteOAuth(ctx, auth.OAuthCallback{
		Expected: expected,
		Provider: r.PathValue("provider"),
		Code:     params.Get("code"),
		State:    params.Get("state"),
	}, requestMeta(r))
	h.metrics.AuthEvent("oauth", err)
	if err != nil {
		h.sendAppError(w, r, err)
		return
	}

	h.sessions.SetCookie(w, res.Session.Token)

	if r.Method == http.MethodGet {
		http.Redirect(w, r, res.ReturnTo, http.StatusFound)
		return
	}

	h.sendJSON(w, api.UserResponse{
		Message: "OAuth login successful",
		User:    api.NewPublicUser(res.User),
	}, http.StatusOK)
}

type callbackValues map[string]string

func (v callbackValues) Get(key string) string { return v[key] }

// callbackParams собирает code, state и error из query, формы или JSON тела
func (h *OAuthHandler) callbackParams(w http.ResponseWriter, r *http.Request) (callbackValues, bool) {
	q := r.URL.Query()
	values := callbackValues{
		"code":  q.Get("code"),
		"state": q.Get("state"),
		"error": q.Get("error"),
	}
	if r.Method != http.MethodPost {
		return values, true
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req api.OAuthCallbackRequest
		if !h.decodeJSON(w, r, &req) {
			return nil, false
		}
		values["code"], values["state"] = req.Code, req.State
		return values, true
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest)
		return nil, false
	}
	for _, key := range []string{"code", "state", "error"} {
		if v := r.PostForm.Get(key); v != "" {
			values[key] = v
		}
	}
	return values, true
}
