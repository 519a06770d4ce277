package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/commentauth/internal/models"
	"github.com/iudanet/commentauth/internal/server/comments"
	"github.com/iudanet/commentauth/pkg/api"
)

// CommentHandler обрабатывает API комментариев
type CommentHandler struct {
	responder
	comments *comments.Service
}

// NewCommentHandler создает новый handler для комментариев
func NewCommentHandler(logger *slog.Logger, svc *comments.Service) *CommentHandler {
	return &CommentHandler{
		responder: responder{logger: logger},
		comments:  svc,
	}
}

// List обрабатывает GET /comments?post_id=
// Возвращает дерево одобренных комментариев
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	postID := r.URL.Query().Get("post_id")
	if postID == "" {
		h.sendError(w, "post_id is required", http.StatusBadRequest)
		return
	}

	threads, err := h.comments.List(r.Context(), postID)
	if err != nil {
		h.sendAppError(w, r, err)
		return
	}

	h.sendJSON(w, api.CommentsResponse{Comments: threads}, http.StatusOK)
}

// Create обрабатывает POST /comments
// Требует AuthMiddleware
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req api.CreateCommentRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.comments.Create(r.Context(), user, comments.CreateInput{
		PostID:   req.PostID,
		Content:  req.Content,
		ParentID: req.ParentID,
	})
	if err != nil {
		h.sendAppError(w, r, err)
		return
	}

	h.sendJSON(w, api.CommentResponse{
		Message: "Comment created successfully",
		Comment: withAuthor(comment, user),
	}, http.StatusCreated)
}

// Get обрабатывает GET /comments/{id}
func (h *CommentHandler) Get(w http.ResponseWriter, r *http.Request) {
	comment, err := h.comments.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.sendAppError(w, r, err)
		return
	}

	h.sendJSON(w, api.CommentResponse{Comment: comment}, http.StatusOK)
}

// Update обрабатывает PUT /comments/{id}
// Редактировать можно только свой комментарий
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req api.UpdateCommentRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.comments.Update(r.Context(), user, r.PathValue("id"), req.Content)
	if err != nil {
		h.sendAppError(w, r, err)
		return
	}

	h.sendJSON(w, api.CommentResponse{
		Message: "Comment updated successfully",
		Comment: comment,
	}, http.StatusOK)
}

// Delete обрабатывает DELETE /comments/{id}
// Удалить можно только свой комментарий, ответы удаляются вместе с ним
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if err := h.comments.Delete(r.Context(), user, r.PathValue("id")); err != nil {
		h.sendAppError(w, r, err)
		return
	}

	h.sendJSON(w, api.MessageResponse{Message: "Comment deleted successfully"}, http.StatusOK)
}

func withAuthor(c *models.Comment, u *models.User) *models.CommentWithAuthor {
	return &models.CommentWithAuthor{
		Comment: *c,
		Author: models.CommentAuthor{
			ID:        u.ID,
			Username:  u.Username,
			AvatarURL: u.AvatarURL,
		},
		Replies: []*models.CommentWithAuthor{},
	}
}
