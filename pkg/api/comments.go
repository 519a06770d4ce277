package api

import "github.com/iudanet/commentauth/internal/models"

// CreateCommentRequest представляет запрос на создание комментария
type CreateCommentRequest struct {
	ParentID *string `json:"parent_id,omitempty"` // ответ на комментарий
	PostID   string  `json:"post_id"`
	Content  string  `json:"content"`
}

// UpdateCommentRequest представляет запрос на редактирование комментария
type UpdateCommentRequest struct {
	Content string `json:"content"`
}

// CommentsResponse - дерево одобренных комментариев поста
type CommentsResponse struct {
	Comments []*models.CommentWithAuthor `json:"comments"`
}

// CommentResponse представляет ответ с одним комментарием
type CommentResponse struct {
	Comment any    `json:"comment"`
	Message string `json:"message,omitempty"`
}
