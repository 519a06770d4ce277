package storage

import (
	"context"
	"time"

	"github.com/iudanet/commentauth/internal/models"
)

// CommentStorage defines interface for comment persistence
type CommentStorage interface {
	// CreateComment stores a new comment
	CreateComment(ctx context.Context, comment *models.Comment) error

	// GetCommentByID retrieves a single comment by ID
	// Returns ErrCommentNotFound if comment doesn't exist
	GetCommentByID(ctx context.Context, id string) (*models.Comment, error)

	// ListCommentsByPost retrieves comments of a post with the given status,
	// joined with their authors, oldest first
	// Returns empty slice if no comments found
	ListCommentsByPost(ctx context.Context, postID string, status models.CommentStatus) ([]*models.CommentWithAuthor, error)

	// UpdateCommentContent replaces comment content
	// Returns ErrCommentNotFound if comment doesn't exist
	UpdateCommentContent(ctx context.Context, id, content string, updatedAt time.Time) error

	// DeleteComment deletes comment by ID
	// Returns ErrCommentNotFound if comment doesn't exist
	DeleteComment(ctx context.Context, id string) error
}
