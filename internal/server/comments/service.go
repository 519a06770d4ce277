// Package comments implements the post comment API on top of the auth core.
package comments

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/iudanet/commentauth/internal/apperr"
	"github.com/iudanet/commentauth/internal/crypto"
	"github.com/iudanet/commentauth/internal/models"
	"github.com/iudanet/commentauth/internal/server/storage"
	"github.com/iudanet/commentauth/internal/validation"
)

const msgNotFound = "Comment not found"

// NewPolicy returns the HTML allowlist applied to comment bodies.
func NewPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em", "u", "code", "pre", "blockquote", "ul", "ol", "li")
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	p.AllowStandardURLs()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Service manages comments.
type Service struct {
	store  storage.CommentStorage
	policy *bluemonday.Policy
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a comment Service.
func NewService(store storage.CommentStorage, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		policy: NewPolicy(),
		logger: logger,
		now:    time.Now,
	}
}

// CreateInput is a new comment.
type CreateInput struct {
	ParentID *string
	PostID   string
	Content  string
}

// List returns the approved comments of a post as a thread forest, oldest
// first at every level.
func (s *Service) List(ctx context.Context, postID string) ([]*models.CommentWithAuthor, error) {
	if postID == "" {
		return nil, apperr.Required("post_id")
	}
	if err := validation.ValidatePostID(postID); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	flat, err := s.store.ListCommentsByPost(ctx, postID, models.CommentApproved)
	if err != nil {
		return nil, apperr.Dependency("Failed to fetch comments", err)
	}

	return BuildThreads(flat), nil
}

// BuildThreads nests replies under their parents. Replies whose parent is
// not in the list (deleted or not approved) are dropped.
func BuildThreads(flat []*models.CommentWithAuthor) []*models.CommentWithAuthor {
	byID := make(map[string]*models.CommentWithAuthor, len(flat))
	for _, c := range flat {
		c.Replies = []*models.CommentWithAuthor{}
		byID[c.ID] = c
	}

	roots := make([]*models.CommentWithAuthor, 0, len(flat))
	for _, c := range flat {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		if parent, ok := byID[*c.ParentID]; ok {
			parent.Replies = append(parent.Replies, c)
		}
	}

	return roots
}

// Create validates, sanitizes and stores a comment by author.
func (s *Service) Create(ctx context.Context, author *models.User, in CreateInput) (*models.Comment, error) {
	if in.PostID == "" || in.Content == "" {
		return nil, apperr.Validation("post_id and content are required")
	}
	if err := validation.ValidatePostID(in.PostID); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	content, err := s.clean(in.Content)
	if err != nil {
		return nil, err
	}

	if in.ParentID != nil && *in.ParentID != "" {
		parent, err := s.store.GetCommentByID(ctx, *in.ParentID)
		if err != nil {
			if errors.Is(err, storage.ErrCommentNotFound) {
				return nil, apperr.Validation("Parent comment not found")
			}
			return nil, apperr.Dependency("Failed to fetch parent comment", err)
		}
		if parent.PostID != in.PostID {
			return nil, apperr.Validation("Parent comment belongs to another post")
		}
	} else {
		in.ParentID = nil
	}

	now := s.now()
	comment := &models.Comment{
		ID:        crypto.NewID(),
		PostID:    in.PostID,
		UserID:    author.ID,
		ParentID:  in.ParentID,
		Content:   content,
		Status:    models.CommentApproved,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, apperr.Dependency("Failed to create comment", err)
	}

	s.logger.InfoContext(ctx, "Comment created",
		slog.String("comment_id", comment.ID),
		slog.String("post_id", comment.PostID),
		slog.String("user_id", author.ID))

	return comment, nil
}

// Get returns a comment by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Comment, error) {
	if id == "" {
		return nil, apperr.Validation("Comment ID is required")
	}

	comment, err := s.store.GetCommentByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrCommentNotFound) {
			return nil, apperr.NotFound(msgNotFound)
		}
		return nil, apperr.Dependency("Failed to fetch comment", err)
	}
	return comment, nil
}

// Update replaces the content of a comment owned by author.
func (s *Service) Update(ctx context.Context, author *models.User, id, content string) (*models.Comment, error) {
	if content == "" {
		return nil, apperr.Validation("Content is required")
	}

	comment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.UserID != author.ID {
		return nil, apperr.Authorization("You can only edit your own comments")
	}

	cleaned, err := s.clean(content)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.store.UpdateCommentContent(ctx, id, cleaned, now); err != nil {
		if errors.Is(err, storage.ErrCommentNotFound) {
			return nil, apperr.NotFound(msgNotFound)
		}
		return nil, apperr.Dependency("Failed to update comment", err)
	}

	comment.Content = cleaned
	comment.UpdatedAt = now
	return comment, nil
}

// Delete removes a comment owned by author together with its replies.
func (s *Service) Delete(ctx context.Context, author *models.User, id string) error {
	comment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if comment.UserID != author.ID {
		return apperr.Authorization("You can only delete your own comments")
	}

	if err := s.store.DeleteComment(ctx, id); err != nil {
		if errors.Is(err, storage.ErrCommentNotFound) {
			return apperr.NotFound(msgNotFound)
		}
		return apperr.Dependency("Failed to delete comment", err)
	}

	s.logger.InfoContext(ctx, "Comment deleted",
		slog.String("comment_id", id),
		slog.String("user_id", author.ID))
	return nil
}

// clean runs the content checks, sanitizes, then looks for spam in what
// will actually be stored.
func (s *Service) clean(content string) (string, error) {
	if err := validation.ValidateCommentContent(content); err != nil {
		return "", apperr.Validation(err.Error())
	}

	sanitized := strings.TrimSpace(s.policy.Sanitize(content))
	if sanitized == "" {
		return "", apperr.Validation("Comment cannot be empty")
	}

	if err := validation.CheckSpam(sanitized); err != nil {
		return "", apperr.Validation(err.Error())
	}
	return sanitized, nil
}
