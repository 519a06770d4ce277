package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/commentauth/internal/models"
	"github.com/iudanet/commentauth/internal/server/storage"
)

// CreateComment stores a new comment
func (s *Storage) CreateComment(ctx context.Context, comment *models.Comment) error {
	query := s.rebind(`
		INSERT INTO comments (id, post_id, user_id, parent_id, content, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query,
		comment.ID,
		comment.PostID,
		comment.UserID,
		nullString(comment.ParentID),
		comment.Content,
		string(comment.Status),
		comment.CreatedAt.Unix(),
		comment.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", classify(err))
	}

	return nil
}

// GetCommentByID retrieves a single comment by ID
func (s *Storage) GetCommentByID(ctx context.Context, id string) (*models.Comment, error) {
	query := s.rebind(`
		SELECT id, post_id, user_id, parent_id, content, status, created_at, updated_at
		FROM comments
		WHERE id = ?
	`)

	var (
		comment              models.Comment
		parentID             sql.NullString
		status               string
		createdAt, updatedAt int64
	)

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&comment.ID,
		&comment.PostID,
		&comment.UserID,
		&parentID,
		&comment.Content,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrCommentNotFound
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}

	comment.ParentID = stringPtr(parentID)
	comment.Status = models.CommentStatus(status)
	comment.CreatedAt = time.Unix(createdAt, 0)
	comment.UpdatedAt = time.Unix(updatedAt, 0)

	return &comment, nil
}

// ListCommentsByPost retrieves comments of a post joined with their authors
func (s *Storage) ListCommentsByPost(
	ctx context.Context,
	postID string,
	status models.CommentStatus,
) ([]*models.CommentWithAuthor, error) {
	query := s.rebind(`
		SELECT c.id, c.post_id, c.user_id, c.parent_id, c.content, c.status, c.created_at, c.updated_at,
			u.username, u.avatar_url
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.post_id = ? AND c.status = ?
		ORDER BY c.created_at ASC, c.id ASC
	`)

	rows, err := s.db.QueryContext(ctx, query, postID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	comments := make([]*models.CommentWithAuthor, 0)
	for rows.Next() {
		var (
			item                 models.CommentWithAuthor
			parentID, avatar     sql.NullString
			itemStatus           string
			createdAt, updatedAt int64
		)

		err := rows.Scan(
			&item.ID,
			&item.PostID,
			&item.UserID,
			&parentID,
			&item.Content,
			&itemStatus,
			&createdAt,
			&updatedAt,
			&item.Author.Username,
			&avatar,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}

		item.ParentID = stringPtr(parentID)
		item.Status = models.CommentStatus(itemStatus)
		item.CreatedAt = time.Unix(createdAt, 0)
		item.UpdatedAt = time.Unix(updatedAt, 0)
		item.Author.ID = item.UserID
		item.Author.AvatarURL = stringPtr(avatar)

		comments = append(comments, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return comments, nil
}

// UpdateCommentContent replaces comment content
func (s *Storage) UpdateCommentContent(ctx context.Context, id, content string, updatedAt time.Time) error {
	query := s.rebind(`UPDATE comments SET content = ?, updated_at = ? WHERE id = ?`)

	result, err := s.db.ExecContext(ctx, query, content, updatedAt.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrCommentNotFound
	}

	return nil
}

// DeleteComment deletes comment by ID; replies cascade
func (s *Storage) DeleteComment(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM comments WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrCommentNotFound
	}

	return nil
}
