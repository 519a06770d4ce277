package models

import "time"

// CommentStatus is the moderation state of a comment.
type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentRejected CommentStatus = "rejected"
	CommentSpam     CommentStatus = "spam"
)

// Comment is a post comment written by a signed-in user.
type Comment struct {
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	ParentID  *string       `json:"parent_id"` // reply target, nil for root comments
	ID        string        `json:"id"`
	PostID    string        `json:"post_id"`
	UserID    string        `json:"user_id"`
	Content   string        `json:"content"` // sanitized HTML
	Status    CommentStatus `json:"status"`
}

// CommentAuthor is the public slice of a User shown next to a comment.
type CommentAuthor struct {
	AvatarURL *string `json:"avatar_url"`
	ID        string  `json:"id"`
	Username  string  `json:"username"`
}

// CommentWithAuthor is a comment joined with its author and replies.
type CommentWithAuthor struct {
	Author  CommentAuthor        `json:"user"`
	Replies []*CommentWithAuthor `json:"replies"`
	Comment
}
