package comments

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/commentauth/internal/apperr"
	"github.com/iudanet/commentauth/internal/crypto"
	"github.com/iudanet/commentauth/internal/models"
	"github.com/iudanet/commentauth/internal/server/storage/sqlstore"
)

func setupService(t *testing.T) (*Service, *sqlstore.Storage) {
	t.Helper()

	store, err := sqlstore.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, logger), store
}

func createUser(t *testing.T, store *sqlstore.Storage, username string) *models.User {
	t.Helper()

	now := time.Now()
	user := &models.User{
		ID:        crypto.NewID(),
		Email:     username + "@example.com",
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func requireKind(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), "error: %v", err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	return appErr
}

func strPtr(s string) *string { return &s }

func TestCreate_SanitizesContent(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t)
	user := createUser(t, store, "alice")

	comment, err := svc.Create(ctx, user, CreateInput{
		PostID:  "hello-world",
		Content: `<p onclick="x()">Nice post</p><script>alert(1)</script><img src=x onerror=y>`,
	})
	require.NoError(t, err)
	assert.Equal(t, "<p>Nice post</p>", comment.Content)
	assert.Equal(t, models.CommentApproved, comment.Status)
	assert.Equal(t, user.ID, comment.UserID)
	assert.Nil(t, comment.ParentID)

	stored, err := svc.Get(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, comment.Content, stored.Content)
}

func TestCreate_KeepsSafeLinks(t *testing.T) {
	svc, store := setupService(t)
	user := createUser(t, store, "alice")

	comment, err := svc.Create(context.Background(), user, CreateInput{
		PostID:  "p1",
		Content: `see <a href="https://go.dev" title="Go">go.dev</a> and <a href="javascript:alert(1)">this</a>`,
	})
	require.NoError(t, err)
	assert.Contains(t, comment.Content, `href="https://go.dev"`)
	assert.Contains(t, comment.Content, `nofollow`)
	assert.NotContains(t, comment.Content, "javascript:")
}

func TestCreate_Rejects(t *testing.T) {
	svc, store := setupService(t)
	user := createUser(t, store, "alice")

	tests := []struct {
		name    string
		in      CreateInput
		message string
	}{
		{"missing post", CreateInput{Content: "hi"}, "post_id and content are required"},
		{"missing content", CreateInput{PostID: "p1"}, "post_id and content are required"},
		{"path post id", CreateInput{PostID: "../etc", Content: "hi"}, "Invalid post ID"},
		{"whitespace only", CreateInput{PostID: "p1", Content: "   "}, "Comment cannot be empty"},
		{"script only", CreateInput{PostID: "p1", Content: "<script>x</script>"}, "Comment cannot be empty"},
		{"spam", CreateInput{PostID: "p1", Content: "Visit my casino today"}, "Comment contains spam content"},
		{"missing parent", CreateInput{PostID: "p1", Content: "hi", ParentID: strPtr("nope")}, "Parent comment not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), user, tt.in)
			appErr := requireKind(t, err, apperr.KindValidation)
			assert.Equal(t, tt.message, appErr.Message)
		})
	}
}

func TestCreate_ReplyToOtherPost(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t)
	user := createUser(t, store, "alice")

	root, err := svc.Create(ctx, user, CreateInput{PostID: "p1", Content: "root"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, user, CreateInput{PostID: "p2", Content: "reply", ParentID: &root.ID})
	requireKind(t, err, apperr.KindValidation)
}

func TestList_BuildsThreads(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t)
	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")

	base := time.Unix(1_700_000_000, 0)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := svc.Create(ctx, alice, CreateInput{PostID: "p1", Content: "first"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, bob, CreateInput{PostID: "p1", Content: "second"})
	require.NoError(t, err)
	reply, err := svc.Create(ctx, bob, CreateInput{PostID: "p1", Content: "reply", ParentID: &first.ID})
	require.NoError(t, err)
	nested, err := svc.Create(ctx, alice, CreateInput{PostID: "p1", Content: "nested", ParentID: &reply.ID})
	require.NoError(t, err)
	_, err = svc.Create(ctx, alice, CreateInput{PostID: "p2", Content: "elsewhere"})
	require.NoError(t, err)

	threads, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, threads, 2)

	assert.Equal(t, first.ID, threads[0].ID)
	assert.Equal(t, "alice", threads[0].Author.Username)
	require.Len(t, threads[0].Replies, 1)
	assert.Equal(t, reply.ID, threads[0].Replies[0].ID)
	assert.Equal(t, "bob", threads[0].Replies[0].Author.Username)
	require.Len(t, threads[0].Replies[0].Replies, 1)
	assert.Equal(t, nested.ID, threads[0].Replies[0].Replies[0].ID)

	assert.Equal(t, second.ID, threads[1].ID)
	assert.NotNil(t, threads[1].Replies)
	assert.Empty(t, threads[1].Replies)

	empty, err := svc.List(ctx, "p404")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = svc.List(ctx, "")
	requireKind(t, err, apperr.KindValidation)
}

func TestBuildThreads_DropsOrphans(t *testing.T) {
	orphan := &models.CommentWithAuthor{Comment: models.Comment{ID: "c2", ParentID: strPtr("gone")}}
	root := &models.CommentWithAuthor{Comment: models.Comment{ID: "c1"}}

	threads := BuildThreads([]*models.CommentWithAuthor{root, orphan})
	require.Len(t, threads, 1)
	assert.Equal(t, "c1", threads[0].ID)
	assert.Empty(t, threads[0].Replies)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t)
	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")

	comment, err := svc.Create(ctx, alice, CreateInput{PostID: "p1", Content: "draft"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, bob, comment.ID, "hijacked")
	appErr := requireKind(t, err, apperr.KindAuthorization)
	assert.Equal(t, "You can only edit your own comments", appErr.Message)

	_, err = svc.Update(ctx, alice, comment.ID, "")
	requireKind(t, err, apperr.KindValidation)

	_, err = svc.Update(ctx, alice, "missing", "text")
	requireKind(t, err, apperr.KindNotFound)

	updated, err := svc.Update(ctx, alice, comment.ID, "<em>final</em><script>x</script>")
	require.NoError(t, err)
	assert.Equal(t, "<em>final</em>", updated.Content)

	stored, err := svc.Get(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, "<em>final</em>", stored.Content)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t)
	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")

	comment, err := svc.Create(ctx, alice, CreateInput{PostID: "p1", Content: "bye"})
	require.NoError(t, err)

	err = svc.Delete(ctx, bob, comment.ID)
	appErr := requireKind(t, err, apperr.KindAuthorization)
	assert.Equal(t, "You can only delete your own comments", appErr.Message)

	require.NoError(t, svc.Delete(ctx, alice, comment.ID))

	_, err = svc.Get(ctx, comment.ID)
	appErr = requireKind(t, err, apperr.KindNotFound)
	assert.Equal(t, "Comment not found", appErr.Message)

	err = svc.Delete(ctx, alice, comment.ID)
	requireKind(t, err, apperr.KindNotFound)
}
