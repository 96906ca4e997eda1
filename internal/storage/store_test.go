package storage_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"message-board/internal/storage"
	mytesting "message-board/internal/testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// bootstrap connects to TEST_DATABASE_URL and migrates it, the test is skipped when the variable is unset
func bootstrap(t *testing.T) *storage.Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	cfg := storage.Config{URL: url, LogLevel: "warn"}
	require.NoError(t, storage.Migrate(cfg))

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	s, err := storage.New(context.Background(), logger.Sugar(), cfg, storage.ConnectionTimeout(5*time.Second))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return s
}

func createUser(t *testing.T, s *storage.Store) uuid.UUID {
	t.Helper()

	role, err := s.RoleByName(context.Background(), "user")
	require.NoError(t, err)

	id, err := s.CreateUser(context.Background(), storage.NewUser{
		Email:    mytesting.RandEmail(),
		Password: "hash",
		RoleID:   role.ID,
	})
	require.NoError(t, err)

	return id
}

func TestCreateUser(t *testing.T) {
	s := bootstrap(t)
	ctx := context.Background()

	id := createUser(t, s)

	u, err := s.UserByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "user", u.Role)
	require.True(t, u.IsActive)
	require.Nil(t, u.RefreshToken)

	byEmail, err := s.UserByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.Equal(t, id, byEmail.ID)

	exists, err := s.EmailExists(ctx, u.Email)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestCreateUserExists(t *testing.T) {
	s := bootstrap(t)
	ctx := context.Background()

	role, err := s.RoleByName(ctx, "user")
	require.NoError(t, err)

	u := storage.NewUser{Email: mytesting.RandEmail(), Password: "hash", RoleID: role.ID}
	_, err = s.CreateUser(ctx, u)
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, u)
	require.Equal(t, storage.ErrUserExists, err)
}

func TestCreateUserBadRole(t *testing.T) {
	s := bootstrap(t)

	_, err := s.CreateUser(context.Background(), storage.NewUser{
		Email:    mytesting.RandEmail(),
		Password: "hash",
		RoleID:   uuid.New(),
	})
	require.Equal(t, storage.ErrRoleNotExist, err)
}

func TestRefreshToken(t *testing.T) {
	s := bootstrap(t)
	ctx := context.Background()
	id := createUser(t, s)

	hash := "hashed"
	require.NoError(t, s.SetRefreshToken(ctx, id, &hash))
	u, err := s.UserByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, &hash, u.RefreshToken)

	require.NoError(t, s.SetRefreshToken(ctx, id, nil))
	u, err = s.UserByID(ctx, id)
	require.NoError(t, err)
	require.Nil(t, u.RefreshToken)

	require.Equal(t, storage.ErrUserNotExist, s.SetRefreshToken(ctx, uuid.New(), nil))
}

func TestInsertTagConcurrent(t *testing.T) {
	s := bootstrap(t)
	ctx := context.Background()
	name := mytesting.RandString()

	ids := make([]uuid.UUID, 8)
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = s.InsertTag(ctx, name)
		}(i)
	}
	wg.Wait()

	tag, err := s.TagByName(ctx, name)
	require.NoError(t, err)
	for i, id := range ids {
		require.NoError(t, errs[i])
		require.Equal(t, tag.ID, id)
	}
}

func TestInTxRollback(t *testing.T) {
	s := bootstrap(t)
	ctx := context.Background()
	name := mytesting.RandString()
	errBoom := errors.New("boom")

	err := s.InTx(ctx, func(tx storage.Tx) error {
		tagID, err := tx.InsertTag(ctx, name)
		require.NoError(t, err)
		_, err = tx.InsertMessage(ctx, storage.NewMessage{Content: "hi", AuthorID: uuid.New(), TagID: tagID})
		require.Equal(t, storage.ErrUserNotExist, err)
		return errBoom
	})
	require.Equal(t, errBoom, err)

	_, err = s.TagByName(ctx, name)
	require.Equal(t, storage.ErrTagNotExist, err)
}

func TestMessageLifecycle(t *testing.T) {
	s := bootstrap(t)
	ctx := context.Background()
	author := createUser(t, s)

	tagID, err := s.InsertTag(ctx, mytesting.RandString())
	require.NoError(t, err)

	_, err = s.InsertMessage(ctx, storage.NewMessage{Content: "hi", AuthorID: author, TagID: uuid.New()})
	require.Equal(t, storage.ErrTagNotExist, err)

	created, err := s.InsertMessage(ctx, storage.NewMessage{Content: "hi", AuthorID: author, TagID: tagID})
	require.NoError(t, err)

	ref, err := s.MessageRef(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, author, ref.AuthorID)
	require.Equal(t, tagID, ref.TagID)

	content := "updated"
	require.NoError(t, s.UpdateMessage(ctx, created.ID, storage.MessagePatch{Content: &content}))

	msgs, err := s.ListMessages(ctx, storage.MessageFilter{Limit: 10, AuthorIDs: []uuid.UUID{author}})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "updated", msgs[0].Content)
	require.Equal(t, tagID, msgs[0].Tag.ID)
	require.Equal(t, author, msgs[0].Author.ID)

	require.NoError(t, s.SoftDeleteMessage(ctx, created.ID))
	require.Equal(t, storage.ErrMessageNotExist, s.SoftDeleteMessage(ctx, created.ID))

	_, err = s.MessageRef(ctx, created.ID)
	require.Equal(t, storage.ErrMessageNotExist, err)

	msgs, err = s.ListMessages(ctx, storage.MessageFilter{Limit: 10, AuthorIDs: []uuid.UUID{author}})
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestListMessagesFilters(t *testing.T) {
	s := bootstrap(t)
	ctx := context.Background()
	author := createUser(t, s)

	tagName := mytesting.RandString()
	tagID, err := s.InsertTag(ctx, tagName)
	require.NoError(t, err)
	otherTag, err := s.InsertTag(ctx, mytesting.RandString())
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := make([]storage.ImportedMessage, 0, 5)
	for i := 0; i < 5; i++ {
		tag := tagID
		if i == 4 {
			tag = otherTag
		}
		rows = append(rows, storage.ImportedMessage{
			Content:   mytesting.RandString(),
			AuthorID:  author,
			TagID:     tag,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	n, err := s.ImportMessages(ctx, rows)
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	authors := []uuid.UUID{author}

	msgs, err := s.ListMessages(ctx, storage.MessageFilter{Limit: 10, AuthorIDs: authors})
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i := 1; i < len(msgs); i++ {
		require.True(t, msgs[i-1].CreatedAt.After(msgs[i].CreatedAt))
	}

	msgs, err = s.ListMessages(ctx, storage.MessageFilter{Limit: 10, AuthorIDs: authors, TagNames: []string{tagName}})
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	before := base.Add(2 * time.Hour)
	msgs, err = s.ListMessages(ctx, storage.MessageFilter{Limit: 10, AuthorIDs: authors, Before: &before})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.True(t, msgs[0].CreatedAt.Equal(before))

	start, end := base.Add(time.Hour), base.Add(3*time.Hour)
	msgs, err = s.ListMessages(ctx, storage.MessageFilter{Limit: 10, AuthorIDs: authors, Start: &start, End: &end})
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	msgs, err = s.ListMessages(ctx, storage.MessageFilter{Limit: 2, AuthorIDs: authors})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
}

func TestListMessagesStrictBound(t *testing.T) {
	s := bootstrap(t)
	ctx := context.Background()
	author := createUser(t, s)

	tagID, err := s.InsertTag(ctx, mytesting.RandString())
	require.NoError(t, err)

	tied := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	rows := []storage.ImportedMessage{
		{Content: "a", AuthorID: author, TagID: tagID, CreatedAt: tied},
		{Content: "b", AuthorID: author, TagID: tagID, CreatedAt: tied},
		{Content: "c", AuthorID: author, TagID: tagID, CreatedAt: tied.Add(-time.Minute)},
	}
	_, err = s.ImportMessages(ctx, rows)
	require.NoError(t, err)

	authors := []uuid.UUID{author}

	msgs, err := s.ListMessages(ctx, storage.MessageFilter{Limit: 10, AuthorIDs: authors, Before: &tied})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	// ties come back in a stable order
	require.Equal(t, 1, bytes.Compare(msgs[0].ID[:], msgs[1].ID[:]))

	msgs, err = s.ListMessages(ctx, storage.MessageFilter{Limit: 10, AuthorIDs: authors, Before: &tied, BeforeStrict: true})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "c", msgs[0].Content)
}
