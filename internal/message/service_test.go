package message

import (
	"context"
	"errors"
	"testing"
	"time"

	"message-board/internal/storage"
	mytesting "message-board/internal/testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func bootstrap(t *testing.T) (*Service, *mytesting.MemStore) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	store := mytesting.NewMemStore()
	return NewService(logger.Sugar(), store), store
}

// seed stores n messages of author with tag "Tech", createdAt descending by one minute starting from base
func seed(store *mytesting.MemStore, author uuid.UUID, n int, base time.Time) ([]uuid.UUID, []time.Time) {
	ids := make([]uuid.UUID, 0, n)
	times := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		ts := base.Add(-time.Duration(i) * time.Minute)
		ids = append(ids, store.AddMessage(author, "Tech", mytesting.RandString(), ts))
		times = append(times, ts)
	}
	return ids, times
}

func pageIDs(p Page) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.Data))
	for _, m := range p.Data {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestListScenario(t *testing.T) {
	s, store := bootstrap(t)
	ctx := context.Background()
	author := store.AddUser(mytesting.RandEmail())

	ids, times := seed(store, author.ID, 5, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	page, err := s.List(ctx, ListQuery{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, ids[:2], pageIDs(page))
	require.True(t, page.Meta.HasNextPage)
	require.Equal(t, EncodeCursor(times[2]), *page.Meta.NextCursor)

	page, err = s.List(ctx, ListQuery{Limit: 2, Cursor: *page.Meta.NextCursor})
	require.NoError(t, err)
	require.Equal(t, ids[2:4], pageIDs(page))
	require.Equal(t, EncodeCursor(times[4]), *page.Meta.NextCursor)

	page, err = s.List(ctx, ListQuery{Limit: 2, Cursor: *page.Meta.NextCursor})
	require.NoError(t, err)
	require.Equal(t, ids[4:], pageIDs(page))
	require.Nil(t, page.Meta.NextCursor)
	require.False(t, page.Meta.HasNextPage)
}

func TestListPageBoundary(t *testing.T) {
	s, store := bootstrap(t)
	ctx := context.Background()
	author := store.AddUser(mytesting.RandEmail())

	ids, times := seed(store, author.ID, 7, time.Now())

	page, err := s.List(ctx, ListQuery{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page.Data, 3)
	require.True(t, page.Meta.HasNextPage)
	next, err := DecodeCursor(*page.Meta.NextCursor)
	require.NoError(t, err)
	require.True(t, next.Equal(times[3]))

	for _, limit := range []int{7, 8, 100} {
		page, err = s.List(ctx, ListQuery{Limit: limit})
		require.NoError(t, err)
		require.Equal(t, ids, pageIDs(page))
		require.False(t, page.Meta.HasNextPage)
		require.Nil(t, page.Meta.NextCursor)
	}
}

func TestListContinuation(t *testing.T) {
	s, store := bootstrap(t)
	ctx := context.Background()
	author := store.AddUser(mytesting.RandEmail())

	// seeded in ascending order, listed newest first
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ascending := make([]uuid.UUID, 0, 23)
	for i := 0; i < 23; i++ {
		ascending = append(ascending, store.AddMessage(author.ID, "Tech", "m", base.Add(time.Duration(i)*time.Second)))
	}
	want := mytesting.Pages(mytesting.Reverse(ascending), 5)

	var (
		got    [][]uuid.UUID
		cursor string
	)
	for {
		page, err := s.List(ctx, ListQuery{Limit: 5, Cursor: cursor})
		require.NoError(t, err)
		got = append(got, pageIDs(page))
		if !page.Meta.HasNextPage {
			break
		}
		cursor = *page.Meta.NextCursor
	}

	require.Equal(t, want, got)
}

func TestListExcludesDeleted(t *testing.T) {
	s, store := bootstrap(t)
	ctx := context.Background()
	author := store.AddUser(mytesting.RandEmail())

	ids, _ := seed(store, author.ID, 3, time.Now())
	require.NoError(t, s.Remove(ctx, author.ID, ids[1]))

	queries := []ListQuery{
		{Limit: 10},
		{Limit: 10, TagNames: []string{"Tech"}},
		{Limit: 10, AuthorIDs: []uuid.UUID{author.ID}},
	}
	for _, q := range queries {
		page, err := s.List(ctx, q)
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{ids[0], ids[2]}, pageIDs(page))
	}

	m, ok := store.Message(ids[1])
	require.True(t, ok)
	require.NotNil(t, m.DeletedAt)
}

func TestListFilters(t *testing.T) {
	s, store := bootstrap(t)
	ctx := context.Background()
	alice := store.AddUser(mytesting.RandEmail())
	bob := store.AddUser(mytesting.RandEmail())

	base := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	a1 := store.AddMessage(alice.ID, "Tech", "a1", base)
	a2 := store.AddMessage(alice.ID, "Life", "a2", base.Add(24*time.Hour))
	b1 := store.AddMessage(bob.ID, "Tech", "b1", base.Add(48*time.Hour))

	page, err := s.List(ctx, ListQuery{Limit: 10, TagNames: []string{"Tech"}})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{b1, a1}, pageIDs(page))

	page, err = s.List(ctx, ListQuery{Limit: 10, AuthorIDs: []uuid.UUID{alice.ID}})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{a2, a1}, pageIDs(page))

	page, err = s.List(ctx, ListQuery{Limit: 10, AuthorIDs: []uuid.UUID{alice.ID}, TagNames: []string{"Tech"}})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{a1}, pageIDs(page))

	start, end := base.Add(24*time.Hour), base.Add(48*time.Hour)
	page, err = s.List(ctx, ListQuery{Limit: 10, StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{b1, a2}, pageIDs(page))

	require.Equal(t, alice.Email, page.Data[1].Author.Email)
	require.Equal(t, "Life", page.Data[1].Tag.Name)
}

func TestListTiedTimestamps(t *testing.T) {
	s, store := bootstrap(t)
	ctx := context.Background()
	author := store.AddUser(mytesting.RandEmail())

	tied := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		store.AddMessage(author.ID, "Tech", "tied", tied)
	}
	older := store.AddMessage(author.ID, "Tech", "older", tied.Add(-time.Second))

	var (
		seen   = make(map[uuid.UUID]bool)
		cursor string
		calls  int
	)
	for {
		calls++
		require.LessOrEqual(t, calls, 3, "pagination did not terminate")

		page, err := s.List(ctx, ListQuery{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, id := range pageIDs(page) {
			require.False(t, seen[id], "message %s served twice", id)
			seen[id] = true
		}
		if !page.Meta.HasNextPage {
			require.Nil(t, page.Meta.NextCursor)
			break
		}
		require.NotEqual(t, cursor, *page.Meta.NextCursor)
		cursor = *page.Meta.NextCursor
	}

	require.Equal(t, 2, calls)
	require.True(t, seen[older])
}

func TestListTiedTimestampsOnly(t *testing.T) {
	s, store := bootstrap(t)
	ctx := context.Background()
	author := store.AddUser(mytesting.RandEmail())

	tied := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		store.AddMessage(author.ID, "Tech", "tied", tied)
	}

	page, err := s.List(ctx, ListQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	require.Equal(t, EncodeCursor(tied), *page.Meta.NextCursor)

	page, err = s.List(ctx, ListQuery{Limit: 2, Cursor: *page.Meta.NextCursor})
	require.NoError(t, err)
	require.Empty(t, page.Data)
	require.False(t, page.Meta.HasNextPage)
}

func TestListEmpty(t *testing.T) {
	s, _ := bootstrap(t)

	page, err := s.List(context.Background(), ListQuery{Limit: 10})
	require.NoError(t, err)
	require.NotNil(t, page.Data)
	require.Empty(t, page.Data)
	require.False(t, page.Meta.HasNextPage)
}

func TestListMalformedCursor(t *testing.T) {
	s, store := bootstrap(t)
	author := store.AddUser(mytesting.RandEmail())
	ids, _ := seed(store, author.ID, 3, time.Now())

	page, err := s.List(context.Background(), ListQuery{Limit: 10, Cursor: "not a cursor"})
	require.NoError(t, err)
	require.Equal(t, ids, pageIDs(page))
}

func TestListNonPositiveLimit(t *testing.T) {
	s, store := bootstrap(t)
	author := store.AddUser(mytesting.RandEmail())
	seed(store, author.ID, 25, time.Now())

	page, err := s.List(context.Background(), ListQuery{})
	require.NoError(t, err)
	require.Len(t, page.Data, DefaultLimit)
	require.True(t, page.Meta.HasNextPage)
}

func TestCreate(t *testing.T) {
	s, store := bootstrap(t)
	author := store.AddUser(mytesting.RandEmail())

	m, err := s.Create(context.Background(), author.ID, CreateInput{Content: "hello", TagName: "Tech"})
	require.NoError(t, err)
	require.Equal(t, "hello", m.Content)
	require.Equal(t, storage.Author{ID: author.ID, Email: author.Email}, m.Author)
	require.Equal(t, "Tech", m.Tag.Name)
	require.False(t, m.CreatedAt.IsZero())

	stored, ok := store.Message(m.ID)
	require.True(t, ok)
	require.Equal(t, m.Tag.ID, stored.TagID)
	require.Equal(t, []string{"Tech"}, store.TagNames())
}

func TestCreateReusesTag(t *testing.T) {
	s, store := bootstrap(t)
	ctx := context.Background()
	author := store.AddUser(mytesting.RandEmail())

	m1, err := s.Create(ctx, author.ID, CreateInput{Content: "one", TagName: "Tech"})
	require.NoError(t, err)
	m2, err := s.Create(ctx, author.ID, CreateInput{Content: "two", TagName: "Tech"})
	require.NoError(t, err)

	require.Equal(t, m1.Tag.ID, m2.Tag.ID)
	require.Equal(t, []string{"Tech"}, store.TagNames())
}

func TestCreateTagIsCaseSensitive(t *testing.T) {
	s, store := bootstrap(t)
	ctx := context.Background()
	author := store.AddUser(mytesting.RandEmail())

	_, err := s.Create(ctx, author.ID, CreateInput{Content: "one", TagName: "Tech"})
	require.NoError(t, err)
	_, err = s.Create(ctx, author.ID, CreateInput{Content: "two", TagName: "tech"})
	require.NoError(t, err)

	require.Equal(t, []string{"Tech", "tech"}, store.TagNames())
}

func TestCreateUnknownAuthor(t *testing.T) {
	s, store := bootstrap(t)

	_, err := s.Create(context.Background(), uuid.New(), CreateInput{Content: "hello", TagName: "Tech"})
	require.ErrorIs(t, err, ErrUserNotFound)
	require.Empty(t, store.TagNames())
}

func TestCreateRollsBack(t *testing.T) {
	s, store := bootstrap(t)
	author := store.AddUser(mytesting.RandEmail())
	store.FailInsertMessage = errors.New("connection reset")

	_, err := s.Create(context.Background(), author.ID, CreateInput{Content: "hello", TagName: "Brand new"})
	require.ErrorIs(t, err, ErrCreateFailed)
	require.NotContains(t, err.Error(), "connection reset")

	require.Empty(t, store.TagNames())
	require.Zero(t, store.MessageCount())
}

func TestUpdate(t *testing.T) {
	s, store := bootstrap(t)
	ctx := context.Background()
	author := store.AddUser(mytesting.RandEmail())
	id := store.AddMessage(author.ID, "Tech", "before", time.Now())

	content := "after"
	require.NoError(t, s.Update(ctx, author.ID, id, UpdateInput{Content: &content}))
	m, _ := store.Message(id)
	require.Equal(t, "after", m.Content)

	tag := "Life"
	require.NoError(t, s.Update(ctx, author.ID, id, UpdateInput{TagName: &tag}))
	m, _ = store.Message(id)
	require.Equal(t, "after", m.Content)
	require.Equal(t, []string{"Life", "Tech"}, store.TagNames())

	page, err := s.List(ctx, ListQuery{Limit: 1})
	require.NoError(t, err)
	require.Equal(t, "Life", page.Data[0].Tag.Name)
	require.Equal(t, m.TagID, page.Data[0].Tag.ID)
}

func TestUpdateEmptyPatch(t *testing.T) {
	s, store := bootstrap(t)
	author := store.AddUser(mytesting.RandEmail())
	id := store.AddMessage(author.ID, "Tech", "before", time.Now())
	before, _ := store.Message(id)

	require.NoError(t, s.Update(context.Background(), author.ID, id, UpdateInput{}))

	after, _ := store.Message(id)
	require.Equal(t, before, after)
}

func TestUpdateFailureIsGeneric(t *testing.T) {
	s, store := bootstrap(t)
	author := store.AddUser(mytesting.RandEmail())
	id := store.AddMessage(author.ID, "Tech", "before", time.Now())
	store.FailUpdateMessage = errors.New("deadlock detected")

	tag := "Life"
	err := s.Update(context.Background(), author.ID, id, UpdateInput{TagName: &tag})
	require.ErrorIs(t, err, ErrUpdateFailed)

	// tag resolution is not rolled back
	require.Equal(t, []string{"Life", "Tech"}, store.TagNames())
}

func TestWriteRequiresAuthor(t *testing.T) {
	s, store := bootstrap(t)
	ctx := context.Background()
	author := store.AddUser(mytesting.RandEmail())
	other := store.AddUser(mytesting.RandEmail())
	id := store.AddMessage(author.ID, "Tech", "mine", time.Now())
	before, _ := store.Message(id)

	content, tag := "hijacked", "Other"
	err := s.Update(ctx, other.ID, id, UpdateInput{Content: &content, TagName: &tag})
	require.ErrorIs(t, err, ErrNotMessageAuthor)

	err = s.Remove(ctx, other.ID, id)
	require.ErrorIs(t, err, ErrNotMessageAuthor)

	after, _ := store.Message(id)
	require.Equal(t, before, after)
	require.Equal(t, []string{"Tech"}, store.TagNames())
}

func TestWriteMissingMessage(t *testing.T) {
	s, store := bootstrap(t)
	ctx := context.Background()
	author := store.AddUser(mytesting.RandEmail())

	content := "x"
	require.ErrorIs(t, s.Update(ctx, author.ID, uuid.New(), UpdateInput{Content: &content}), ErrMessageNotFound)
	require.ErrorIs(t, s.Remove(ctx, author.ID, uuid.New()), ErrMessageNotFound)

	id := store.AddMessage(author.ID, "Tech", "bye", time.Now())
	require.NoError(t, s.Remove(ctx, author.ID, id))
	require.ErrorIs(t, s.Remove(ctx, author.ID, id), ErrMessageNotFound)
	require.ErrorIs(t, s.Update(ctx, author.ID, id, UpdateInput{Content: &content}), ErrMessageNotFound)
}
