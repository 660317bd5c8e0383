package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T, seed Document) *Store {
	t.Helper()
	s, err := Open(context.Background(), NewMemory(seed))
	require.NoError(t, err)
	return s
}

func TestOpen_AddsUsersCollection(t *testing.T) {
	s := openMemory(t, Document{"posts": {}})
	assert.Equal(t, []string{"posts", "users"}, s.Collections())
}

func TestInsert_AssignsNextID(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t, Document{"posts": {
		{"id": json.Number("3"), "title": "a"},
		{"id": "7", "title": "string id"},
		{"id": "abc", "title": "ignored"},
	}})

	rec, err := s.Insert(ctx, "posts", Record{"title": "b"})
	require.NoError(t, err)
	id, ok := NumericID(rec)
	require.True(t, ok)
	assert.Equal(t, int64(8), id)

	users := openMemory(t, nil)
	rec, err = users.Insert(ctx, "users", Record{"email": "x"})
	require.NoError(t, err)
	id, _ = NumericID(rec)
	assert.Equal(t, int64(1), id)
}

func TestInsert_ExplicitIDMustBeUnique(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t, Document{"posts": {{"id": json.Number("1")}}})

	_, err := s.Insert(ctx, "posts", Record{"id": "1"})
	assert.ErrorIs(t, err, ErrDuplicateID)

	rec, err := s.Insert(ctx, "posts", Record{"id": "slug"})
	require.NoError(t, err)
	assert.Equal(t, "slug", rec["id"])
}

func TestInsert_UnknownCollection(t *testing.T) {
	s := openMemory(t, nil)
	_, err := s.Insert(context.Background(), "nope", Record{})
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestInsert_ConcurrentIDsAreUnique(t *testing.T) {
	s := openMemory(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Insert(ctx, "users", Record{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	items, err := s.List("users")
	require.NoError(t, err)
	seen := map[int64]bool{}
	for _, r := range items {
		id, ok := NumericID(r)
		require.True(t, ok)
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, 40)
}

func TestInsertFunc_AbortLeavesDocumentUntouched(t *testing.T) {
	s := openMemory(t, nil)
	boom := errors.New("conflict")

	_, err := s.InsertFunc(context.Background(), "users", func([]Record, int64) (Record, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	items, _ := s.List("users")
	assert.Empty(t, items)
}

func TestGetReplacePatchDelete(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t, Document{"posts": {{"id": json.Number("1"), "title": "a", "tags": []any{"x"}}}})

	rec, err := s.Get("posts", "1")
	require.NoError(t, err)
	assert.Equal(t, "a", rec["title"])

	// returned records are copies
	rec["title"] = "mutated"
	rec["tags"].([]any)[0] = "y"
	again, _ := s.Get("posts", "1")
	assert.Equal(t, "a", again["title"])
	assert.Equal(t, []any{"x"}, again["tags"])

	rec, err = s.Patch(ctx, "posts", "1", Record{"views": 3, "id": 99})
	require.NoError(t, err)
	assert.Equal(t, "a", rec["title"])
	assert.Equal(t, 3, rec["views"])
	assert.Equal(t, json.Number("1"), rec["id"])

	rec, err = s.Replace(ctx, "posts", "1", Record{"title": "b"})
	require.NoError(t, err)
	assert.Equal(t, Record{"id": json.Number("1"), "title": "b"}, rec)

	require.NoError(t, s.Delete(ctx, "posts", "1"))
	_, err = s.Get("posts", "1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "posts", "1"), ErrNotFound)
	_, err = s.Patch(ctx, "posts", "1", Record{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFind(t *testing.T) {
	s := openMemory(t, Document{"users": {
		{"id": json.Number("1"), "email": "a@x.com"},
		{"id": json.Number("2"), "email": "b@x.com"},
	}})
	rec, ok := s.Find("users", func(r Record) bool { return r["email"] == "b@x.com" })
	require.True(t, ok)
	assert.Equal(t, json.Number("2"), rec["id"])

	_, ok = s.Find("users", func(Record) bool { return false })
	assert.False(t, ok)
}

type failingBackend struct{ Memory }

func (failingBackend) Save(context.Context, Document, string) error {
	return errors.New("disk full")
}

func TestCommit_RollsBackOnFlushFailure(t *testing.T) {
	s, err := Open(context.Background(), &failingBackend{})
	require.NoError(t, err)

	_, err = s.Insert(context.Background(), "users", Record{"email": "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	items, _ := s.List("users")
	assert.Empty(t, items)
}

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "db.json")

	s, err := Open(ctx, NewFile(path))
	require.NoError(t, err)
	require.FileExists(t, path)

	_, err = s.Insert(ctx, "users", Record{"email": "a@x.com", "password": "pw"})
	require.NoError(t, err)

	reopened, err := Open(ctx, NewFile(path))
	require.NoError(t, err)
	rec, err := reopened.Get("users", "1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", rec["email"])

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "{\n  \"users\": ["))
}

func TestParseDocument_RejectsNonArrays(t *testing.T) {
	_, err := ParseDocument([]byte(`{"users": [], "profile": {"name": "x"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"profile"`)

	_, err = ParseDocument([]byte(`not json`))
	assert.Error(t, err)
}

func TestSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.sqlite")

	b, err := NewSQLite(path)
	require.NoError(t, err)
	s, err := Open(ctx, b)
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))

	_, err = s.Insert(ctx, "users", Record{"email": "a@x.com"})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "users", Record{"email": "b@x.com"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	b2, err := NewSQLite(path)
	require.NoError(t, err)
	defer b2.Close()
	reopened, err := Open(ctx, b2)
	require.NoError(t, err)

	items, err := reopened.List("users")
	require.NoError(t, err)
	require.Len(t, items, 2)
	id, _ := NumericID(items[1])
	assert.Equal(t, int64(2), id)
}
