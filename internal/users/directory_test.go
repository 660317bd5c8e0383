package users

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/mockserver/internal/datastore"
)

func newDirectory(t *testing.T, seed datastore.Document) *Directory {
	t.Helper()
	s, err := datastore.Open(context.Background(), datastore.NewMemory(seed))
	require.NoError(t, err)
	d := NewDirectory(s)
	d.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 8_000_000, time.FixedZone("x", 3600)) }
	return d
}

func TestCreate_Defaults(t *testing.T) {
	d := newDirectory(t, nil)

	u, err := d.Create(context.Background(), NewUser{Email: "a@x.com", Password: "pw"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "a", u.Username)
	assert.Equal(t, DefaultRole, u.Role)
	assert.Equal(t, "", u.FullName)
	assert.Equal(t, "2025-03-04T04:06:07.008Z", u.CreatedAt)

	pub := u.Public()
	assert.NotContains(t, pub, "password")
	assert.Equal(t, "a@x.com", pub["email"])
}

func TestCreate_Conflicts(t *testing.T) {
	ctx := context.Background()
	d := newDirectory(t, nil)

	_, err := d.Create(ctx, NewUser{Email: "a@x.com", Password: "pw"})
	require.NoError(t, err)

	_, err = d.Create(ctx, NewUser{Email: "a@x.com", Password: "other"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = d.Create(ctx, NewUser{Username: "a", Password: "pw"})
	assert.ErrorIs(t, err, ErrConflict, "username taken through email default")

	_, err = d.Create(ctx, NewUser{Email: "a@y.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrConflict, "defaulted username is checked too")

	u, err := d.Create(ctx, NewUser{Email: "a@y.com", Username: "ay", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), u.ID)

	// empty emails never collide
	_, err = d.Create(ctx, NewUser{Username: "u1", Password: "pw"})
	require.NoError(t, err)
	_, err = d.Create(ctx, NewUser{Username: "u2", Password: "pw"})
	require.NoError(t, err)
}

func TestFindByCredentials(t *testing.T) {
	ctx := context.Background()
	d := newDirectory(t, datastore.Document{"users": {
		{"id": json.Number("1"), "email": "a@x.com", "username": "alice", "password": "pw"},
		{"id": json.Number("2"), "email": "b@x.com", "username": "bob", "password": json.Number("1234")},
	}})

	u, ok := d.FindByCredentials(ctx, "a@x.com", "pw")
	require.True(t, ok)
	assert.Equal(t, int64(1), u.ID)

	u, ok = d.FindByCredentials(ctx, "alice", "pw")
	require.True(t, ok)
	assert.Equal(t, int64(1), u.ID)

	u, ok = d.FindByCredentials(ctx, "bob", "1234")
	require.True(t, ok, "numeric passwords compare as strings")
	assert.Equal(t, int64(2), u.ID)

	_, ok = d.FindByCredentials(ctx, "alice", "PW")
	assert.False(t, ok)
	_, ok = d.FindByCredentials(ctx, "carol", "pw")
	assert.False(t, ok)
}

func TestFindByID(t *testing.T) {
	ctx := context.Background()
	d := newDirectory(t, datastore.Document{"users": {
		{"id": json.Number("5"), "email": "a@x.com", "password": "pw", "avatar": "a.png"},
	}})

	u, ok := d.FindByID(ctx, 5)
	require.True(t, ok)
	assert.Equal(t, "a.png", u.Public()["avatar"], "extra fields survive")

	_, ok = d.FindByID(ctx, 6)
	assert.False(t, ok)
}

func TestStringIDs(t *testing.T) {
	ctx := context.Background()
	d := newDirectory(t, datastore.Document{"users": {
		{"id": "5", "email": "s@x.com", "password": "pw"},
		{"id": "abc", "email": "n@x.com", "password": "pw"},
	}})

	u, ok := d.FindByCredentials(ctx, "s@x.com", "pw")
	require.True(t, ok)
	assert.Equal(t, int64(5), u.ID)

	u, ok = d.FindByID(ctx, 5)
	require.True(t, ok)
	assert.Equal(t, "s@x.com", u.Email)

	_, ok = d.FindByCredentials(ctx, "n@x.com", "pw")
	assert.False(t, ok, "non-integer ids cannot log in")
	_, ok = d.FindByID(ctx, 0)
	assert.False(t, ok)
}
