// Package users exposes the "users" collection of the datastore as the
// directory the auth endpoints authenticate against.
package users

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/example/mockserver/internal/datastore"
)

const (
	Collection  = "users"
	DefaultRole = "CLIENT"
)

var ErrConflict = errors.New("user already exists")

// User is the typed view of a user record. Raw keeps the stored record,
// including fields this package does not know about.
type User struct {
	ID        int64
	Email     string
	Username  string
	Password  string
	FullName  string
	Role      string
	CreatedAt string
	Raw       datastore.Record
}

// Public returns the stored record without the password field.
func (u User) Public() map[string]any {
	out := map[string]any(u.Raw.Clone())
	if out == nil {
		out = map[string]any{}
	}
	delete(out, "password")
	return out
}

// NewUser carries the fields accepted at registration.
type NewUser struct {
	Email    string
	Username string
	Password string
	FullName string
	Role     string
}

type Directory struct {
	store *datastore.Store
	now   func() time.Time
}

func NewDirectory(store *datastore.Store) *Directory {
	return &Directory{store: store, now: time.Now}
}

// FindByCredentials returns the first user whose email or username equals
// identifier and whose password matches verbatim. Users without an integer
// id cannot be tokenized and never match.
func (d *Directory) FindByCredentials(_ context.Context, identifier, password string) (User, bool) {
	rec, ok := d.store.Find(Collection, func(r datastore.Record) bool {
		if !fieldEquals(r, "email", identifier) && !fieldEquals(r, "username", identifier) {
			return false
		}
		if _, ok := recordID(r); !ok {
			return false
		}
		return datastore.Stringify(r["password"]) == password
	})
	if !ok {
		return User{}, false
	}
	return fromRecord(rec), true
}

// FindByID matches numeric ids and their decimal string forms.
func (d *Directory) FindByID(_ context.Context, id int64) (User, bool) {
	want := strconv.FormatInt(id, 10)
	rec, ok := d.store.Find(Collection, func(r datastore.Record) bool {
		got, ok := datastore.IDOf(r)
		return ok && got == want
	})
	if !ok {
		return User{}, false
	}
	return fromRecord(rec), true
}

// Create fills defaults, rejects a taken email or username and appends the
// user. The uniqueness check and the id assignment happen atomically.
func (d *Directory) Create(ctx context.Context, in NewUser) (User, error) {
	username := in.Username
	if username == "" && in.Email != "" {
		username, _, _ = strings.Cut(in.Email, "@")
	}
	role := in.Role
	if role == "" {
		role = DefaultRole
	}

	rec, err := d.store.InsertFunc(ctx, Collection, func(items []datastore.Record, nextID int64) (datastore.Record, error) {
		for _, r := range items {
			if in.Email != "" && fieldEquals(r, "email", in.Email) {
				return nil, ErrConflict
			}
			if username != "" && fieldEquals(r, "username", username) {
				return nil, ErrConflict
			}
		}
		return datastore.Record{
			"id":         nextID,
			"email":      in.Email,
			"username":   username,
			"password":   in.Password,
			"full_name":  in.FullName,
			"role":       role,
			"created_at": d.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		}, nil
	})
	if err != nil {
		return User{}, err
	}
	return fromRecord(rec), nil
}

func fieldEquals(r datastore.Record, key, want string) bool {
	s, ok := r[key].(string)
	return ok && s == want
}

func fromRecord(r datastore.Record) User {
	u := User{Raw: r}
	u.ID, _ = recordID(r)
	u.Email, _ = r["email"].(string)
	u.Username, _ = r["username"].(string)
	u.Password = datastore.Stringify(r["password"])
	u.FullName, _ = r["full_name"].(string)
	u.Role, _ = r["role"].(string)
	u.CreatedAt, _ = r["created_at"].(string)
	return u
}

// recordID reads an integer id stored either as a number or as its decimal
// string.
func recordID(r datastore.Record) (int64, bool) {
	if id, ok := datastore.NumericID(r); ok {
		return id, true
	}
	s, ok := r["id"].(string)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil
}
