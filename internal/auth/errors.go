package auth

import "errors"

// Kind classifies failures the HTTP layer turns into status codes.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindConflict
	KindUnauthorized
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	}
	return "unknown"
}

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error of the same kind, so callers can test with the
// sentinels below regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrRegisterFieldsRequired = &Error{Kind: KindBadRequest, Message: "email or username and password required"}
	ErrLoginFieldsRequired    = &Error{Kind: KindBadRequest, Message: "identifier/email/username and password required"}
	ErrUserExists             = &Error{Kind: KindConflict, Message: "user already exists"}
	ErrInvalidCredentials     = &Error{Kind: KindUnauthorized, Message: "invalid credentials"}
	ErrInvalidRefreshToken    = &Error{Kind: KindUnauthorized, Message: "invalid refresh token"}
	ErrUnauthorized           = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrUserNotFound           = &Error{Kind: KindNotFound, Message: "user does not exist"}
)

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
