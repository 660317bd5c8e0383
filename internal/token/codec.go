// Package token mints and reads the opaque bearer tokens handed out by the
// auth endpoints. Tokens are compact JWS strings whose payload carries the
// claims plus an absolute expiry in milliseconds since the epoch.
//
// Without a secret the codec emits unsigned ("alg":"none") tokens, which
// anyone can forge. With a secret it signs and verifies with HS256 but keeps
// the exact same claim shape.
package token

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ClaimSubject = "sub"
	ClaimType    = "type"
	ClaimExpiry  = "exp"

	TypeRefresh = "refresh"

	AccessTTL  = time.Hour
	RefreshTTL = 7 * 24 * time.Hour
)

// Claims is the mapping embedded in a token.
type Claims map[string]any

// Subject returns the owning user id.
func (c Claims) Subject() (int64, bool) {
	return asInt64(c[ClaimSubject])
}

func (c Claims) Type() string {
	s, _ := c[ClaimType].(string)
	return s
}

// ExpiresAt returns the expiry in milliseconds since the epoch.
func (c Claims) ExpiresAt() (int64, bool) {
	return asInt64(c[ClaimExpiry])
}

type Codec struct {
	secret []byte
	now    func() time.Time
}

type Option func(*Codec)

// WithSecret switches the codec to HS256 signed tokens.
func WithSecret(secret string) Option {
	return func(c *Codec) {
		if secret != "" {
			c.secret = []byte(secret)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(opts ...Option) *Codec {
	c := &Codec{now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Signed reports whether tokens carry an HMAC.
func (c *Codec) Signed() bool { return len(c.secret) > 0 }

// Encode copies claims, stamps exp = now + ttl and serializes the result.
// The returned error is only non-nil when a claim value cannot be marshaled.
func (c *Codec) Encode(claims Claims, ttl time.Duration) (string, error) {
	body := make(jwt.MapClaims, len(claims)+1)
	for k, v := range claims {
		body[k] = v
	}
	body[ClaimExpiry] = c.now().Add(ttl).UnixMilli()

	if c.Signed() {
		return jwt.NewWithClaims(jwt.SigningMethodHS256, body).SignedString(c.secret)
	}
	return jwt.NewWithClaims(jwt.SigningMethodNone, body).SignedString(jwt.UnsafeAllowNoneSignatureType)
}

// Decode reverses Encode. It never fails loudly: garbage, a missing exp or an
// exp that is not strictly in the future all yield ok == false.
func (c *Codec) Decode(raw string) (Claims, bool) {
	if raw == "" {
		return nil, false
	}

	method := jwt.SigningMethodNone.Alg()
	if c.Signed() {
		method = jwt.SigningMethodHS256.Alg()
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{method}),
		jwt.WithJSONNumber(),
		// exp is in milliseconds, which the library would misread as seconds.
		jwt.WithoutClaimsValidation(),
	)

	parsed, err := parser.Parse(raw, func(*jwt.Token) (interface{}, error) {
		if c.Signed() {
			return c.secret, nil
		}
		return jwt.UnsafeAllowNoneSignatureType, nil
	})
	if err != nil || !parsed.Valid {
		return nil, false
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}

	claims := Claims(mc)
	exp, ok := claims.ExpiresAt()
	if !ok || exp <= c.now().UnixMilli() {
		return nil, false
	}
	return claims, true
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil || f != float64(int64(f)) {
			return 0, false
		}
		return int64(f), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}
