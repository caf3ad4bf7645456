package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dormportal/core"
)

// CookieStore keeps the whole session in an HS256 signed cookie.
type CookieStore struct {
	secret []byte
	ttl    time.Duration
	opts   cookieOptions
}

type cookieClaims struct {
	Data map[string]json.RawMessage `json:"data"`
	jwt.RegisteredClaims
}

var _ Store = (*CookieStore)(nil) // interface compliance check

func NewCookieStore(conf *core.Config) (*CookieStore, error) {
	if conf.Session.Secret == "" {
		return nil, errors.New("SESSION_SECRET is required")
	}
	return &CookieStore{
		secret: []byte(conf.Session.Secret),
		ttl:    conf.Session.MaxAge,
		opts:   newCookieOptions(conf),
	}, nil
}

// Load ignores tampered, expired or malformed cookies.
func (st *CookieStore) Load(r *http.Request) (*Session, error) {
	sess := New()
	c, err := r.Cookie(st.opts.name)
	if err != nil || c.Value == "" {
		return sess, nil
	}

	claims := new(cookieClaims)
	token, err := jwt.ParseWithClaims(c.Value, claims, func(*jwt.Token) (interface{}, error) {
		return st.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return sess, nil
	}
	if claims.Data != nil {
		sess.values = claims.Data
	}
	return sess, nil
}

func (st *CookieStore) Save(w http.ResponseWriter, _ *http.Request, sess *Session) error {
	if !sess.Dirty() {
		return nil
	}
	if sess.Empty() {
		http.SetCookie(w, st.opts.expired())
		return nil
	}

	now := core.NowFunc()
	claims := cookieClaims{
		Data: sess.values,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(st.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(st.secret)
	if err != nil {
		return errors.Wrap(err, "signing session cookie")
	}
	http.SetCookie(w, st.opts.cookie(signed))
	return nil
}
