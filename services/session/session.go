// Package session provides the per-request session handles and the stores persisting them.
package session

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/auth"
)

const CookieName = "dorm_session"

type (
	// Session holds JSON-encoded values for a single request. It is not safe for concurrent use.
	Session struct {
		id      string // only used by server-side stores
		values  map[string]json.RawMessage
		dirty   bool
		cleared bool
	}

	// Store loads a Session from a request and writes it back to the response.
	Store interface {
		// Load never returns a nil Session: a missing or invalid session yields an empty one.
		Load(r *http.Request) (*Session, error)
		// Save persists the session if it was modified.
		Save(w http.ResponseWriter, r *http.Request, sess *Session) error
	}
)

var _ auth.Session = (*Session)(nil) // interface compliance check

func New() *Session {
	return &Session{values: make(map[string]json.RawMessage)}
}

func (s *Session) Get(key string, dst interface{}) (bool, error) {
	raw, ok := s.values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, errors.Wrapf(err, "decoding session key %q", key)
	}
	return true, nil
}

func (s *Session) Set(key string, val interface{}) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return errors.Wrapf(err, "encoding session key %q", key)
	}
	s.values[key] = raw
	s.dirty = true
	return nil
}

func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

// Clear drops every value; server-side stores also rotate the session ID on save.
func (s *Session) Clear() {
	s.values = make(map[string]json.RawMessage)
	s.dirty = true
	s.cleared = true
}

func (s *Session) Dirty() bool { return s.dirty }
func (s *Session) Empty() bool { return len(s.values) == 0 }

type cookieOptions struct {
	name   string
	maxAge int // seconds
	secure bool
}

func newCookieOptions(conf *core.Config) cookieOptions {
	return cookieOptions{
		name:   CookieName,
		maxAge: int(conf.Session.MaxAge.Seconds()),
		secure: strings.HasPrefix(conf.PublicBaseURL, "https://"),
	}
}

func (o cookieOptions) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     o.name,
		Value:    value,
		Path:     "/",
		MaxAge:   o.maxAge,
		HttpOnly: true,
		Secure:   o.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (o cookieOptions) expired() *http.Cookie {
	c := o.cookie("")
	c.MaxAge = -1
	return c
}

// NewStore returns the store selected by SESSION_BACKEND.
func NewStore(conf *core.Config) (Store, error) {
	switch conf.Session.Backend {
	case "", "cookie":
		return NewCookieStore(conf)
	case "redis":
		return NewRedisStoreFromURL(conf)
	default:
		return nil, errors.Errorf("unknown session backend %q", conf.Session.Backend)
	}
}
