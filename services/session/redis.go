package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/dormportal/core"
)

const redisKeyPrefix = "dorm:session:"

// RedisStore keeps session values in Redis; the cookie only carries a random session ID.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	opts   cookieOptions
}

var _ Store = (*RedisStore)(nil) // interface compliance check

func NewRedisStore(client redis.UniversalClient, conf *core.Config) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    conf.Session.MaxAge,
		opts:   newCookieOptions(conf),
	}
}

// NewRedisStoreFromURL connects to REDIS_URL.
func NewRedisStoreFromURL(conf *core.Config) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(conf.Session.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing REDIS_URL")
	}
	return NewRedisStore(redis.NewClient(redisOpts), conf), nil
}

// Close closes the underlying client.
func (st *RedisStore) Close() error {
	return st.client.Close()
}

func (st *RedisStore) key(id string) string {
	return redisKeyPrefix + id
}

func (st *RedisStore) Load(r *http.Request) (*Session, error) {
	sess := New()
	c, err := r.Cookie(st.opts.name)
	if err != nil || c.Value == "" {
		return sess, nil
	}
	if _, err = uuid.Parse(c.Value); err != nil {
		return sess, nil
	}

	raw, err := st.client.Get(r.Context(), st.key(c.Value)).Bytes()
	if err == redis.Nil {
		return sess, nil
	}
	if err != nil {
		return sess, errors.Wrap(err, "loading session")
	}

	values := make(map[string]json.RawMessage)
	if err = json.Unmarshal(raw, &values); err != nil {
		return sess, nil
	}
	sess.id = c.Value
	sess.values = values
	return sess, nil
}

func (st *RedisStore) Save(w http.ResponseWriter, r *http.Request, sess *Session) error {
	if !sess.Dirty() {
		return nil
	}
	ctx := r.Context()

	if sess.id != "" && (sess.cleared || sess.Empty()) {
		if err := st.client.Del(ctx, st.key(sess.id)).Err(); err != nil {
			return errors.Wrap(err, "deleting session")
		}
		sess.id = ""
	}
	if sess.Empty() {
		http.SetCookie(w, st.opts.expired())
		return nil
	}

	if sess.id == "" {
		sess.id = uuid.NewString()
	}
	raw, err := json.Marshal(sess.values)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	if err = st.client.Set(ctx, st.key(sess.id), raw, st.ttl).Err(); err != nil {
		return errors.Wrap(err, "saving session")
	}
	http.SetCookie(w, st.opts.cookie(sess.id))
	return nil
}
