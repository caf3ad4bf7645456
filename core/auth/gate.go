// Package auth decides who the current request belongs to, from its session.
package auth

import (
	"github.com/pkg/errors"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/user"
)

const (
	// SessionKey is the session entry holding the serialized Identity.
	SessionKey = "user"
	LoginPath  = "/login"
)

var ErrDevModeDisabled = errors.New("dev login is disabled")

type (
	// Identity is the session-scoped record of the authenticated staff member.
	// An Identity with an empty Email is never considered authenticated.
	Identity struct {
		ID         *int   `json:"id,omitempty"` // nil for the dev identity
		Email      string `json:"email"`
		Name       string `json:"name"`
		PictureURL string `json:"picture_url,omitempty"`
		Dev        bool   `json:"dev,omitempty"`
	}

	// Session is the per-request key/value store the gate reads identities from.
	Session interface {
		// Get decodes the value stored under key into dst; ok is false when there is none.
		Get(key string, dst interface{}) (ok bool, err error)
		Set(key string, val interface{}) error
		Delete(key string)
		Clear()
	}

	// Decision is the outcome of RequireOrRedirect: either Authenticated or NeedsLogin.
	Decision interface {
		decision()
	}

	Authenticated struct {
		Identity Identity
	}

	NeedsLogin struct {
		Location string
	}

	Gate struct {
		devEnabled bool
		devEmail   string
		devName    string
	}
)

func (Authenticated) decision() {}
func (NeedsLogin) decision()    {}

// NewGate returns a Gate. Dev login is only offered when dev mode is on and Google login is not configured.
func NewGate(conf *core.Config) *Gate {
	return &Gate{
		devEnabled: conf.Dev.Enabled && !conf.GoogleConfigured(),
		devEmail:   core.CleanString(conf.Dev.UserEmail, true /* lower */),
		devName:    core.CleanString(conf.Dev.UserName),
	}
}

// DevEnabled reports whether DevIdentity can succeed.
func (g *Gate) DevEnabled() bool { return g.devEnabled }

// Resolve returns the identity stored in the session. Missing, undecodable or email-less entries
// all mean "not authenticated".
func (g *Gate) Resolve(sess Session) (Identity, bool) {
	if sess == nil {
		return Identity{}, false
	}
	var ident Identity
	ok, err := sess.Get(SessionKey, &ident)
	if err != nil || !ok || core.CleanString(ident.Email) == "" {
		return Identity{}, false
	}
	return ident, true
}

func (g *Gate) RequireOrRedirect(sess Session) Decision {
	if ident, ok := g.Resolve(sess); ok {
		return Authenticated{Identity: ident}
	}
	return NeedsLogin{Location: LoginPath}
}

// DevIdentity synthesizes the configured development identity.
func (g *Gate) DevIdentity() (Identity, error) {
	if !g.devEnabled || g.devEmail == "" {
		return Identity{}, ErrDevModeDisabled
	}
	name := g.devName
	if name == "" {
		name = "Dev User"
	}
	return Identity{Email: g.devEmail, Name: name, Dev: true}, nil
}

// Login stores ident in the session, replacing whatever was there.
func Login(sess Session, ident Identity) error {
	sess.Clear()
	return errors.Wrap(sess.Set(SessionKey, ident), "storing identity")
}

func Logout(sess Session) {
	sess.Clear()
}

func IdentityFromUser(usr user.DormUser) Identity {
	id := usr.ID
	return Identity{
		ID:         &id,
		Email:      usr.Email,
		Name:       usr.Name,
		PictureURL: usr.PictureURL.String,
	}
}
