package echoweb

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/auth"
	"github.com/trezcool/dormportal/services/session"
)

const (
	contextSessionKey  = "session"
	contextIdentityKey = "identity"
)

// sessionMiddleware loads the request session and saves it right before the response headers are written.
func sessionMiddleware(store session.Store, logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := store.Load(ctx.Request())
			if err != nil {
				logger.Warn(fmt.Sprintf("loading session: %v", err), err)
				sess = session.New()
			}
			ctx.Set(contextSessionKey, sess)

			ctx.Response().Before(func() {
				if err := store.Save(ctx.Response().Writer, ctx.Request(), sess); err != nil {
					logger.Error(fmt.Sprintf("saving session: %v", err), err)
				}
			})
			return next(ctx)
		}
	}
}

// loginRequired lets authenticated requests through and sends everyone else to the login page.
func loginRequired(gate *auth.Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			switch d := gate.RequireOrRedirect(getSession(ctx)).(type) {
			case auth.Authenticated:
				ctx.Set(contextIdentityKey, d.Identity)
				return next(ctx)
			case auth.NeedsLogin:
				return ctx.Redirect(http.StatusSeeOther, d.Location)
			default:
				return errInvalidDecision
			}
		}
	}
}

// getSession returns the request session, nil outside of sessionMiddleware.
func getSession(ctx echo.Context) auth.Session {
	if sess, ok := ctx.Get(contextSessionKey).(*session.Session); ok {
		return sess
	}
	return nil
}

func getIdentity(ctx echo.Context) (auth.Identity, bool) {
	ident, ok := ctx.Get(contextIdentityKey).(auth.Identity)
	return ident, ok
}
