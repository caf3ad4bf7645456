package echoweb

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/auth"
	"github.com/trezcool/dormportal/core/user"
	"github.com/trezcool/dormportal/services/oauth"
)

const oauthStateKey = "oauth_state"

type authHandlers struct {
	*views
	gate    *auth.Gate
	userSvc user.Service
	oauth   oauth.Resolver
	logger  core.Logger
}

func registerAuthRoutes(g *echo.Group, h *authHandlers) {
	g.GET("/login", h.loginPage)
	g.POST("/login/dev", h.devLogin)
	g.GET("/logout", h.logout)
	g.GET("/auth/google", h.googleLogin)
	g.GET("/auth/google/callback", h.googleCallback)
}

// Handlers

func (h *authHandlers) loginPage(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, "login", h.page(ctx))
}

func (h *authHandlers) devLogin(ctx echo.Context) error {
	sess := getSession(ctx)
	if sess == nil {
		return errNoSession
	}
	ident, err := h.gate.DevIdentity()
	if err != nil {
		return redirectError(ctx, auth.LoginPath, "Dev mode is disabled")
	}
	if err = auth.Login(sess, ident); err != nil {
		return errors.Wrap(err, "logging in dev identity")
	}
	return redirectSuccess(ctx, "/students", "Dev login enabled")
}

func (h *authHandlers) logout(ctx echo.Context) error {
	if sess := getSession(ctx); sess != nil {
		auth.Logout(sess)
	}
	return redirectSuccess(ctx, auth.LoginPath, "Signed out")
}

// googleLogin redirects to Google's consent screen; the state is kept in the session until the callback.
func (h *authHandlers) googleLogin(ctx echo.Context) error {
	if h.oauth == nil {
		return redirectError(ctx, auth.LoginPath, "Google OAuth not configured")
	}
	sess := getSession(ctx)
	if sess == nil {
		return errNoSession
	}
	state := strings.ReplaceAll(uuid.New().String(), "-", "")
	if err := sess.Set(oauthStateKey, state); err != nil {
		return errors.Wrap(err, "storing oauth state")
	}
	return ctx.Redirect(http.StatusFound, h.oauth.AuthCodeURL(state))
}

func (h *authHandlers) googleCallback(ctx echo.Context) error {
	if h.oauth == nil {
		return redirectError(ctx, auth.LoginPath, "Google OAuth not configured")
	}
	sess := getSession(ctx)
	if sess == nil {
		return errNoSession
	}

	var state string
	ok, err := sess.Get(oauthStateKey, &state)
	sess.Delete(oauthStateKey)
	if err != nil || !ok || state == "" || state != ctx.QueryParam("state") {
		h.logger.Warn("google callback: state mismatch")
		return redirectError(ctx, auth.LoginPath, "Google login failed")
	}
	if errParam := ctx.QueryParam("error"); errParam != "" {
		h.logger.Warn(fmt.Sprintf("google callback: %s", errParam))
		return redirectError(ctx, auth.LoginPath, "Google login failed")
	}

	claim, err := h.oauth.Resolve(ctx.Request().Context(), ctx.QueryParam("code"))
	if err != nil {
		if errors.Cause(err) == oauth.ErrNoEmail {
			return redirectError(ctx, auth.LoginPath, "Could not read Google profile")
		}
		h.logger.Warn(fmt.Sprintf("google callback: %v", err), err)
		return redirectError(ctx, auth.LoginPath, "Google login failed")
	}

	usr, err := h.userSvc.Upsert(ctx.Request().Context(), claim)
	if err != nil {
		return errors.Wrap(err, "upserting google user")
	}
	if err = auth.Login(sess, auth.IdentityFromUser(usr)); err != nil {
		return errors.Wrap(err, "logging in google user")
	}
	return redirectSuccess(ctx, "/students", "Signed in")
}
