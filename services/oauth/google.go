// Package oauth resolves Google sign-ins into verified identity claims.
package oauth

import (
	"context"
	"encoding/json"
	"net/http"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/user"
)

const defaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

var googleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

var (
	ErrNotConfigured = errors.New("google login is not configured")
	ErrInvalidToken  = errors.New("invalid google id token")
	ErrNoEmail       = errors.New("google account has no email")

	// verifyIDToken checks the token signature against Google's certificates; mockable.
	verifyIDToken = func(idToken, clientID string) error {
		v := googleAuthIDTokenVerifier.Verifier{}
		return v.VerifyIDToken(idToken, []string{clientID})
	}
)

type (
	// Resolver turns the authorization code of the callback into a verified claim.
	Resolver interface {
		AuthCodeURL(state string) string
		Resolve(ctx context.Context, code string) (user.Claim, error)
	}

	GoogleResolver struct {
		conf        *oauth2.Config
		userInfoURL string
	}

	userInfo struct {
		Email     string `json:"email"`
		Name      string `json:"name"`
		GivenName string `json:"given_name"`
		Picture   string `json:"picture"`
	}
)

var _ Resolver = (*GoogleResolver)(nil) // interface compliance check

func NewGoogleResolver(conf *core.Config) (*GoogleResolver, error) {
	if !conf.GoogleConfigured() {
		return nil, ErrNotConfigured
	}
	return &GoogleResolver{
		conf: &oauth2.Config{
			ClientID:     conf.Google.ClientID,
			ClientSecret: conf.Google.ClientSecret,
			RedirectURL:  conf.Google.RedirectURI,
			Endpoint:     googleEndpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: defaultUserInfoURL,
	}, nil
}

func (g *GoogleResolver) AuthCodeURL(state string) string {
	return g.conf.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Resolve exchanges code for tokens. The ID token is verified and decoded when present;
// otherwise, or when it lacks the email, the userinfo endpoint is asked instead.
func (g *GoogleResolver) Resolve(ctx context.Context, code string) (user.Claim, error) {
	token, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return user.Claim{}, errors.Wrap(err, "exchanging authorization code")
	}

	var claim user.Claim
	if idToken, ok := token.Extra("id_token").(string); ok && idToken != "" {
		if claim, err = g.claimFromIDToken(idToken); err != nil {
			return user.Claim{}, err
		}
	}
	if claim.Email == "" {
		if claim, err = g.claimFromUserInfo(ctx, token); err != nil {
			return user.Claim{}, err
		}
	}
	if claim.Email == "" {
		return user.Claim{}, ErrNoEmail
	}
	return claim, nil
}

func (g *GoogleResolver) claimFromIDToken(idToken string) (user.Claim, error) {
	if err := verifyIDToken(idToken, g.conf.ClientID); err != nil {
		return user.Claim{}, errors.Wrap(ErrInvalidToken, err.Error())
	}
	claimSet, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return user.Claim{}, errors.Wrap(ErrInvalidToken, err.Error())
	}
	claim := user.Claim{Email: claimSet.Email, Name: claimSet.Name}

	// the token is verified: its remaining profile fields can be read as is
	extra := jwt.MapClaims{}
	if _, _, err = jwt.NewParser().ParseUnverified(idToken, extra); err == nil {
		claim.GivenName, _ = extra["given_name"].(string)
		claim.Picture, _ = extra["picture"].(string)
	}
	return claim, nil
}

func (g *GoogleResolver) claimFromUserInfo(ctx context.Context, token *oauth2.Token) (user.Claim, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return user.Claim{}, errors.Wrap(err, "building userinfo request")
	}
	res, err := g.conf.Client(ctx, token).Do(req)
	if err != nil {
		return user.Claim{}, errors.Wrap(err, "fetching userinfo")
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return user.Claim{}, errors.Errorf("userinfo responded with status %d", res.StatusCode)
	}

	var info userInfo
	if err = json.NewDecoder(res.Body).Decode(&info); err != nil {
		return user.Claim{}, errors.Wrap(err, "decoding userinfo")
	}
	return user.Claim{Email: info.Email, Name: info.Name, GivenName: info.GivenName, Picture: info.Picture}, nil
}
