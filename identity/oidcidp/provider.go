// Package oidcidp implements the identity.Provider capability against an
// OpenID Connect provider using the resource-owner password grant. The
// backend stays the credential store of record; the OIDC provider asserts
// identity independently, and its state drives the session controller when
// configured.
package oidcidp

import (
	"context"
	"sync"

	"github.com/coleapp/session-service/autherrors"
	"github.com/coleapp/session-service/identity"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Config describes the OIDC issuer and client to authenticate against.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

var _ identity.Provider = (*Provider)(nil)

// Provider holds the oidc.Provider / oauth2.Config / IDTokenVerifier trio
// for one issuer and tracks the current signed-in identity.
type Provider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier

	lock  sync.Mutex
	state identity.State
	subs  map[int]func(identity.State)
	next  int

	// resetPassword is issuer-specific; generic OIDC has no reset
	// endpoint, so it is injected when the deployment has one.
	resetPassword func(ctx context.Context, email string) error
}

type Option func(*Provider)

// WithResetPassword installs the issuer's password-reset call.
func WithResetPassword(fn func(ctx context.Context, email string) error) Option {
	return func(p *Provider) {
		p.resetPassword = fn
	}
}

// New discovers the issuer and builds the provider.
func New(ctx context.Context, cfg Config, options ...Option) (*Provider, error) {
	oidcProvider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "[oidcidp.New] provider discovery")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	p := &Provider{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       scopes,
		},
		verifier: oidcProvider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		subs:     make(map[int]func(identity.State)),
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

func (p *Provider) Enabled() bool { return true }

func (p *Provider) SignIn(ctx context.Context, email, password string) (string, error) {
	oauthToken, err := p.oauthConfig.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return "", autherrors.Wrap(autherrors.KindInvalidCredentials, "invalid email or password", err)
	}

	rawIDToken, ok := oauthToken.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", autherrors.New(autherrors.KindInternal, "identity provider returned no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", autherrors.Wrap(autherrors.KindInternal, "identity token failed verification", err)
	}

	var claims struct {
		Email string `json:"email"`
	}
	_ = idToken.Claims(&claims)
	if claims.Email == "" {
		claims.Email = email
	}

	p.publish(identity.State{
		SignedIn:      true,
		IdentityToken: rawIDToken,
		Subject:       idToken.Subject,
		Email:         claims.Email,
	})
	return rawIDToken, nil
}

func (p *Provider) SignOut(context.Context) error {
	p.publish(identity.State{})
	return nil
}

func (p *Provider) ResetPassword(ctx context.Context, email string) error {
	p.lock.Lock()
	fn := p.resetPassword
	p.lock.Unlock()
	if fn == nil {
		return autherrors.New(autherrors.KindInternal, "password reset is not available for this identity provider")
	}
	return fn(ctx, email)
}

func (p *Provider) Subscribe(fn func(identity.State)) func() {
	p.lock.Lock()
	id := p.next
	p.next++
	p.subs[id] = fn
	state := p.state
	p.lock.Unlock()

	fn(state)

	return func() {
		p.lock.Lock()
		defer p.lock.Unlock()
		delete(p.subs, id)
	}
}

func (p *Provider) publish(state identity.State) {
	p.lock.Lock()
	p.state = state
	subs := make([]func(identity.State), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.lock.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}
