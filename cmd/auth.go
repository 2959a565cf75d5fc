package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/favark/favark/internal/server"
	"github.com/favark/favark/internal/services"
	"github.com/favark/favark/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthToken performs the interactive refresh-token bootstrap: local callback
// server, system browser, offline-access consent. Prints a credential bundle
// to paste into the config or deployment secrets.
func (r *Runner) AuthToken(ctx context.Context, cmd *cli.Command) error {
	if r.config.Google.ClientID == "" || r.config.Google.ClientSecret == "" {
		return fmt.Errorf("%w: google client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	conf := services.OAuthConfig(r.config.Google, services.PhotosScope, services.DriveScope)

	token, err := r.doOAuth(conf)
	if err != nil {
		return err
	}

	bundle := map[string]any{
		"refresh_token": token.RefreshToken,
		"client_id":     conf.ClientID,
		"client_secret": conf.ClientSecret,
		"scopes":        conf.Scopes,
	}

	r.logger.Info("refresh token obtained")
	if cmd.Bool("json") {
		return r.writeJSON(bundle, true)
	}
	return r.writePlain("refresh_token: %s\n", token.RefreshToken)
}

// AuthCheck mints an access token from the stored refresh token and verifies
// it carries the Photos and Drive scopes.
func (r *Runner) AuthCheck(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.RequireGoogle(); err != nil {
		return err
	}

	ts := services.TokenSource(ctx, r.config.Google, services.PhotosScope, services.DriveScope)
	if err := services.VerifyScopes(ctx, ts, services.PhotosScope, services.DriveScope); err != nil {
		return err
	}

	r.logger.Info("refresh token valid", "scopes", []string{services.PhotosScope, services.DriveScope})
	return r.writePlain("✓ Refresh token mints access tokens with the required scopes\n")
}

// doOAuth executes the authorization-code flow with a local HTTP server.
func (r *Runner) doOAuth(conf *oauth2.Config) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, err
	}

	redirect, err := url.Parse(conf.RedirectURL)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: invalid redirect_uri %q", shared.ErrInvalidConfig, conf.RedirectURL)
	}

	authURL := conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)

	oauthHandler := server.NewOAuthHandler(conf, state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	srvCtx, stopServer := context.WithCancel(context.Background())
	defer stopServer()

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", redirect.Host)
		serverErrors <- server.Serve(srvCtx, redirect.Host, router)
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Google authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrAuthFailed)
	}

	stopServer()

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}
