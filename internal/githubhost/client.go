// Package githubhost is the GitHub hosting adapter: it authenticates as
// a GitHub App, fetches commit and build-config data, posts commit
// statuses and PR comments, and turns inbound webhooks into the event
// types internal/dispatch knows how to act on.
package githubhost

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/go-github/v60/github"
)

// tokenExpiryMargin is subtracted from GitHub's reported token
// expiry so a token is never used right at the edge of going stale.
const tokenExpiryMargin = 2 * time.Minute

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// Client authenticates as a GitHub App and hands out installation
// clients scoped to a single repository, caching both the
// installation ID lookup and the short-lived installation access
// token the way the app-auth flow requires.
type Client struct {
	appID           int64
	privateKey      []byte
	installationIDs sync.Map // "owner/repo" -> installation ID
	tokens          sync.Map // "owner/repo" -> cachedToken
}

// NewClient builds a Client from a GitHub App ID and its PEM-encoded
// private key.
func NewClient(appID int64, privateKey []byte) *Client {
	return &Client{appID: appID, privateKey: privateKey}
}

// EvictExpiredTokens drops cached installation tokens past their
// expiry, intended to be run on a schedule (cmd/kaminod wires it to
// robfig/cron) rather than left to grow forever.
func (c *Client) EvictExpiredTokens() {
	now := time.Now()
	c.tokens.Range(func(key, value any) bool {
		if now.After(value.(cachedToken).expiresAt) {
			c.tokens.Delete(key)
		}
		return true
	})
}

func (c *Client) createJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		Issuer:    fmt.Sprintf("%d", c.appID),
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("parse app private key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(key)
}

// installationClient returns a *github.Client authenticated as the
// installation covering owner/repo, minting and caching an
// installation access token along the way.
func (c *Client) installationClient(ctx context.Context, owner, repo string) (*github.Client, error) {
	fullName := owner + "/" + repo

	var installationID int64
	if cached, ok := c.installationIDs.Load(fullName); ok {
		installationID = cached.(int64)
	} else {
		jwtToken, err := c.createJWT()
		if err != nil {
			return nil, err
		}
		appClient := github.NewClient(&http.Client{Transport: &bearerTransport{token: jwtToken}})

		installation, _, err := appClient.Apps.FindRepositoryInstallation(ctx, owner, repo)
		if err != nil {
			return nil, fmt.Errorf("find installation for %s: %w", fullName, err)
		}
		installationID = installation.GetID()
		c.installationIDs.Store(fullName, installationID)
	}

	if cached, ok := c.tokens.Load(fullName); ok {
		ct := cached.(cachedToken)
		if time.Now().Before(ct.expiresAt) {
			return github.NewClient(&http.Client{Transport: &bearerTransport{token: ct.token}}), nil
		}
	}

	jwtToken, err := c.createJWT()
	if err != nil {
		return nil, err
	}
	appClient := github.NewClient(&http.Client{Transport: &bearerTransport{token: jwtToken}})

	token, _, err := appClient.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return nil, fmt.Errorf("create installation token: %w", err)
	}

	c.tokens.Store(fullName, cachedToken{
		token:     token.GetToken(),
		expiresAt: token.GetExpiresAt().Time.Add(-tokenExpiryMargin),
	})

	return github.NewClient(&http.Client{Transport: &bearerTransport{token: token.GetToken()}}), nil
}

type bearerTransport struct {
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	return http.DefaultTransport.RoundTrip(req)
}
