package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"searchgateway/internal/logger"
	"searchgateway/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// refreshMargin refreshes the token slightly earlier than strictly
// necessary, to avoid cutting the expiry too close mid-request.
const refreshMargin = 30 * time.Second

// bearerToken is a cached credential for authenticated API calls.
type bearerToken struct {
	token     string
	expiresAt int64 // epoch milliseconds
}

// AuthCache holds one bearer token per datasource instance and refreshes it
// through the relay's auth routes as it nears expiry. Concurrent refreshes
// are coalesced into a single in-flight request.
type AuthCache struct {
	settings *models.Settings
	client   *http.Client
	log      *logger.Logger

	mu    sync.Mutex
	token *bearerToken

	group singleflight.Group
	now   func() time.Time
}

func NewAuthCache(settings *models.Settings, client *http.Client, log *logger.Logger) *AuthCache {
	if client == nil {
		client = http.DefaultClient
	}
	return &AuthCache{
		settings: settings,
		client:   client,
		log:      log,
		now:      time.Now,
	}
}

// AuthorizationHeader returns a "Bearer <token>" header value backed by a
// valid token, refreshing the cache first when the token is missing or
// within the refresh margin of expiring.
func (a *AuthCache) AuthorizationHeader(ctx context.Context) (string, error) {
	if tok := a.cached(); tok != nil {
		return "Bearer " + tok.token, nil
	}

	v, err, _ := a.group.Do("refresh", func() (any, error) {
		// A concurrent caller may have refreshed while we waited on the flight.
		if tok := a.cached(); tok != nil {
			return tok, nil
		}
		tok, err := a.refresh(ctx)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.token = tok
		a.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return "Bearer " + v.(*bearerToken).token, nil
}

// cached returns the current token if it is still comfortably valid.
func (a *AuthCache) cached() *bearerToken {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != nil && a.token.expiresAt > a.now().UnixMilli()+refreshMargin.Milliseconds() {
		return a.token
	}
	return nil
}

// refresh picks the credential exchange flow from the configured org URL:
// cloud-hosted environments use the OAuth client-credentials routes, any
// other URL the local login route.
func (a *AuthCache) refresh(ctx context.Context) (*bearerToken, error) {
	env := a.settings.AuthEnv()
	a.log.Debugw("refreshing bearer token", "env", env)
	if env == models.AuthEnvLocal {
		return a.refreshViaLocalLogin(ctx)
	}
	return a.refreshViaOAuth(ctx, env)
}

// refreshViaOAuth exchanges client credentials for an access token via the
// relay's {env}Auth route. The relay owns the client id/secret; the gateway
// only reads the token and its lifetime from the response.
func (a *AuthCache) refreshViaOAuth(ctx context.Context, env string) (*bearerToken, error) {
	status, body, err := a.postAuth(ctx, env+"Auth")
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	if status != http.StatusOK {
		return nil, &AuthError{Err: fmt.Errorf("unexpected OAuth response, status=%d, body=%s", status, body)}
	}

	var oauthResponse struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &oauthResponse); err != nil {
		return nil, &AuthError{Err: fmt.Errorf("decoding OAuth response: %w", err)}
	}
	if oauthResponse.AccessToken == "" {
		return nil, &AuthError{Err: errors.New("OAuth response carried no access token")}
	}
	return &bearerToken{
		token:     oauthResponse.AccessToken,
		expiresAt: a.now().UnixMilli() + oauthResponse.ExpiresIn*1000,
	}, nil
}

// refreshViaLocalLogin logs in via the relay's localAuth route and reads the
// token's lifetime from its embedded exp claim. No signature verification
// happens here; only the expiration time is extracted.
func (a *AuthCache) refreshViaLocalLogin(ctx context.Context) (*bearerToken, error) {
	status, body, err := a.postAuth(ctx, "localAuth")
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	if status != http.StatusOK {
		return nil, &AuthError{Err: fmt.Errorf("login failed, status=%d, body=%s", status, body)}
	}

	var loginResponse struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &loginResponse); err != nil {
		return nil, &AuthError{Err: fmt.Errorf("decoding login response: %w", err)}
	}
	if loginResponse.Token == "" {
		return nil, &AuthError{Err: errors.New("login response carried no token")}
	}

	expiresAt, err := parseExpFromJWT(loginResponse.Token)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	return &bearerToken{
		token:     loginResponse.Token,
		expiresAt: expiresAt,
	}, nil
}

// postAuth issues the credential exchange POST relative to the org base URL.
func (a *AuthCache) postAuth(ctx context.Context, route string) (int, []byte, error) {
	authURL := strings.TrimRight(a.settings.CriblOrgBaseURL, "/") + "/" + route
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, bytes.NewReader([]byte("{}")))
	if err != nil {
		return 0, nil, fmt.Errorf("creating auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("auth http error: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading auth response: %w", err)
	}
	return res.StatusCode, body, nil
}

// parseExpFromJWT extracts the exp claim from a JWT and returns it as epoch
// milliseconds.
func parseExpFromJWT(jwtString string) (int64, error) {
	token, _, err := new(jwt.Parser).ParseUnverified(jwtString, jwt.MapClaims{})
	if err != nil {
		return -1, fmt.Errorf("parsing JWT: %w", err)
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return -1, fmt.Errorf("JWT carries no usable exp claim: %w", err)
	}
	return exp.UnixMilli(), nil
}
