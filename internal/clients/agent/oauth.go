package agent

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// tokenExpirySlack refreshes tokens slightly before they expire.
const tokenExpirySlack = 30 * time.Second

// TokenSource acquires and caches OAuth access tokens for the agent backend
// using the JWT bearer assertion grant.
type TokenSource struct {
	tokenURL   string
	clientID   string
	audience   string
	key        *rsa.PrivateKey
	httpClient *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewTokenSource(tokenURL, clientID, audience string, privateKeyPEM []byte) (*TokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse agent private key: %w", err)
	}
	return &TokenSource{
		tokenURL:   tokenURL,
		clientID:   clientID,
		audience:   audience,
		key:        key,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Token returns a cached access token, fetching a new one when the cached
// token is missing or about to expire.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Now().Before(t.expiry.Add(-tokenExpirySlack)) {
		return t.token, nil
	}

	assertion, err := t.signAssertion()
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned an empty access token")
	}

	t.token = payload.AccessToken
	t.expiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return t.token, nil
}

func (t *TokenSource) signAssertion() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    t.clientID,
		Subject:   t.clientID,
		Audience:  jwt.ClaimStrings{t.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}
	return signed, nil
}
