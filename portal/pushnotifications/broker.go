// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package pushnotifications

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// ErrBroker represents errors from the access token broker.
var ErrBroker = errs.Class("token broker")

const (
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	messagingScope  = "https://www.googleapis.com/auth/firebase.messaging"
	jwtBearerGrant  = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionExpiry = time.Hour
	exchangeTimeout = 30 * time.Second
)

// BrokerConfig contains the push provider service account credentials.
type BrokerConfig struct {
	ClientEmail string `help:"service account client email" default:""`
	PrivateKey  string `help:"service account RSA private key, PKCS8 PEM" default:""`
	ProjectID   string `help:"push provider project id" default:""`
	TokenURL    string `help:"OAuth token endpoint" default:"https://oauth2.googleapis.com/token"`
}

// Broker obtains short-lived bearer tokens for the push provider's
// per-project send endpoint by exchanging a signed service-account JWT
// assertion. It holds no state between calls.
type Broker struct {
	log    *zap.Logger
	client *http.Client
	config BrokerConfig
}

// NewBroker creates a new access token broker.
func NewBroker(log *zap.Logger, config BrokerConfig) *Broker {
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
	}
	return &Broker{
		log:    log,
		client: &http.Client{Timeout: exchangeTimeout},
		config: config,
	}
}

// ProjectID returns the configured push provider project id.
func (b *Broker) ProjectID() string { return b.config.ProjectID }

// Token builds an RS256 service-account assertion, exchanges it at the
// provider's OAuth endpoint and returns the resulting bearer token.
func (b *Broker) Token(ctx context.Context) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	if b.config.ClientEmail == "" || b.config.PrivateKey == "" || b.config.ProjectID == "" {
		return "", ErrBroker.New("service account credentials not configured")
	}

	key, err := parsePrivateKey(b.config.PrivateKey)
	if err != nil {
		return "", ErrBroker.Wrap(err)
	}

	now := time.Now()
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   b.config.ClientEmail,
		"scope": messagingScope,
		"aud":   b.config.TokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionExpiry).Unix(),
	}).SignedString(key)
	if err != nil {
		return "", ErrBroker.New("failed to sign assertion: %v", err)
	}

	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", ErrBroker.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", ErrBroker.Wrap(err)
	}
	defer func() { err = errs.Combine(err, resp.Body.Close()) }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", ErrBroker.Wrap(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", ErrBroker.New("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", ErrBroker.Wrap(err)
	}
	if tokenResp.AccessToken == "" {
		return "", ErrBroker.New("token exchange returned no access token")
	}

	return tokenResp.AccessToken, nil
}

// parsePrivateKey decodes a PKCS8 PEM RSA key. Keys arriving through
// environment configuration often carry literal  \n  escapes and stray
// indentation, so those are normalized before decoding.
func parsePrivateKey(raw string) (*rsa.PrivateKey, error) {
	normalized := strings.ReplaceAll(raw, `\n`, "\n")

	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	normalized = strings.TrimSpace(strings.Join(lines, "\n"))

	block, _ := pem.Decode([]byte(normalized))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in private key")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKCS8 private key: %w", err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not an RSA key")
	}
	return key, nil
}
