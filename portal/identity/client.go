// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

// Package identity implements a client for the auth provider's admin
// API. All calls authenticate with the service-role key, since account
// provisioning must create and delete identities across all users.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/parentlink/parentlink/portal/provisioning"
)

var mon = monkit.Package()

// Error represents errors from the identity admin client.
var Error = errs.Class("identity")

// ensures that Client implements provisioning.Identities.
var _ provisioning.Identities = (*Client)(nil)

// Config contains auth provider admin API settings.
type Config struct {
	URL            string `help:"auth provider base URL" default:""`
	ServiceRoleKey string `help:"service-role key with admin privilege" default:""`
}

// Client talks to the auth provider's admin endpoints.
type Client struct {
	log    *zap.Logger
	client *http.Client
	config Config
}

// NewClient creates a new identity admin client.
func NewClient(log *zap.Logger, config Config) *Client {
	config.URL = strings.TrimRight(config.URL, "/")
	return &Client{
		log:    log,
		client: &http.Client{Timeout: 30 * time.Second},
		config: config,
	}
}

// CreateUser creates a pre-confirmed auth identity carrying the parent's
// username and role metadata, and returns the new identity's id.
func (c *Client) CreateUser(ctx context.Context, identity provisioning.NewIdentity) (_ uuid.UUID, err error) {
	defer mon.Task()(&ctx)(&err)

	if c.config.URL == "" || c.config.ServiceRoleKey == "" {
		return uuid.Nil, Error.New("admin API is not configured")
	}

	body, err := json.Marshal(map[string]interface{}{
		"email":         identity.Email,
		"password":      identity.Password,
		"email_confirm": true,
		"user_metadata": map[string]string{
			"name":     identity.Name,
			"username": identity.Username,
			"role":     identity.Role,
		},
	})
	if err != nil {
		return uuid.Nil, Error.Wrap(err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/admin/users", bytes.NewReader(body))
	if err != nil {
		return uuid.Nil, Error.Wrap(err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return uuid.Nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, resp.Body.Close()) }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return uuid.Nil, Error.Wrap(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return uuid.Nil, Error.New("%s", providerError(resp.StatusCode, respBody))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return uuid.Nil, Error.Wrap(err)
	}
	id, err := uuid.Parse(created.ID)
	if err != nil {
		return uuid.Nil, Error.New("provider returned an invalid user id: %v", err)
	}
	return id, nil
}

// DeleteUser removes an auth identity.
func (c *Client) DeleteUser(ctx context.Context, id uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	req, err := c.newRequest(ctx, http.MethodDelete, "/auth/v1/admin/users/"+id.String(), nil)
	if err != nil {
		return Error.Wrap(err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, resp.Body.Close()) }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return Error.New("%s", providerError(resp.StatusCode, respBody))
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.URL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.ServiceRoleKey)
	req.Header.Set("apikey", c.config.ServiceRoleKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// providerError extracts the provider's error message so it can be
// reported verbatim, falling back to the raw body.
func providerError(status int, body []byte) string {
	var parsed struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.Msg != "":
			return parsed.Msg
		case parsed.Message != "":
			return parsed.Message
		case parsed.Error != "":
			return parsed.Error
		}
	}
	return fmt.Sprintf("admin API request failed with status %d: %s", status, string(body))
}
