package client

import (
	"context"
	"fmt"
	"net/http"

	v2 "github.com/tower-qa/tower-qa/api/v2"
	"github.com/tower-qa/tower-qa/internal/models"
)

// Ping needs no credentials.
func (c *Client) Ping(ctx context.Context) (*v2.Ping, error) {
	var p v2.Ping
	if err := c.do(ctx, http.MethodGet, "/ping/", nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Me returns the user the client authenticates as.
func (c *Client) Me(ctx context.Context) (*v2.User, error) {
	var page v2.Page[v2.User]
	if err := c.do(ctx, http.MethodGet, "/me/", nil, nil, &page); err != nil {
		return nil, err
	}
	if len(page.Results) == 0 {
		return nil, fmt.Errorf("/me/ returned no user")
	}
	return &page.Results[0], nil
}

// LicenseInfo returns the installed license, or nil when there is none.
func (c *Client) LicenseInfo(ctx context.Context) (*models.LicenseInfo, error) {
	var cfg v2.Config
	if err := c.do(ctx, http.MethodGet, "/config/", nil, nil, &cfg); err != nil {
		return nil, err
	}
	if cfg.LicenseInfo == nil {
		return nil, nil
	}
	info := cfg.LicenseInfo.ToModel()
	return &info, nil
}

func (c *Client) InstallLicense(ctx context.Context, l models.License) (*models.LicenseInfo, error) {
	var cfg v2.Config
	if err := c.do(ctx, http.MethodPost, "/config/", nil, l, &cfg); err != nil {
		return nil, err
	}
	if cfg.LicenseInfo == nil {
		return nil, fmt.Errorf("controller accepted the license but reports none installed")
	}
	info := cfg.LicenseInfo.ToModel()
	return &info, nil
}

func (c *Client) DeleteLicense(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/config/", nil, nil, nil)
}

// CreateToken issues a personal access token for the current user. scope is
// read or write; empty means write.
func (c *Client) CreateToken(ctx context.Context, scope string) (string, error) {
	body := map[string]any{}
	if scope != "" {
		body["scope"] = scope
	}
	var t v2.Token
	if err := c.do(ctx, http.MethodPost, "/tokens/", nil, body, &t); err != nil {
		return "", err
	}
	return t.Token, nil
}
