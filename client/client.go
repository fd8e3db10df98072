// Package client implements the session.API contract against a
// GoTrue-compatible auth server: /signup, /token, /logout, /user,
// /authorize, /callback and the /admin/users surface.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-session"
)

// Client is the HTTP implementation of session.API and session.AdminAPI.
type Client struct {
	baseURL     string
	redirectURL string
	httpClient  *http.Client
}

var (
	_ session.API      = (*Client)(nil)
	_ session.AdminAPI = (*Client)(nil)
)

// New creates a client. BaseURL is required.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, goerrors.New("auth base URL is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		redirectURL: cfg.RedirectURL,
		httpClient:  cfg.httpClient(),
	}, nil
}

type signupRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     signupMetadata `json:"data"`
}

type signupMetadata struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Signup implements session.API.
func (c *Client) Signup(ctx context.Context, data session.SignupData) (*session.TokenPair, error) {
	body := signupRequest{
		Email:    data.Email,
		Password: data.Password,
		Data: signupMetadata{
			FirstName: data.FirstName,
			LastName:  data.LastName,
		},
	}

	tokens := &session.TokenPair{}
	if err := c.do(ctx, http.MethodPost, "/signup", "", body, tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// Login implements session.API using the password grant.
func (c *Client) Login(ctx context.Context, creds session.Credentials) (*session.TokenPair, error) {
	tokens := &session.TokenPair{}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", creds, tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// Logout implements session.API. Revocation is best effort server-side.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

// User implements session.API.
func (c *Client) User(ctx context.Context, accessToken string) (*session.User, error) {
	user := &session.User{}
	if err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, user); err != nil {
		return nil, err
	}
	return user, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshToken implements session.API using the refresh grant.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*session.TokenPair, error) {
	tokens := &session.TokenPair{}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", refreshRequest{RefreshToken: refreshToken}, tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// AuthorizeURL implements session.API. The server proxies the provider
// flow, so this only builds the local authorize URL. Pure, no network.
func (c *Client) AuthorizeURL(provider string) string {
	params := url.Values{
		"provider": {provider},
	}
	if c.redirectURL != "" {
		params.Set("redirect_to", c.redirectURL)
	}
	return c.baseURL + "/authorize?" + params.Encode()
}

type exchangeRequest struct {
	Code     string `json:"code"`
	Provider string `json:"provider,omitempty"`
}

// ExchangeCode implements session.API, trading an authorization code for a
// token pair.
func (c *Client) ExchangeCode(ctx context.Context, code, provider string) (*session.TokenPair, error) {
	tokens := &session.TokenPair{}
	if err := c.do(ctx, http.MethodPost, "/callback", "", exchangeRequest{Code: code, Provider: provider}, tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// Users implements session.AdminAPI.
func (c *Client) Users(ctx context.Context, accessToken string) ([]*session.AdminUser, error) {
	users := []*session.AdminUser{}
	if err := c.do(ctx, http.MethodGet, "/admin/users", accessToken, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser implements session.AdminAPI.
func (c *Client) UpdateUser(ctx context.Context, id string, patch session.UserPatch, accessToken string) (*session.User, error) {
	user := &session.User{}
	path := "/admin/users/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPut, path, accessToken, patch, user); err != nil {
		return nil, err
	}
	return user, nil
}

type apiError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Message     string `json:"msg"`
}

func (e apiError) text() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Error != "" {
		return e.Error
	}
	if e.Message != "" {
		return e.Message
	}
	return "unknown error"
}

func (c *Client) do(ctx context.Context, method, path, accessToken string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}

	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return session.ErrNetwork.Clone().WithMetadata(map[string]any{
			"cause": err.Error(),
		})
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return c.decodeError(res)
	}

	if out == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to decode response").
			WithTextCode(session.TextCodeNetwork)
	}

	return nil
}

// decodeError maps the GoTrue error payload {error, error_description, msg}
// to the session taxonomy: credential-shaped rejections become
// authentication failures, everything else keeps the HTTP status.
func (c *Client) decodeError(res *http.Response) error {
	payload := apiError{}
	description := ""

	if strings.Contains(res.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(res.Body).Decode(&payload); err == nil {
			description = payload.text()
		}
	}
	if description == "" {
		description = fmt.Sprintf("HTTP %d: %s", res.StatusCode, http.StatusText(res.StatusCode))
	}

	switch res.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return goerrors.New(description, goerrors.CategoryAuth).
			WithTextCode(session.TextCodeAuthFailed).
			WithCode(goerrors.CodeUnauthorized).
			WithMetadata(map[string]any{
				"status": res.StatusCode,
			})
	default:
		return session.ErrNetwork.Clone().WithMetadata(map[string]any{
			"status":      res.StatusCode,
			"description": description,
		})
	}
}
