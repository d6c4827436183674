// Package client talks to the gateway's /auth and /mini-app endpoints on
// behalf of the Mini App core and the dashboard.
package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/pkg/errors"

	"github.com/spec-kit/botadmin/internal/api/dto"
	"github.com/spec-kit/botadmin/internal/domain"
	"github.com/spec-kit/botadmin/internal/miniapp/rolegate"
)

const defaultTimeout = 15 * time.Second

// Client is an HTTP client for the gateway. The dashboard session cookie is
// kept in a cookie jar; the Mini App token is sent as a bearer token.
type Client struct {
	*baseClient
	noRedirect *http.Client
}

// New returns a client for the gateway at apiAddress.
func New(apiAddress string) *Client {
	jar, _ := cookiejar.New(nil)
	httpClient := &http.Client{Timeout: defaultTimeout, Jar: jar}
	return &Client{
		baseClient: &baseClient{apiAddress: apiAddress, httpClient: httpClient},
		noRedirect: &http.Client{
			Timeout: defaultTimeout,
			Jar:     jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.setToken(token)
}

// CheckAuth reports whether the dashboard session cookie is valid.
func (c *Client) CheckAuth(ctx context.Context) (bool, *rolegate.User, error) {
	var resp dto.AuthCheckResponse
	if err := c.executeAPIRequest(ctx, apiRequest{
		method:  http.MethodGet,
		path:    "auth/check",
		respObj: &resp,
	}); err != nil {
		return false, nil, err
	}
	if !resp.Authenticated || resp.User == nil {
		return false, nil, nil
	}
	return true, &rolegate.User{
		ID:       resp.User.ID,
		Username: resp.User.Username,
		Role:     domain.Role(resp.User.Role),
	}, nil
}

// Login posts the dashboard credentials as a multipart form. A 401 comes
// back as *ErrAuthentication and a 429 as *ErrTooManyRequests.
func (c *Client) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fields := []struct{ name, value string }{
		{"username", req.Username},
		{"password", req.Password},
		{"fingerprint", req.Fingerprint},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, errors.Wrap(err, "error writing login form")
		}
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "error closing login form")
	}

	var resp dto.LoginResponse
	if err := c.executeAPIRequest(ctx, apiRequest{
		method:     http.MethodPost,
		path:       "auth/login",
		headers:    map[string]string{"Content-Type": w.FormDataContentType()},
		reqBodyObj: body,
		respObj:    &resp,
	}); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout ends the dashboard session.
func (c *Client) Logout(ctx context.Context) error {
	return c.executeAPIRequest(ctx, apiRequest{
		method: http.MethodPost,
		path:   "auth/logout",
	})
}

// VerifyUser sends the Mini App init data for verification.
func (c *Client) VerifyUser(ctx context.Context, initData string) (*dto.VerifyUserResponse, error) {
	var resp dto.VerifyUserResponse
	if err := c.executeAPIRequest(ctx, apiRequest{
		method:     http.MethodPost,
		path:       "mini-app/verify-user",
		reqBodyObj: dto.VerifyUserRequest{InitData: initData},
		respObj:    &resp,
	}); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchUsers runs a user search.
func (c *Client) SearchUsers(ctx context.Context, req dto.SearchUsersRequest) (*dto.SearchUsersResponse, error) {
	var resp dto.SearchUsersResponse
	if err := c.executeAPIRequest(ctx, apiRequest{
		method:     http.MethodPost,
		path:       "mini-app/search-users",
		reqBodyObj: req,
		respObj:    &resp,
	}); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UserPhotoURL resolves the photo redirect for a Telegram user without
// following it.
func (c *Client) UserPhotoURL(ctx context.Context, userID int64) (string, error) {
	photoClient := &baseClient{apiAddress: c.apiAddress, httpClient: c.noRedirect}
	photoClient.setToken(c.token())
	resp, err := photoClient.submitAPIRequest(ctx, apiRequest{
		method:      http.MethodGet,
		path:        fmt.Sprintf("mini-app/user-photo/%d", userID),
		successCode: http.StatusFound,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	location := resp.Header.Get("Location")
	if location == "" {
		return "", errors.New("photo redirect without location")
	}
	return location, nil
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiToken
}
