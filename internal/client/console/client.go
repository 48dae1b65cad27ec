// Package console implements the interactive admin console: an HTTP client
// for the admin API that keeps the session cookie, terminal prompts and the
// command shell.
package console

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/models"
)

// APIError is a non-2xx answer of the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// Is maps 401 onto common.ErrUnauthenticated and 404 onto common.ErrNotFound.
func (e *APIError) Is(target error) bool {
	switch target {
	case common.ErrUnauthenticated:
		return e.Status == http.StatusUnauthorized
	case common.ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// Policy is the inactivity policy announced by the server.
type Policy struct {
	InactivityTimeoutSeconds int    `json:"inactivityTimeoutSeconds"`
	WarningSeconds           int    `json:"warningSeconds"`
	CookieName               string `json:"cookieName"`
}

// Timeout returns the inactivity timeout as a duration.
func (p Policy) Timeout() time.Duration {
	return time.Duration(p.InactivityTimeoutSeconds) * time.Second
}

// Warning returns the warning window as a duration.
func (p Policy) Warning() time.Duration {
	return time.Duration(p.WarningSeconds) * time.Second
}

// DishInput is the body of a dish create request.
type DishInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	CategoryID  string `json:"categoryId"`
	SortOrder   int    `json:"sortOrder"`
}

// MenuItemInput is the body of a menu item create request.
type MenuItemInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Section     string  `json:"section"`
	Available   bool    `json:"available"`
}

// Client talks to the admin API. The session cookie lives in its jar.
type Client struct {
	baseURL string
	http    *http.Client
}

// LoadCAPool reads a PEM bundle of trusted roots.
func LoadCAPool(caFile string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA cert")
	}
	return pool, nil
}

// NewClient creates a client for baseURL. When caFile is set the server
// certificate must chain to it.
func NewClient(baseURL, caFile string, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if caFile != "" {
		pool, err := LoadCAPool(caFile)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: transport, Jar: jar, Timeout: timeout},
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&msg)
		return &APIError{Status: resp.StatusCode, Message: msg.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*models.UserSummary, error) {
	var res struct {
		User models.UserSummary `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Session returns the user of the current session.
func (c *Client) Session(ctx context.Context) (*models.UserSummary, error) {
	var res struct {
		User models.UserSummary `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, &res); err != nil {
		return nil, err
	}
	return &res.User, nil
}

func (c *Client) Policy(ctx context.Context) (*Policy, error) {
	var p Policy
	if err := c.do(ctx, http.MethodGet, "/api/auth/policy", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Dishes(ctx context.Context) ([]models.Dish, error) {
	var list []models.Dish
	err := c.do(ctx, http.MethodGet, "/api/admin/dishes", nil, &list)
	return list, err
}

func (c *Client) CreateDish(ctx context.Context, in DishInput) (*models.Dish, error) {
	var d models.Dish
	if err := c.do(ctx, http.MethodPost, "/api/admin/dishes", in, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) DeleteDish(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/dishes/"+url.PathEscape(id), nil, nil)
}

func (c *Client) MenuItems(ctx context.Context) ([]models.MenuItem, error) {
	var list []models.MenuItem
	err := c.do(ctx, http.MethodGet, "/api/admin/menu-items", nil, &list)
	return list, err
}

func (c *Client) CreateMenuItem(ctx context.Context, in MenuItemInput) (*models.MenuItem, error) {
	var m models.MenuItem
	if err := c.do(ctx, http.MethodPost, "/api/admin/menu-items", in, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) DeleteMenuItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/menu-items/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	var list []models.Category
	err := c.do(ctx, http.MethodGet, "/api/admin/categories", nil, &list)
	return list, err
}

func (c *Client) Settings(ctx context.Context) ([]models.Setting, error) {
	var list []models.Setting
	err := c.do(ctx, http.MethodGet, "/api/admin/settings", nil, &list)
	return list, err
}

func (c *Client) SetSetting(ctx context.Context, key, value string) (*models.Setting, error) {
	var s models.Setting
	err := c.do(ctx, http.MethodPut, "/api/admin/settings/"+url.PathEscape(key), map[string]string{"value": value}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
