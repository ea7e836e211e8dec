package adapter

import (
	"context"
	"net/http"
	"strings"

	"github.com/obscura-systems/wallet-core/internal/config"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// User is the remote user record.
type User struct {
	Address       string `json:"address"`
	Username      string `json:"username,omitempty"`
	Discriminator string `json:"discriminator,omitempty"`
	Backup        bool   `json:"backup"`
}

// Signer produces a wallet signature over a server challenge. Implemented
// by the key layer so the client never sees key material.
type Signer func(message []byte) (string, error)

// UserClient manages the remote user record and the session bootstrap.
type UserClient interface {
	GetSession(ctx context.Context, address string, sign Signer) (string, error)
	CreateUser(ctx context.Context, cookie string, user *User) error
	GetUser(ctx context.Context, cookie string) (*User, error)
	UpdateUser(ctx context.Context, cookie string, user *User) error
	DeleteUser(ctx context.Context, cookie string) error
	GetUsername(ctx context.Context, cookie, address string) (string, error)
	UpdateBackup(ctx context.Context, cookie string, on bool) error
}

// HTTPUserClient is the HTTP implementation of UserClient.
type HTTPUserClient struct {
	base    string
	client  *http.Client
	service string
}

// NewUserClient builds a client against the remote API base.
func NewUserClient(cfg *config.RemoteConfig) *HTTPUserClient {
	return &HTTPUserClient{
		base:    strings.TrimSuffix(cfg.APIBase, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		service: "user service",
	}
}

type challengeResponse struct {
	Challenge string `json:"challenge"`
}

type sessionRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// GetSession performs the challenge sign-in and returns the session
// cookie value.
func (c *HTTPUserClient) GetSession(ctx context.Context, address string, sign Signer) (string, error) {
	body, err := jsonBody(map[string]string{"address": address})
	if err != nil {
		return "", err
	}
	req, err := newRequest(ctx, http.MethodPost, c.base+"/session/request", body, "")
	if err != nil {
		return "", err
	}
	var challenge challengeResponse
	if err := doJSON(c.client, req, c.service, &challenge); err != nil {
		return "", err
	}
	if challenge.Challenge == "" {
		return "", werr.InvalidData("empty session challenge", "Sign-in failed")
	}

	signature, err := sign([]byte(challenge.Challenge))
	if err != nil {
		return "", err
	}

	body, err = jsonBody(sessionRequest{Address: address, Signature: signature})
	if err != nil {
		return "", err
	}
	req, err = newRequest(ctx, http.MethodPost, c.base+"/session", body, "")
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", transportError(err, c.service)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", werr.FromStatusCode(resp.StatusCode, c.service)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookieName {
			return cookie.Value, nil
		}
	}
	return "", werr.InvalidData("session response missing cookie", "Sign-in failed")
}

// CreateUser registers the wallet on the user service.
func (c *HTTPUserClient) CreateUser(ctx context.Context, cookie string, user *User) error {
	body, err := jsonBody(user)
	if err != nil {
		return err
	}
	req, err := newRequest(ctx, http.MethodPost, c.base+"/user", body, cookie)
	if err != nil {
		return err
	}
	return doJSON(c.client, req, c.service, nil)
}

// GetUser fetches the authenticated user's record.
func (c *HTTPUserClient) GetUser(ctx context.Context, cookie string) (*User, error) {
	req, err := newRequest(ctx, http.MethodGet, c.base+"/user", nil, cookie)
	if err != nil {
		return nil, err
	}
	var user User
	if err := doJSON(c.client, req, c.service, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser replaces the authenticated user's record.
func (c *HTTPUserClient) UpdateUser(ctx context.Context, cookie string, user *User) error {
	body, err := jsonBody(user)
	if err != nil {
		return err
	}
	req, err := newRequest(ctx, http.MethodPut, c.base+"/user", body, cookie)
	if err != nil {
		return err
	}
	return doJSON(c.client, req, c.service, nil)
}

// DeleteUser removes the remote user record. A missing record is not an
// error.
func (c *HTTPUserClient) DeleteUser(ctx context.Context, cookie string) error {
	req, err := newRequest(ctx, http.MethodDelete, c.base+"/user", nil, cookie)
	if err != nil {
		return err
	}
	err = doJSON(c.client, req, c.service, nil)
	if werr.Is(err, werr.KindNotFound) {
		return nil
	}
	return err
}

// GetUsername resolves another wallet's username by address.
func (c *HTTPUserClient) GetUsername(ctx context.Context, cookie, address string) (string, error) {
	req, err := newRequest(ctx, http.MethodGet, c.base+"/username/"+address, nil, cookie)
	if err != nil {
		return "", err
	}
	var username string
	if err := doJSON(c.client, req, c.service, &username); err != nil {
		return "", err
	}
	return username, nil
}

// UpdateBackup toggles the server-side backup flag.
func (c *HTTPUserClient) UpdateBackup(ctx context.Context, cookie string, on bool) error {
	body, err := jsonBody(map[string]bool{"backup": on})
	if err != nil {
		return err
	}
	req, err := newRequest(ctx, http.MethodPut, c.base+"/backup", body, cookie)
	if err != nil {
		return err
	}
	return doJSON(c.client, req, c.service, nil)
}
