// Package api talks to the Pocket Ark server's client endpoints:
// server lookup, login and account creation. A successful lookup plus
// login yields the ConnectionTarget and token the local services
// proxy for.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PocketRelay/PocketArkClient/internal/proto"
	"github.com/PocketRelay/PocketArkClient/internal/session"
)

// ErrNotArkServer indicates the details response did not identify a
// Pocket Ark server.
var ErrNotArkServer = errors.New("host did not identify as a Pocket Ark server")

// Client performs the lookup/auth calls. Upstream certificates are
// not verified; community servers are routinely self-signed and the
// game tolerates it, so the client does too.
type Client struct {
	http *http.Client
}

func NewClient() *Client {
	return &Client{
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
		},
	}
}

// serverDetails is the subset of the details response this client
// needs; everything else the server includes is ignored.
type serverDetails struct {
	Ident   string `json:"ident"`
	Version string `json:"version"`
}

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Reason string `json:"reason"`
}

// Lookup probes host's details endpoint and resolves the connection
// target from the final URL of the response, so redirects (http to
// https, load balancers) settle the scheme, host and port.
func (c *Client) Lookup(ctx context.Context, host string) (session.Target, error) {
	base := host
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	base = strings.TrimSuffix(base, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+proto.DetailsEndpoint, nil)
	if err != nil {
		return session.Target{}, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return session.Target{}, fmt.Errorf("connect to server: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return session.Target{}, fmt.Errorf("server responded with status %d", res.StatusCode)
	}

	var details serverDetails
	if err := json.NewDecoder(res.Body).Decode(&details); err != nil {
		return session.Target{}, fmt.Errorf("invalid server response: %w", err)
	}
	if details.Ident == "" {
		return session.Target{}, ErrNotArkServer
	}

	final := res.Request.URL
	port := final.Port()
	target := session.Target{
		Scheme:  final.Scheme,
		Host:    final.Hostname(),
		Version: details.Version,
	}
	switch {
	case port != "":
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err != nil {
			return session.Target{}, fmt.Errorf("invalid port in server url: %q", port)
		}
		target.Port = uint16(p)
	case final.Scheme == "https":
		target.Port = 443
	default:
		target.Port = 80
	}
	return target, nil
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, target session.Target, username, password string) (string, error) {
	return c.auth(ctx, target.URL(proto.LoginEndpoint), username, password)
}

// CreateAccount registers a new account and returns its session token.
func (c *Client) CreateAccount(ctx context.Context, target session.Target, username, password string) (string, error) {
	return c.auth(ctx, target.URL(proto.CreateEndpoint), username, password)
}

func (c *Client) auth(ctx context.Context, url, username, password string) (string, error) {
	payload, err := json.Marshal(authRequest{Username: username, Password: password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("connect to server: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var failure errorResponse
		if err := json.NewDecoder(res.Body).Decode(&failure); err != nil || failure.Reason == "" {
			return "", fmt.Errorf("server rejected request with status %d", res.StatusCode)
		}
		return "", errors.New(failure.Reason)
	}

	var auth authResponse
	if err := json.NewDecoder(res.Body).Decode(&auth); err != nil {
		return "", fmt.Errorf("invalid server response: %w", err)
	}
	if auth.Token == "" {
		return "", errors.New("server response missing token")
	}
	return auth.Token, nil
}
