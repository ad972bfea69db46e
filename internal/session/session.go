// Package session holds the shared connection state: which remote
// Pocket Ark server is currently selected and the auth token obtained
// for it. Every local service reads a snapshot of this state per
// request; the lookup/login flow and disconnect are the only writers.
package session

import (
	"fmt"
	"strconv"
	"sync"
)

// Target describes the remote server a successful lookup resolved.
type Target struct {
	// Scheme is "http" or "https".
	Scheme string
	// Host is the resolved hostname or IP.
	Host string
	// Port is the remote HTTP(S) port.
	Port uint16
	// Version is the server-reported version, informational only.
	Version string
}

// URL builds an absolute URL on the target for the given path. The
// path must start with a slash.
func (t Target) URL(path string) string {
	return fmt.Sprintf("%s://%s%s", t.Scheme, t.Addr(), path)
}

// Addr returns host:port.
func (t Target) Addr() string {
	return t.Host + ":" + strconv.Itoa(int(t.Port))
}

// Context is the process-wide pairing of an optional Target and an
// optional auth token. Reads take the shared lock so many in-flight
// requests can snapshot concurrently; writes are exclusive, so a
// reader never observes a half-updated pair.
type Context struct {
	mu     sync.RWMutex
	target *Target
	token  string
}

func NewContext() *Context {
	return &Context{}
}

// SetTarget atomically replaces the current target.
func (c *Context) SetTarget(t Target) {
	c.mu.Lock()
	c.target = &t
	c.mu.Unlock()
}

// Target returns a snapshot of the current target, or false when no
// lookup has completed.
func (c *Context) Target() (Target, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.target == nil {
		return Target{}, false
	}
	return *c.target, true
}

// SetToken stores the bearer token obtained from login or account
// creation.
func (c *Context) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current auth token, or false when not logged in.
// Absence is a normal state; callers either omit the auth header or
// refuse the request.
func (c *Context) Token() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.token != ""
}

// Clear drops both target and token, used on disconnect.
func (c *Context) Clear() {
	c.mu.Lock()
	c.target = nil
	c.token = ""
	c.mu.Unlock()
}
