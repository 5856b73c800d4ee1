package lexrag

import (
	"net/http"
	"time"
)

// Option configures the Client.
type Option interface {
	apply(*Client)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*Client)

func (f optionFunc) apply(c *Client) { f(c) }

// WithHTTPClient replaces the underlying HTTP client, e.g. to set timeouts
// or a custom transport.
func WithHTTPClient(h *http.Client) Option {
	return optionFunc(func(c *Client) {
		if h != nil {
			c.http = h
		}
	})
}

// WithTimeout sets a per-request timeout. It copies the current HTTP client
// so a shared default client is never mutated.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	})
}
