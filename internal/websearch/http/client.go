package http

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds a whole outbound tool request
const DefaultTimeout = 30 * time.Second

// sharedTransport is shared by the Tavily and GitHub clients so keep-alive
// connections are pooled per host across both
var sharedTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: time.Second,
}

// NewHTTPClient returns a client on the shared transport; a non-positive timeout uses DefaultTimeout
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: sharedTransport,
	}
}
