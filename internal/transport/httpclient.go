// Package transport holds the pooled HTTP client shared by the file fetcher
// and the publisher.
package transport

import (
	"net"
	"net/http"
	"time"
)

// SharedHTTPClient returns an HTTP client with connection pooling and bounded
// dial/TLS/header phases. A zero timeout leaves the overall request unbounded,
// so large transfers are limited only by the caller's context.
func SharedHTTPClient(timeout time.Duration) *http.Client {
	headerTimeout := timeout
	if headerTimeout <= 0 {
		headerTimeout = 60 * time.Second
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	client := &http.Client{Transport: transport}
	if timeout > 0 {
		client.Timeout = timeout
	}
	return client
}
