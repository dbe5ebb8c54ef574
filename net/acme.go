// Package net provides common HTTP utilities for talking to ACME
// servers.
package net

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime"
	"time"
)

const (
	version       = "0.0.1"
	userAgentBase = "cpu.acmekit"
	locale        = "en-us"

	// DefaultTimeout bounds a single request/response exchange when the
	// caller's context carries no deadline of its own.
	DefaultTimeout = 10 * time.Second
)

// ACMENet is an HTTP client preconfigured for ACME exchanges: optional
// custom trust roots, a request timeout and User-Agent/Accept-Language
// headers on every request.
type ACMENet struct {
	httpClient *http.Client
	timeout    time.Duration
}

// Config holds options for creating an ACMENet.
type Config struct {
	// CABundlePath is an optional file path to one or more PEM encoded CA
	// certificates used as trust roots for HTTPS requests. If empty the
	// system roots are used.
	CABundlePath string
	// Timeout bounds each exchange. Zero means DefaultTimeout.
	Timeout time.Duration
}

// New creates an ACMENet from the given Config.
func New(config Config) (*ACMENet, error) {
	var caBundle *x509.CertPool
	if config.CABundlePath != "" {
		pemBundle, err := os.ReadFile(config.CABundlePath)
		if err != nil {
			return nil, err
		}

		caBundle = x509.NewCertPool()
		caBundle.AppendCertsFromPEM(pemBundle)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &ACMENet{
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					RootCAs: caBundle,
				},
			},
		},
		timeout: timeout,
	}, nil
}

// Close releases idle transport connections.
func (c *ACMENet) Close() {
	c.httpClient.CloseIdleConnections()
}

// NetResponse holds the results from calling Do with an HTTP Request.
type NetResponse struct {
	// The HTTP Response object from making the request.
	Response *http.Response
	// The response body.
	RespBody []byte
	// The response dumped by httputil to a printable form.
	RespDump []byte
	// The request dumped by httputil to a printable form.
	ReqDump []byte
}

// Do performs an HTTP request bounded by the configured timeout (unless
// the context already carries an earlier deadline), returning a pointer
// to a NetResponse instance or an error. User-Agent and Accept-Language
// headers are automatically added to the request. The body of the HTTP
// response is read into the NetResponse and can not be read again.
func (c *ACMENet) Do(ctx context.Context, req *http.Request) (*NetResponse, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.httpRequest(req.WithContext(ctx))
}

func (c *ACMENet) httpRequest(req *http.Request) (*NetResponse, error) {
	ua := fmt.Sprintf("%s %s (%s; %s)",
		userAgentBase, version, runtime.GOOS, runtime.GOARCH)
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept-Language", locale)

	reqDump, err := httputil.DumpRequest(req, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respDump, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &NetResponse{
		Response: resp,
		RespBody: respBody,
		RespDump: respDump,
		ReqDump:  reqDump,
	}, nil
}

// HeadURL performs a HEAD request to the given URL.
func (c *ACMENet) HeadURL(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequest("HEAD", url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Response, nil
}

// PostRequest constructs a POST request to the given URL with the given
// JWS body.
func (c *ACMENet) PostRequest(url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/jose+json")
	return req, nil
}

// PostURL POSTs the given body to the given URL. This is a wrapper
// combining PostRequest and Do.
func (c *ACMENet) PostURL(ctx context.Context, url string, body []byte) (*NetResponse, error) {
	req, err := c.PostRequest(url, body)
	if err != nil {
		return nil, err
	}

	return c.Do(ctx, req)
}

// GetRequest constructs a GET request to the given URL.
func (c *ACMENet) GetRequest(url string) (*http.Request, error) {
	return http.NewRequest("GET", url, nil)
}

// GetURL GETs the given URL. This is a wrapper combining GetRequest and
// Do.
func (c *ACMENet) GetURL(ctx context.Context, url string) (*NetResponse, error) {
	req, err := c.GetRequest(url)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}
