package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/torosent/pacefire/internal/config"
	"github.com/torosent/pacefire/internal/executor"
)

// maxDrainBytes bounds how much of a response body is read before the
// connection is returned to the pool.
const maxDrainBytes = 4 << 20

// BuildSpec converts a configuration into the request issued on every tick.
func BuildSpec(cfg *config.Config) (executor.RequestSpec, error) {
	if cfg == nil {
		return executor.RequestSpec{}, errors.New("config cannot be nil")
	}

	target := strings.TrimSpace(cfg.TargetURL)
	if target == "" {
		return executor.RequestSpec{}, errors.New("target URL is required")
	}

	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}

	body, err := LoadBody(cfg)
	if err != nil {
		return executor.RequestSpec{}, err
	}

	headers := make(map[string]string, len(cfg.Headers))
	for key, value := range cfg.Headers {
		if strings.ContainsAny(key, "\r\n") {
			return executor.RequestSpec{}, fmt.Errorf("invalid header key %q", key)
		}
		trimmedKey := strings.TrimSpace(key)
		if !httpguts.ValidHeaderFieldName(trimmedKey) {
			return executor.RequestSpec{}, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return executor.RequestSpec{}, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		headers[canonicalKey] = value
	}

	return executor.RequestSpec{
		URL:     target,
		Method:  method,
		Headers: headers,
		Body:    body,
	}, nil
}

// Transport issues requests over a shared *http.Client.
type Transport struct {
	client *http.Client
}

// NewTransport wraps client. A nil client gets NewClient's defaults with no timeout.
func NewTransport(client *http.Client) *Transport {
	if client == nil {
		client = NewClient(0)
	}
	return &Transport{client: client}
}

// Do sends one request and returns its status code. Any response, whatever
// its status, is reported with a nil error.
func (t *Transport) Do(ctx context.Context, method, target string, headers map[string]string, body []byte) (int, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if len(body) > 0 {
		req.ContentLength = int64(len(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	return resp.StatusCode, nil
}

// NewClient returns an *http.Client tuned for issuing many concurrent requests
// to a single host. A timeout of zero disables the per-request deadline.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   256,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
