package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 8 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client

	// OnSessionExpired runs before ErrSessionExpired is returned, so the
	// caller's stored session for that role can be dropped.
	OnSessionExpired func(ctx context.Context, cred Credentials)

	// AssetURL prefixes relative product image paths.
	AssetURL string
	// PaymentReturnURL is where the payment gateway sends the browser back.
	PaymentReturnURL string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 60 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func (c *Client) getJSON(ctx context.Context, cred Credentials, path string, query url.Values, out any) error {
	return c.do(ctx, cred, request{method: http.MethodGet, path: path, query: query}, out)
}

func (c *Client) sendJSON(ctx context.Context, cred Credentials, method, path string, in, out any) error {
	req := request{method: method, path: path}
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		req.body = bytes.NewReader(b)
		req.contentType = "application/json"
	}
	return c.do(ctx, cred, req, out)
}

func (c *Client) sendMultipart(ctx context.Context, cred Credentials, method, path string, fields map[string]string, out any, files ...*File) error {
	body, ct, err := multipartBody(fields, files...)
	if err != nil {
		return err
	}
	return c.do(ctx, cred, request{method: method, path: path, body: body, contentType: ct}, out)
}

func (c *Client) do(ctx context.Context, cred Credentials, r request, out any) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if cred.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request %s: %w: %w", r.path, ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response %s: %w: %w", r.path, ErrNetwork, err)
	}

	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		// non-JSON error pages still carry a usable status
		_ = json.Unmarshal(raw, &env)
	}

	failed := env.Success != nil && !*env.Success
	if resp.StatusCode >= http.StatusBadRequest || failed {
		apiErr := &APIError{Status: resp.StatusCode, Message: env.Message, Path: r.path}
		if resp.StatusCode == http.StatusUnauthorized && tokenRejected(env.Message) && !sessionExempt(r.path) && cred.Authenticated() {
			if c.OnSessionExpired != nil {
				c.OnSessionExpired(ctx, cred)
			}
			return fmt.Errorf("%w: %w", ErrSessionExpired, apiErr)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response %s: %w", r.path, err)
	}
	return nil
}

func pathID(prefix, id, suffix string) string {
	return prefix + url.PathEscape(id) + suffix
}
