package azdo_http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/davarch/pipedash/internal/domain"
)

const apiVersion = "7.1"

// Factory hands out per-organization clients sharing one HTTP transport.
type Factory struct {
	baseUrl      string
	defaultToken string
	hc           *http.Client
	retryFor     time.Duration
}

func NewFactory(baseUrl, defaultToken string, timeout time.Duration) *Factory {
	tr := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Factory{
		baseUrl:      trimSlash(baseUrl),
		defaultToken: defaultToken,
		hc:           &http.Client{Transport: tr, Timeout: timeout},
		retryFor:     5 * time.Second,
	}
}

// Platform uses creds.Token, falling back to the configured token.
func (f *Factory) Platform(creds domain.Credentials, organization string) (domain.Platform, error) {
	token := creds.Token
	if token == "" {
		token = f.defaultToken
	}
	if token == "" {
		return nil, fmt.Errorf("no access token: %w", domain.ErrUnauthorized)
	}
	if strings.TrimSpace(organization) == "" {
		return nil, fmt.Errorf("organization is required")
	}

	return &Client{
		baseUrl:  f.baseUrl,
		org:      organization,
		token:    token,
		hc:       f.hc,
		retryFor: f.retryFor,
	}, nil
}

type Client struct {
	baseUrl  string
	org      string
	token    string
	hc       *http.Client
	retryFor time.Duration
}

func (c *Client) orgURL() string {
	return c.baseUrl + "/" + url.PathEscape(c.org)
}

func (c *Client) projectAPI(project, path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	q.Set("api-version", apiVersion)
	return c.orgURL() + "/" + url.PathEscape(project) + "/_apis/" + path + "?" + q.Encode()
}

func (c *Client) getJSON(ctx context.Context, u string, out any) (http.Header, error) {
	var hdr http.Header
	err := c.do(ctx, u, "application/json", func(resp *http.Response) error {
		hdr = resp.Header
		return json.NewDecoder(resp.Body).Decode(out)
	})
	return hdr, err
}

func (c *Client) getText(ctx context.Context, u string) (string, error) {
	var out string
	err := c.do(ctx, u, "text/plain", func(resp *http.Response) error {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		out = string(b)
		return nil
	})
	return out, err
}

// do retries transient failures (transport errors, 429, 5xx) with exponential
// backoff. Other non-2xx answers are returned at once.
func (c *Client) do(ctx context.Context, u, accept string, decode func(*http.Response) error) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.SetBasicAuth("", c.token)
		req.Header.Set("Accept", accept)

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}

		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusTooManyRequests {
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if sec, _ := strconv.Atoi(ra); sec > 0 {
					select {
					case <-time.After(time.Duration(sec) * time.Second):
					case <-ctx.Done():
						return backoff.Permanent(ctx.Err())
					}
					return fmt.Errorf("retry after due to 429")
				}
			}

			return fmt.Errorf("azure devops 429")
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("azure devops %s", resp.Status)
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("azure devops %s: %w", resp.Status, domain.ErrNotFound))
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNonAuthoritativeInfo:
			// 203 is the sign-in page served for an invalid token.
			return backoff.Permanent(fmt.Errorf("azure devops %s: %w", resp.Status, domain.ErrUnauthorized))
		}

		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("azure devops %s", resp.Status))
		}

		if err := decode(resp); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s: %w", redact(u), err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 300 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = c.retryFor

	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

func redact(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
