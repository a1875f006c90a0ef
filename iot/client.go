package iot

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
	"golang.org/x/time/rate"

	"github.com/thingsql/thingsql/catalog"
)

const (
	defaultMaxResults     = 250
	defaultMaxRetries     = 4
	defaultRetryBaseDelay = 100 * time.Millisecond
	defaultRetryMaxDelay  = 5 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

type ClientOptions struct {
	// Endpoint is the registry endpoint serving listing calls.
	Endpoint string
	// DataEndpoint serves device shadow reads.
	DataEndpoint string
	// MaxResults is the per-page record cap requested from the API.
	MaxResults int
	// MaxRetries bounds retries of a single page fetch beyond the first
	// attempt.
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RequestTimeout time.Duration
	// RateLimit caps outgoing requests per second. Zero means unlimited.
	RateLimit float64
	RateBurst int
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

func (opts ClientOptions) withDefaults() ClientOptions {
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = defaultRetryBaseDelay
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = defaultRetryMaxDelay
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}
	return opts
}

// Client drives the remote registry API page by page. It owns the retry
// policy: transient failures are absorbed here up to the retry cap and
// never surface to callers unless exhausted. A Client is safe for use by
// concurrent scans; all pagination state lives with the caller's cursor.
type Client struct {
	opts        ClientOptions
	credentials CredentialsProvider
	httpClient  *http.Client
	limiter     *rate.Limiter
}

func NewClient(opts ClientOptions, credentials CredentialsProvider) *Client {
	opts = opts.withDefaults()

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.RequestTimeout}
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &Client{
		opts:        opts,
		credentials: credentials,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(limit, opts.RateBurst),
	}
}

// Page is one page of raw records plus the continuation token, empty when
// the listing is complete. The parsed values stay valid for the lifetime
// of the Page.
type Page struct {
	Records   []*fastjson.Value
	NextToken string

	parser *fastjson.Parser
}

// FetchPage issues a single listing call. The cursor must be the token of
// the previous page, or empty for the first page. limit caps the page size
// below the configured maximum when positive.
func (c *Client) FetchPage(ctx context.Context, descriptor *catalog.ResourceDescriptor, params map[string]string, cursor string, limit int) (*Page, error) {
	maxResults := c.opts.MaxResults
	if limit > 0 && limit < maxResults {
		maxResults = limit
	}

	values := url.Values{}
	values.Set("maxResults", strconv.Itoa(maxResults))
	for key, value := range params {
		values.Set(key, value)
	}
	if cursor != "" {
		values.Set("nextToken", cursor)
	}

	body, err := c.get(ctx, c.opts.Endpoint+descriptor.Endpoint+"?"+values.Encode())
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't list %s", descriptor.Kind)
	}

	parser := &fastjson.Parser{}
	parsed, err := parser.ParseBytes(body)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't parse %s listing response", descriptor.Kind)
	}

	return &Page{
		Records:   parsed.GetArray(descriptor.ListKey),
		NextToken: string(parsed.GetStringBytes("nextToken")),
		parser:    parser,
	}, nil
}

// ThingGroupsForThing aggregates the full paginated group membership of
// one thing into a single JSON array.
func (c *Client) ThingGroupsForThing(ctx context.Context, thingName string) ([]byte, error) {
	endpoint := c.opts.Endpoint + "/things/" + url.PathEscape(thingName) + "/thing-groups"

	out := []byte{'['}
	cursor := ""
	for {
		values := url.Values{}
		values.Set("maxResults", strconv.Itoa(c.opts.MaxResults))
		if cursor != "" {
			values.Set("nextToken", cursor)
		}

		body, err := c.get(ctx, endpoint+"?"+values.Encode())
		if err != nil {
			return nil, errors.Wrapf(err, "couldn't list thing groups for thing %s", thingName)
		}

		var parser fastjson.Parser
		parsed, err := parser.ParseBytes(body)
		if err != nil {
			return nil, errors.Wrapf(err, "couldn't parse thing groups response for thing %s", thingName)
		}
		for _, group := range parsed.GetArray("thingGroups") {
			if len(out) > 1 {
				out = append(out, ',')
			}
			out = group.MarshalTo(out)
		}

		cursor = string(parsed.GetStringBytes("nextToken"))
		if cursor == "" {
			break
		}
	}
	return append(out, ']'), nil
}

// ThingShadow reads the shadow document of one thing from the data
// endpoint. A missing shadow is not an error; it returns nil.
func (c *Client) ThingShadow(ctx context.Context, thingName string) ([]byte, error) {
	body, err := c.get(ctx, c.opts.DataEndpoint+"/things/"+url.PathEscape(thingName)+"/shadow")
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "couldn't get shadow for thing %s", thingName)
	}
	return body, nil
}

// get performs a single GET with bounded retries. Transient failures
// (network errors, 5xx, throttling) are retried with exponential backoff;
// authentication and other client errors propagate immediately.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "couldn't wait for rate limiter")
		}

		body, err := c.attempt(ctx, rawURL)
		if err == nil {
			return body, nil
		}

		var transient *transientError
		if !errors.As(err, &transient) {
			return nil, err
		}
		lastErr = transient.err

		if attempt >= c.opts.MaxRetries {
			return nil, errors.Wrapf(lastErr, "retries exhausted after %d attempts", attempt+1)
		}

		delay := c.backoff(attempt)
		if transient.retryAfter > 0 {
			delay = transient.retryAfter
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Client) attempt(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't create request")
	}
	req.Header.Set("Accept", "application/json")

	if err := c.credentials.Authorize(req); err != nil {
		return nil, errors.Wrap(err, "couldn't authorize request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{err: errors.Wrap(err, "request failed")}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{err: errors.Wrap(err, "couldn't read response body")}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.Wrapf(ErrAuthentication, "status %d: %s", resp.StatusCode, truncate(body))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &transientError{
			err:        errors.Wrapf(ErrRateLimited, "status %d", resp.StatusCode),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &transientError{err: &StatusError{Code: resp.StatusCode, Body: truncate(body)}}
	default:
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(body)}
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.opts.RetryBaseDelay << uint(attempt)
	if delay > c.opts.RetryMaxDelay || delay <= 0 {
		delay = c.opts.RetryMaxDelay
	}
	// Half fixed, half jitter, so concurrent scans don't retry in lockstep.
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}

func truncate(body []byte) string {
	const max = 256
	body = bytes.TrimSpace(body)
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
