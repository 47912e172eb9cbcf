package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/chapterkit/doorman/pkg/domain/interfaces"
	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
	"github.com/chapterkit/doorman/pkg/utils/logging"
)

const (
	// DefaultMembershipField is the custom field carrying membership status
	DefaultMembershipField = "is_member_in_good_standing"

	defaultRequestTimeout = 10 * time.Second
	defaultMaxRetries     = 2
	defaultRetryWait      = 2 * time.Second
	defaultBucketCapacity = 30
	defaultBucketRefill   = 30
	defaultBucketInterval = time.Minute
)

// Client queries the external membership directory by email. It owns the
// shared rate limit for the upstream API and writes results through to its
// cache. Audit recording is the caller's responsibility.
type Client struct {
	baseURL         string
	token           string
	membershipField string
	maxRetries      int
	retryWait       time.Duration
	httpClient      *http.Client
	cache           *Cache
	clock           func() time.Time
	sleep           func(context.Context, time.Duration) error

	mu     sync.Mutex
	bucket model.TokenBucket
}

var _ interfaces.MembershipVerifier = &Client{}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMembershipField overrides the custom field consulted for membership
func WithMembershipField(field string) ClientOption {
	return func(c *Client) {
		c.membershipField = field
	}
}

// WithMaxRetries bounds retry attempts for rate-limit waits and HTTP 429
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryWait sets the base wait between local rate-limit retries
func WithRetryWait(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryWait = d
	}
}

// WithBucket replaces the shared token bucket
func WithBucket(b model.TokenBucket) ClientOption {
	return func(c *Client) {
		c.bucket = b
	}
}

// WithCache replaces the result cache
func WithCache(cache *Cache) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithClock injects a clock for tests
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithSleep injects the wait primitive for tests
func WithSleep(sleep func(context.Context, time.Duration) error) ClientOption {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// New creates a directory client
func New(baseURL, token string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, goerr.New("directory base URL is required")
	}
	if token == "" {
		return nil, goerr.New("directory API token is required")
	}

	c := &Client{
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		token:           token,
		membershipField: DefaultMembershipField,
		maxRetries:      defaultMaxRetries,
		retryWait:       defaultRetryWait,
		httpClient:      &http.Client{Timeout: defaultRequestTimeout},
		cache:           NewCache(),
		clock:           time.Now,
		sleep:           sleepCtx,
	}
	c.bucket = model.NewTokenBucket(defaultBucketCapacity, defaultBucketRefill, defaultBucketInterval, c.clock())

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Cache exposes the result cache for the background sweeper
func (c *Client) Cache() *Cache {
	return c.cache
}

// NormalizeEmail trims and lowercases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Lookup reports whether the email belongs to a member in good standing.
func (c *Client) Lookup(ctx context.Context, email string) (bool, error) {
	cleaned := NormalizeEmail(email)
	if _, err := mail.ParseAddress(cleaned); err != nil {
		return false, goerr.Wrap(err, "invalid email address", goerr.T(types.ErrTagValidation))
	}

	if value, ok := c.cache.Get(cleaned); ok {
		return value, nil
	}

	if err := c.acquire(ctx); err != nil {
		return false, err
	}

	value, err := c.query(ctx, cleaned)
	if err != nil {
		return false, err
	}

	c.cache.Set(cleaned, value)
	return value, nil
}

// acquire takes one token from the shared bucket, waiting a bounded number
// of times when the bucket is empty. The check-and-consume step is atomic
// under the mutex.
func (c *Client) acquire(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		c.mu.Lock()
		next, ok := c.bucket.Consume(1, c.clock())
		c.bucket = next
		c.mu.Unlock()

		if ok {
			return nil
		}
		if attempt >= c.maxRetries {
			return goerr.New("directory rate limit exceeded",
				goerr.T(types.ErrTagRateLimit),
				goerr.V("attempts", attempt+1),
			)
		}
		if err := c.sleep(ctx, c.retryWait); err != nil {
			return goerr.Wrap(err, "rate limit wait aborted", goerr.T(types.ErrTagRateLimit))
		}
	}
}

// query performs the directory lookup, retrying on HTTP 429 with the
// server's suggested wait.
func (c *Client) query(ctx context.Context, email string) (bool, error) {
	filter := url.QueryEscape(fmt.Sprintf("email_address eq '%s'", email))
	endpoint := fmt.Sprintf("%s/people?filter=%s", c.baseURL, filter)

	var lastStatus int
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return false, goerr.Wrap(err, "failed to build directory request", goerr.T(types.ErrTagUpstream))
		}
		req.Header.Set("OSDI-API-Token", c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return false, goerr.Wrap(err, "no response from membership directory", goerr.T(types.ErrTagUpstream))
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return false, goerr.Wrap(readErr, "failed to read directory response", goerr.T(types.ErrTagUpstream))
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastStatus = resp.StatusCode
			if attempt < c.maxRetries {
				wait := retryAfter(resp.Header.Get("Retry-After"))
				logging.From(ctx).Warn("directory rate limited, backing off",
					"wait", wait.String(),
					"attempt", attempt+1,
				)
				if err := c.sleep(ctx, wait); err != nil {
					return false, goerr.Wrap(err, "backoff aborted", goerr.T(types.ErrTagRateLimit))
				}
			}

		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return false, goerr.New("membership directory returned an error",
				goerr.T(types.ErrTagUpstream),
				goerr.V("status", resp.StatusCode),
			)

		default:
			var people peopleResponse
			if err := json.Unmarshal(body, &people); err != nil {
				return false, goerr.Wrap(err, "failed to decode directory response", goerr.T(types.ErrTagUpstream))
			}
			return people.isMember(c.membershipField), nil
		}
	}

	return false, goerr.New("membership directory kept rate limiting",
		goerr.T(types.ErrTagRateLimit),
		goerr.V("status", lastStatus),
	)
}

// retryAfter parses a Retry-After header, defaulting to 5 seconds
func retryAfter(header string) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 5 * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
