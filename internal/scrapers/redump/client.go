package redump

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"redumparchive/internal/components/assert"
	"redumparchive/internal/components/chrono"
	"redumparchive/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("redumparchive/scrapers/redump")

const (
	report_client_login       = "client.login"
	report_client_fetch_text  = "client.fetch-text"
	report_client_fetch_bytes = "client.fetch-bytes"
)

const (
	DefaultRetryLimit = 3
	// NoRetries as a RetryLimit fails every fetch without calling the transport.
	NoRetries         = -1
	DefaultRetryDelay = 100 * time.Millisecond
	// LoginAttempts bounds the token+post sequence, independent of the fetch retry limit.
	LoginAttempts = 3
)

var (
	ErrUnavailable        = errors.New("content currently unavailable")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrMissingCredentials = errors.New("username and password are both required")
)

type AuthOutcome int

const (
	AuthSuccess AuthOutcome = iota
	AuthDenied
	AuthError
)

func (o AuthOutcome) String() string {
	switch o {
	case AuthSuccess:
		return "success"
	case AuthDenied:
		return "denied"
	case AuthError:
		return "error"
	}
	return fmt.Sprintf("auth_outcome(%d)", int(o))
}

type ClientOptions struct {
	Endpoints Endpoints
	// Parser defaults to NewPageParser(Endpoints).
	Parser Parser
	// RetryLimit defaults to DefaultRetryLimit, a negative limit (NoRetries)
	// makes every fetch fail without calling the transport.
	RetryLimit int
	// RetryDelay defaults to DefaultRetryDelay.
	RetryDelay time.Duration
}

// Client is the session with the catalog: it owns the transport (and
// through it the cookie jar), the login state and the retry policy.
type Client struct {
	transport  Transport
	parser     Parser
	endpoints  Endpoints
	time       chrono.TimeAPI
	tel        telemetry.API
	retryLimit int
	retryDelay time.Duration

	mu            sync.RWMutex
	authenticated bool
	staff         bool
}

func NewClient(transport Transport, opts ClientOptions, time chrono.TimeAPI, tel telemetry.API) *Client {
	assert.NotNil(transport)
	assert.NotNil(time)
	assert.NotNil(tel)

	if opts.Endpoints == (Endpoints{}) {
		opts.Endpoints = DefaultEndpoints()
	}
	if opts.Parser == nil {
		opts.Parser = NewPageParser(opts.Endpoints)
	}
	if opts.RetryLimit == 0 {
		opts.RetryLimit = DefaultRetryLimit
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}

	return &Client{
		transport:  transport,
		parser:     opts.Parser,
		endpoints:  opts.Endpoints,
		time:       time,
		tel:        telemetry.NewScopedAPI("redump_client", tel),
		retryLimit: opts.RetryLimit,
		retryDelay: opts.RetryDelay,
	}
}

func (c *Client) Endpoints() Endpoints { return c.endpoints }
func (c *Client) Parser() Parser       { return c.parser }

func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Client) IsStaff() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.staff
}

// Login authenticates the session against the forum. It only ever
// succeeds once, later calls return AuthSuccess without touching the network.
func (c *Client) Login(ctx context.Context, username, password string) (AuthOutcome, error) {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	if username == "" || password == "" {
		span.SetStatus(codes.Error, ErrMissingCredentials.Error())
		return AuthDenied, ErrMissingCredentials
	}
	if c.IsAuthenticated() {
		return AuthSuccess, nil
	}

	var lastErr error
	for attempt := 0; attempt < LoginAttempts; attempt++ {
		if attempt > 0 {
			err := c.time.Sleep(ctx, c.retryDelay)
			if err != nil {
				lastErr = err
				break
			}
		}

		body, err := c.loginOnce(ctx, username, password)
		if err != nil {
			lastErr = err
			c.tel.ReportWarning(report_client_login, err, attempt+1)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if c.parser.BadCredentials(body) {
			span.SetStatus(codes.Error, ErrInvalidCredentials.Error())
			return AuthDenied, ErrInvalidCredentials
		}

		c.mu.Lock()
		c.authenticated = true
		c.staff = c.parser.StaffArea(body)
		c.mu.Unlock()

		span.SetAttributes(attribute.Bool("redump.staff", c.IsStaff()))
		c.tel.ReportDebug("logged in", username, c.IsStaff())
		return AuthSuccess, nil
	}

	c.tel.ReportBroken(report_client_login, lastErr)
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "login failed")
	return AuthError, fmt.Errorf("redump client: login failed: %w", lastErr)
}

func (c *Client) loginOnce(ctx context.Context, username, password string) (string, error) {
	form, err := c.transport.GetText(ctx, c.endpoints.LoginForm())
	if err != nil {
		return "", fmt.Errorf("fetch login form: %w", err)
	}
	token, ok := c.parser.LoginToken(form)
	if !ok {
		return "", fmt.Errorf("could not find login token")
	}

	body, err := c.transport.PostForm(ctx, c.endpoints.LoginPost(), map[string]string{
		"form_sent":    "1",
		"redirect_url": "",
		"csrf_token":   token,
		"req_username": username,
		"req_password": password,
		"save_pass":    "0",
	})
	if err != nil {
		return "", fmt.Errorf("post credentials: %w", err)
	}
	if body == "" {
		return "", fmt.Errorf("empty login response")
	}
	return body, nil
}

// FetchText fetches url as text, absorbing transient failures. The only
// error it returns wraps ErrUnavailable.
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	return withRetry(ctx, c, report_client_fetch_text, url, func(ctx context.Context) (string, error) {
		return c.transport.GetText(ctx, url)
	})
}

// FetchBytes is FetchText for binary content, it also carries the filename
// the server suggested.
func (c *Client) FetchBytes(ctx context.Context, url string) (Download, error) {
	return withRetry(ctx, c, report_client_fetch_bytes, url, func(ctx context.Context) (Download, error) {
		return c.transport.GetBytes(ctx, url)
	})
}

func withRetry[T any](
	ctx context.Context,
	c *Client,
	reportId string,
	url string,
	attempt func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	if c.retryLimit <= 0 {
		return zero, fmt.Errorf("%w: %s: retry limit is %d", ErrUnavailable, url, c.retryLimit)
	}

	var lastErr error
	for i := 0; i < c.retryLimit; i++ {
		if i > 0 {
			err := c.time.Sleep(ctx, c.retryDelay)
			if err != nil {
				return zero, fmt.Errorf("%w: %s: %w", ErrUnavailable, url, err)
			}
		}

		out, err := safeAttempt(ctx, attempt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		c.tel.ReportDebug(reportId, url, i+1, err)

		if ctx.Err() != nil {
			return zero, fmt.Errorf("%w: %s: %w", ErrUnavailable, url, ctx.Err())
		}
	}

	c.tel.ReportWarning(reportId, lastErr, url, c.retryLimit)
	return zero, fmt.Errorf("%w: %s: %w", ErrUnavailable, url, lastErr)
}

// safeAttempt turns a panic inside one attempt into a failed attempt.
func safeAttempt[T any](ctx context.Context, attempt func(ctx context.Context) (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("attempt panicked: %v", r)
		}
	}()
	return attempt(ctx)
}
