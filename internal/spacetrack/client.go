// Package spacetrack is a minimal client for the Space-Track.org REST API:
// session login plus gp_history and satcat queries. It performs no rate
// limiting of its own; callers wrap every call in their throttle.
package spacetrack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/satdecay/internal/logging"
	"github.com/signalsfoundry/satdecay/internal/observability"
	"github.com/signalsfoundry/satdecay/model"
)

// DefaultBaseURL is the production Space-Track endpoint.
const DefaultBaseURL = "https://www.space-track.org"

const serviceName = "spacetrack"

// Credentials identify a Space-Track account.
type Credentials struct {
	Identity string
	Password string
}

// Validate reports missing credential fields as model.ErrCredentialFailure.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Identity) == "" {
		missing = append(missing, "login")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing space-track %s: %w", strings.Join(missing, " and "), model.ErrCredentialFailure)
	}
	return nil
}

// CallRecorder receives one sample per remote call.
type CallRecorder interface {
	ObserveRemoteCall(service, operation string, err error, d time.Duration)
}

// Client talks to Space-Track. A Client must be logged in before queries.
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	metrics CallRecorder
	log     logging.Logger

	mu       sync.Mutex
	loggedIn bool
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at another deployment (tests, mirrors).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client. A cookie jar is installed if the
// client has none.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithMetrics attaches a call recorder.
func WithMetrics(m CallRecorder) Option { return func(c *Client) { c.metrics = m } }

// WithLogger attaches a logger.
func WithLogger(l logging.Logger) Option { return func(c *Client) { c.log = l } }

// New constructs a Client for creds.
func New(creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		creds:   creds,
		log:     logging.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 2 * time.Minute}
	}
	if c.http.Jar == nil {
		jar, _ := cookiejar.New(nil)
		clone := *c.http
		clone.Jar = jar
		c.http = &clone
	}
	return c
}

// Login opens a session. Missing or rejected credentials are reported as
// model.ErrCredentialFailure; transport problems as model.ErrSourceUnavailable.
func (c *Client) Login(ctx context.Context) (err error) {
	ctx, span := observability.StartSpan(ctx, "spacetrack.login")
	start := time.Now()
	defer func() {
		c.observe("login", err, time.Since(start))
		observability.EndSpan(span, err)
	}()

	if err := c.creds.Validate(); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("identity", c.creds.Identity)
	form.Set("password", c.creds.Password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ajaxauth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build login request: %w", errors.Join(model.ErrSourceUnavailable, err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("space-track login: %w", errors.Join(model.ErrSourceUnavailable, err))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("space-track login: read response: %w", errors.Join(model.ErrSourceUnavailable, err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("space-track login rejected (%s): %w", resp.Status, model.ErrCredentialFailure)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("space-track login: unexpected status %s: %w", resp.Status, model.ErrSourceUnavailable)
	case strings.Contains(string(body), `"Failed"`):
		return fmt.Errorf("space-track login rejected: %w", model.ErrCredentialFailure)
	}

	c.mu.Lock()
	c.loggedIn = true
	c.mu.Unlock()
	c.log.Info(ctx, "space-track session opened", logging.String("identity", c.creds.Identity))
	return nil
}

// GPHistory runs a gp_history query.
func (c *Client) GPHistory(ctx context.Context, q Query) ([]GPHistory, error) {
	if q.Class == "" {
		q.Class = ClassGPHistory
	}
	var rows []GPHistory
	if err := c.query(ctx, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SatCat runs a satcat query.
func (c *Client) SatCat(ctx context.Context, q Query) ([]SatCat, error) {
	if q.Class == "" {
		q.Class = ClassSatCat
	}
	var rows []SatCat
	if err := c.query(ctx, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) query(ctx context.Context, q Query, out any) (err error) {
	operation := string(q.Class)
	ctx, span := observability.StartSpan(ctx, "spacetrack."+operation, attribute.String("query", q.Path()))
	start := time.Now()
	defer func() {
		c.observe(operation, err, time.Since(start))
		observability.EndSpan(span, err)
	}()

	c.mu.Lock()
	loggedIn := c.loggedIn
	c.mu.Unlock()
	if !loggedIn {
		return fmt.Errorf("space-track %s query before login: %w", operation, model.ErrCredentialFailure)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/basicspacedata/query"+q.Path(), nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, errors.Join(model.ErrSourceUnavailable, err))
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug(ctx, "space-track query", logging.String("path", q.Path()))
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("space-track %s: %w", operation, errors.Join(model.ErrSourceUnavailable, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.mu.Lock()
		c.loggedIn = false
		c.mu.Unlock()
		return fmt.Errorf("space-track %s: session rejected: %w", operation, model.ErrCredentialFailure)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("space-track %s: unexpected status %s: %w", operation, resp.Status, model.ErrSourceUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, errors.Join(model.ErrSourceUnavailable, err))
	}
	return nil
}

func (c *Client) observe(operation string, err error, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveRemoteCall(serviceName, operation, err, d)
	}
}
