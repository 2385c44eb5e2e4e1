package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/handiism/quartus-catalog/internal/retry"
)

// DefaultUserAgent is a desktop Safari agent. The vendor site rejects the
// Go default agent.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15"

// maxPageSize caps how much of a page body is read.
const maxPageSize = 32 << 20

// Options configures a Session.
type Options struct {
	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds a single request, redirects included.
	Timeout time.Duration

	// RequestsPerSecond limits the request rate across all workers.
	// Zero disables the limiter.
	RequestsPerSecond float64

	// Burst is the limiter burst size. Defaults to 1.
	Burst int

	// Proxy is a proxy URL. Empty means the environment settings are used.
	Proxy string

	// Jar holds the authenticated session cookies. A fresh jar is created
	// when nil.
	Jar http.CookieJar
}

// DefaultOptions returns options with a browser agent and a 60 second
// timeout.
func DefaultOptions() Options {
	return Options{
		UserAgent: DefaultUserAgent,
		Timeout:   60 * time.Second,
		Burst:     1,
	}
}

// Page is a fetched HTML page.
type Page struct {
	// URL is where the request ended up after redirects.
	URL string

	StatusCode int
	Body       []byte
}

// Session wraps an authenticated, cookie carrying HTTP client.
//
// A Session is created once per crawl by the caller and shared by the
// crawler, the page pipeline and the CDN resolver. It is safe for
// concurrent use. Failures are classified for the retry package: network
// errors and transient statuses are retryable, 404 and 410 are fatal.
//
// Example usage:
//
//	session, err := NewSession(DefaultOptions())
//	defer session.Close()
//
//	page, err := session.GetPage(ctx, "https://www.intel.com/content/www/us/en/homepage.html")
//	final, err := session.Head(ctx, directURL, nil)
type Session struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// NewSession creates a Session from opts.
func NewSession(opts Options) (*Session, error) {
	jar := opts.Jar
	if jar == nil {
		var err error
		jar, err = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16
	if opts.Proxy != "" {
		proxy, err := url.Parse(opts.Proxy)
		if err != nil || proxy.Host == "" {
			return nil, fmt.Errorf("invalid proxy %q", opts.Proxy)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &Session{
		client: &http.Client{
			Transport: transport,
			Jar:       jar,
			Timeout:   opts.Timeout,
		},
		userAgent: opts.UserAgent,
		limiter:   limiter,
	}, nil
}

// Jar returns the session cookie jar.
func (s *Session) Jar() http.CookieJar {
	return s.client.Jar
}

// SetCookies seeds the session jar, typically with cookies exported from a
// browser that is already signed in.
func (s *Session) SetCookies(rawURL string, cookies []*http.Cookie) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse cookie url: %w", err)
	}
	s.client.Jar.SetCookies(u, cookies)
	return nil
}

// Close releases idle connections.
func (s *Session) Close() {
	s.client.CloseIdleConnections()
}

// GetPage performs a GET following redirects and returns the final URL and
// body.
func (s *Session) GetPage(ctx context.Context, rawURL string) (*Page, error) {
	resp, err := s.do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("read %s: %w", rawURL, err))
	}

	return &Page{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// Head performs a HEAD request following redirects and returns the final
// URL. When jar is non-nil, cookies the responses set are stored in jar
// only, and cookies in jar take precedence over session cookies of the same
// name.
func (s *Session) Head(ctx context.Context, rawURL string, jar http.CookieJar) (string, error) {
	resp, err := s.do(ctx, http.MethodHead, rawURL, jar)
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	return resp.Request.URL.String(), nil
}

// Discard performs a GET for its side effects and drops the body. The jar
// argument behaves as in Head.
func (s *Session) Discard(ctx context.Context, rawURL string, jar http.CookieJar) error {
	resp, err := s.do(ctx, http.MethodGet, rawURL, jar)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// do sends one request. The returned response always has a 2xx status.
func (s *Session) do(ctx context.Context, method, rawURL string, jar http.CookieJar) (*http.Response, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", s.userAgent)

	client := s.client
	if jar != nil {
		client = &http.Client{
			Transport: s.client.Transport,
			Jar:       &layeredJar{primary: jar, fallback: s.client.Jar},
			Timeout:   s.client.Timeout,
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.Retryable(fmt.Errorf("%s %s: %w", method, rawURL, err))
	}

	if err := checkStatusCode(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	return resp, nil
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, http.StatusText(e.Code))
}

// ErrNotFound matches 404 and 410 responses with errors.Is.
var ErrNotFound = errors.New("http: resource not found")

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && (e.Code == http.StatusNotFound || e.Code == http.StatusGone)
}

// checkStatusCode classifies a status. A missing page will not come back on
// retry; every other failure on this site has proven transient.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound, code == http.StatusGone:
		return retry.Fatal(&StatusError{Code: code})
	default:
		return retry.Retryable(&StatusError{Code: code})
	}
}
