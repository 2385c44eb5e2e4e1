package intel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	xhttp "github.com/handiism/quartus-catalog/internal/http"
	"github.com/handiism/quartus-catalog/internal/model"
	"github.com/handiism/quartus-catalog/internal/retry"
)

var (
	// ErrCDNMismatch is returned when the handshake ends somewhere other than
	// the content delivery host.
	ErrCDNMismatch = errors.New("resolved url is not on the cdn")

	// ErrNotDirectURL is returned for a URL without the fetch path segment.
	ErrNotDirectURL = errors.New("not a direct download url")
)

// CookieRequester sends the requests of the EULA handshake with an explicit
// cookie jar. *http.Session implements it.
type CookieRequester interface {
	Head(ctx context.Context, rawURL string, jar http.CookieJar) (string, error)
	Discard(ctx context.Context, rawURL string, jar http.CookieJar) error
}

// ResolverConfig describes the handshake endpoints.
type ResolverConfig struct {
	// FetchSegment is the path segment of a direct URL. It is swapped for
	// EulaSegment to build the EULA acceptance URL.
	FetchSegment string
	EulaSegment  string

	// CDNHost and CDNPathPrefix identify a valid resolution target.
	CDNHost       string
	CDNPathPrefix string

	// StaleMargin triggers a cookie refresh when any cookie expires within
	// it.
	StaleMargin time.Duration
}

// DefaultResolverConfig returns the endpoints of the Intel download center.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		FetchSegment:  "getContent",
		EulaSegment:   "acceptEula",
		CDNHost:       "downloads.intel.com",
		CDNPathPrefix: "/akdlm",
		StaleMargin:   60 * time.Second,
	}
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithClock sets the time source used for cookie expiry.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// Resolver turns direct download URLs into CDN URLs.
//
// Each resolution runs four steps, every one under the retry controller:
//
//  1. Make sure the cached handshake cookies are fresh, replacing the whole
//     jar with one harvested from a HEAD of the direct URL if not.
//  2. GET the EULA acceptance URL with a child of the cached jar.
//  3. HEAD the direct URL with the same child jar and follow redirects.
//  4. Check the final URL is on the CDN.
//
// A Resolver is safe for concurrent use. Concurrent calls share one
// CookieCache and serialize on its refresh.
type Resolver struct {
	client CookieRequester
	retry  *retry.Controller
	cfg    ResolverConfig
	cache  *CookieCache
	now    func() time.Time
	log    logrus.FieldLogger
}

// NewResolver creates a Resolver with an empty cookie cache.
func NewResolver(client CookieRequester, ctl *retry.Controller, cfg ResolverConfig, log logrus.FieldLogger, opts ...ResolverOption) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Resolver{
		client: client,
		retry:  ctl,
		cfg:    cfg,
		now:    time.Now,
		log:    log,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = NewCookieCache(r.now)
	return r
}

// Cache returns the resolver's cookie cache.
func (r *Resolver) Cache() *CookieCache {
	return r.cache
}

// Resolve returns the CDN URL behind directURL.
func (r *Resolver) Resolve(ctx context.Context, directURL string) (string, error) {
	eulaURL, err := r.eulaURL(directURL)
	if err != nil {
		return "", err
	}
	log := r.log.WithField("url", directURL)

	jar, err := r.cache.Ensure(ctx, r.cfg.StaleMargin, func(ctx context.Context) (*xhttp.RecordingJar, error) {
		log.Debug("refreshing handshake cookies")
		return r.harvest(ctx, directURL)
	})
	if err != nil {
		return "", fmt.Errorf("refresh cookies for %s: %w", directURL, err)
	}

	// Cookies set by the EULA and CDN responses stay with this call.
	child, err := xhttp.NewChildJar(jar)
	if err != nil {
		return "", retry.Fatal(err)
	}

	err = r.retry.Do(ctx, "accept eula", func(ctx context.Context) error {
		return r.client.Discard(ctx, eulaURL, child)
	})
	if err != nil {
		return "", fmt.Errorf("accept eula for %s: %w", directURL, err)
	}

	final, err := retry.Execute(ctx, r.retry, "resolve cdn", func(ctx context.Context) (string, error) {
		return r.client.Head(ctx, directURL, child)
	})
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", directURL, err)
	}

	if err := r.validate(final); err != nil {
		return "", retry.Fatal(fmt.Errorf("resolve %s: %w", directURL, err))
	}

	log.WithField("cdn", final).Debug("resolved")
	return final, nil
}

// ResolveRecord resolves rec.DirectURL and stores the result on rec.
func (r *Resolver) ResolveRecord(ctx context.Context, rec *model.ArtifactRecord) error {
	cdnURL, err := r.Resolve(ctx, rec.DirectURL)
	if err != nil {
		return err
	}
	if err := rec.SetCDNURL(cdnURL); err != nil {
		return retry.Fatal(fmt.Errorf("%s: %w", rec.Filename, err))
	}
	return nil
}

// harvest HEADs directURL with a brand new jar and returns what it collected.
func (r *Resolver) harvest(ctx context.Context, directURL string) (*xhttp.RecordingJar, error) {
	return retry.Execute(ctx, r.retry, "refresh cookies", func(ctx context.Context) (*xhttp.RecordingJar, error) {
		jar, err := xhttp.NewRecordingJar(r.now)
		if err != nil {
			return nil, retry.Fatal(err)
		}
		if _, err := r.client.Head(ctx, directURL, jar); err != nil {
			return nil, err
		}
		return jar, nil
	})
}

func (r *Resolver) eulaURL(directURL string) (string, error) {
	u, err := url.Parse(directURL)
	if err != nil {
		return "", retry.Fatal(fmt.Errorf("%w: %q: %v", ErrNotDirectURL, directURL, err))
	}

	segments := strings.Split(u.Path, "/")
	found := false
	for i, s := range segments {
		if s == r.cfg.FetchSegment {
			segments[i] = r.cfg.EulaSegment
			found = true
			break
		}
	}
	if !found {
		return "", retry.Fatal(fmt.Errorf("%w: %q has no %s segment", ErrNotDirectURL, directURL, r.cfg.FetchSegment))
	}

	u.Path = strings.Join(segments, "/")
	u.RawPath = ""
	return u.String(), nil
}

func (r *Resolver) validate(candidate string) error {
	u, err := url.Parse(candidate)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrCDNMismatch, candidate)
	}
	if !strings.EqualFold(u.Hostname(), r.cfg.CDNHost) || !strings.HasPrefix(u.Path, r.cfg.CDNPathPrefix) {
		return fmt.Errorf("%w: %s (want %s%s)", ErrCDNMismatch, candidate, r.cfg.CDNHost, r.cfg.CDNPathPrefix)
	}
	return nil
}

// CookieCache holds the handshake cookie jar shared by one resolver.
//
// The freshness check and the replacement happen under one lock, so no two
// goroutines are ever inside Ensure at the same time. The cached jar only
// ever holds what a refresh captured; Resolver sends the later handshake
// requests through a per-call child jar.
type CookieCache struct {
	now func() time.Time

	mu        sync.Mutex
	jar       *xhttp.RecordingJar
	captured  time.Time
	refreshes int
}

// NewCookieCache creates an empty cache. now defaults to time.Now.
func NewCookieCache(now func() time.Time) *CookieCache {
	if now == nil {
		now = time.Now
	}
	return &CookieCache{now: now}
}

// Ensure returns the cached jar, first replacing it with the result of
// refresh if nothing was captured yet or a cookie expires within margin. A
// harvest that captured no cookies is kept like any other. A failed refresh
// leaves the old jar in place.
func (c *CookieCache) Ensure(ctx context.Context, margin time.Duration, refresh func(ctx context.Context) (*xhttp.RecordingJar, error)) (*xhttp.RecordingJar, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.jar != nil && !c.jar.ExpiresWithin(margin) {
		return c.jar, nil
	}

	jar, err := refresh(ctx)
	if err != nil {
		return nil, err
	}
	c.jar = jar
	c.captured = c.now()
	c.refreshes++
	return jar, nil
}

// CapturedAt returns when the current jar was harvested, or the zero time.
func (c *CookieCache) CapturedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captured
}

// Refreshes returns how many times the jar has been replaced.
func (c *CookieCache) Refreshes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshes
}

// Invalidate drops the cached jar so the next Ensure refreshes.
func (c *CookieCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jar = nil
	c.captured = time.Time{}
}
