package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// RecordingJar is a cookie jar that remembers when each stored cookie
// expires. The standard jar hides expiry once a cookie is stored, and the
// CDN resolver needs it to decide when to refresh.
type RecordingJar struct {
	jar *cookiejar.Jar
	now func() time.Time

	mu       sync.Mutex
	expiries map[string]time.Time
}

// NewRecordingJar returns an empty jar. now defaults to time.Now.
func NewRecordingJar(now func() time.Time) (*RecordingJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &RecordingJar{jar: jar, now: now, expiries: make(map[string]time.Time)}, nil
}

// SetCookies implements http.CookieJar.
func (j *RecordingJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)

	now := j.now()
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, c := range cookies {
		key := cookieKey(u, c)
		switch {
		case c.MaxAge < 0:
			delete(j.expiries, key)
		case c.MaxAge > 0:
			j.expiries[key] = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			if !c.Expires.After(now) {
				delete(j.expiries, key)
				continue
			}
			j.expiries[key] = c.Expires
		default:
			// Session cookie, no expiry.
			j.expiries[key] = time.Time{}
		}
	}
}

// Cookies implements http.CookieJar.
func (j *RecordingJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// Len returns the number of cookies the jar has seen and not deleted.
func (j *RecordingJar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.expiries)
}

// ExpiresWithin reports whether any cookie expires before now+margin.
// Session cookies never do.
func (j *RecordingJar) ExpiresWithin(margin time.Duration) bool {
	deadline := j.now().Add(margin)
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, exp := range j.expiries {
		if !exp.IsZero() && exp.Before(deadline) {
			return true
		}
	}
	return false
}

// layeredJar sends the cookies of primary, then those of fallback whose
// names primary does not carry. New cookies only go to primary.
type layeredJar struct {
	primary  http.CookieJar
	fallback http.CookieJar
}

func (j *layeredJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.primary.SetCookies(u, cookies)
}

func (j *layeredJar) Cookies(u *url.URL) []*http.Cookie {
	cookies := j.primary.Cookies(u)
	names := make(map[string]bool, len(cookies))
	for _, c := range cookies {
		names[c.Name] = true
	}
	for _, c := range j.fallback.Cookies(u) {
		if !names[c.Name] {
			cookies = append(cookies, c)
		}
	}
	return cookies
}

// NewChildJar returns a jar that sends the cookies of parent and keeps any
// cookie set through it to itself. A child cookie shadows a parent cookie
// of the same name.
func NewChildJar(parent http.CookieJar) (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &layeredJar{primary: jar, fallback: parent}, nil
}

func cookieKey(u *url.URL, c *http.Cookie) string {
	domain := c.Domain
	if domain == "" {
		domain = u.Hostname()
	}
	path := c.Path
	if path == "" {
		path = "/"
	}
	return domain + ";" + path + ";" + c.Name
}

// CookieEntry is one cookie in a browser export file.
type CookieEntry struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"httpOnly"`
}

// LoadCookieFile reads a JSON array of cookies, as exported by common
// browser extensions, for seeding an already signed in session.
func LoadCookieFile(path string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []CookieEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse cookie file %s: %w", path, err)
	}

	cookies := make([]*http.Cookie, 0, len(entries))
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("cookie file %s: entry %d has no name", path, i)
		}
		cookies = append(cookies, &http.Cookie{
			Name:     e.Name,
			Value:    e.Value,
			Domain:   e.Domain,
			Path:     e.Path,
			Secure:   e.Secure,
			HttpOnly: e.HTTPOnly,
		})
	}
	return cookies, nil
}
