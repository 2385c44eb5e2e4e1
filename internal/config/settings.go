package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	xhttp "github.com/handiism/quartus-catalog/internal/http"
	"github.com/handiism/quartus-catalog/internal/intel"
	"github.com/handiism/quartus-catalog/internal/model"
	"github.com/handiism/quartus-catalog/internal/retry"
)

// Settings holds all configuration options.
type Settings struct {
	// Site layout
	LandingURL         string `json:"landing_url" yaml:"landing_url"`
	SiteRoot           string `json:"site_root" yaml:"site_root"`
	HomeRedirectMarker string `json:"home_redirect_marker" yaml:"home_redirect_marker"`
	PageURLSuffix      string `json:"page_url_suffix" yaml:"page_url_suffix"`

	// HTTP session
	UserAgent         string  `json:"user_agent" yaml:"user_agent"`
	RequestTimeout    float64 `json:"request_timeout" yaml:"request_timeout"` // seconds
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	ProxyURL          string  `json:"proxy_url" yaml:"proxy_url"` // empty uses the environment

	// Concurrency
	MaxConcurrentPages    int `json:"max_concurrent_pages" yaml:"max_concurrent_pages"`
	MaxConcurrentResolves int `json:"max_concurrent_resolves" yaml:"max_concurrent_resolves"`

	// Retry settings
	RetryMaxAttempts  int     `json:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryInitialDelay float64 `json:"retry_initial_delay" yaml:"retry_initial_delay"` // seconds
	RetryMaxDelay     float64 `json:"retry_max_delay" yaml:"retry_max_delay"`         // seconds
	RetryJitter       bool    `json:"retry_jitter" yaml:"retry_jitter"`

	// CDN handshake
	FetchSegment      string  `json:"fetch_segment" yaml:"fetch_segment"`
	EulaSegment       string  `json:"eula_segment" yaml:"eula_segment"`
	CDNHost           string  `json:"cdn_host" yaml:"cdn_host"`
	CDNPathPrefix     string  `json:"cdn_path_prefix" yaml:"cdn_path_prefix"`
	CookieStaleMargin float64 `json:"cookie_stale_margin" yaml:"cookie_stale_margin"` // seconds

	// Page parsing
	DateOrder          string            `json:"date_order" yaml:"date_order"` // mdy, dmy
	DateOrderOverrides map[string]string `json:"date_order_overrides,omitempty" yaml:"date_order_overrides,omitempty"`

	// Groups, when set, replaces discovery from the landing page.
	Groups []GroupSeed `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// GroupSeed is a distribution group listed in the settings file.
type GroupSeed struct {
	Edition  string     `json:"edition" yaml:"edition"`
	Platform string     `json:"platform" yaml:"platform"`
	Pages    []PageSeed `json:"pages" yaml:"pages"`
}

// PageSeed is one version page of a GroupSeed.
type PageSeed struct {
	Version string `json:"version" yaml:"version"`
	URL     string `json:"url" yaml:"url"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		LandingURL:         "https://www.intel.com/content/www/us/en/collections/products/fpga/software/downloads.html",
		SiteRoot:           "https://www.intel.com",
		HomeRedirectMarker: "homepage.html?ref=",
		PageURLSuffix:      "?",

		UserAgent:         xhttp.DefaultUserAgent,
		RequestTimeout:    60,
		RequestsPerSecond: 4,

		MaxConcurrentPages:    4,
		MaxConcurrentResolves: 8,

		RetryMaxAttempts:  5,
		RetryInitialDelay: 15,
		RetryMaxDelay:     60,

		FetchSegment:      "getContent",
		EulaSegment:       "acceptEula",
		CDNHost:           "downloads.intel.com",
		CDNPathPrefix:     "/akdlm",
		CookieStaleMargin: 60,

		DateOrder: string(model.DateOrderMDY),
	}
}

// Load reads settings from a YAML (.yaml, .yml) or JSON file. A missing
// file yields the defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if isYAML(path) {
		err = yaml.Unmarshal(data, settings)
	} else {
		err = json.Unmarshal(data, settings)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return settings, nil
}

// Save writes settings to a file, as YAML or JSON depending on the
// extension.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Validate checks values that would otherwise fail deep inside a crawl.
func (s *Settings) Validate() error {
	if s.RetryMaxAttempts < 1 {
		return fmt.Errorf("retry_max_attempts must be at least 1")
	}
	if s.MaxConcurrentPages < 1 || s.MaxConcurrentResolves < 1 {
		return fmt.Errorf("concurrency limits must be at least 1")
	}
	for name, segment := range map[string]string{"fetch_segment": s.FetchSegment, "eula_segment": s.EulaSegment} {
		if strings.TrimSpace(segment) == "" || strings.Contains(segment, "/") {
			return fmt.Errorf("%s must be a single non-empty path segment", name)
		}
	}
	if strings.TrimSpace(s.CDNHost) == "" {
		return fmt.Errorf("cdn_host must not be empty")
	}
	if _, err := model.ParseDateOrder(s.DateOrder); err != nil {
		return err
	}
	for kit, order := range s.DateOrderOverrides {
		if _, err := model.ParseDateOrder(order); err != nil {
			return fmt.Errorf("date_order_overrides[%s]: %w", kit, err)
		}
	}
	if _, err := s.SeededGroups(); err != nil {
		return err
	}
	return nil
}

// RetryPolicy converts settings to a retry.Policy.
func (s *Settings) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  s.RetryMaxAttempts,
		InitialDelay: seconds(s.RetryInitialDelay),
		MaxDelay:     seconds(s.RetryMaxDelay),
		Jitter:       s.RetryJitter,
	}
}

// SessionOptions converts settings to http.Options. The cookie jar is left
// for the caller.
func (s *Settings) SessionOptions() xhttp.Options {
	opts := xhttp.DefaultOptions()
	if s.UserAgent != "" {
		opts.UserAgent = s.UserAgent
	}
	if s.RequestTimeout > 0 {
		opts.Timeout = seconds(s.RequestTimeout)
	}
	opts.RequestsPerSecond = s.RequestsPerSecond
	opts.Proxy = s.ProxyURL
	return opts
}

// NewSession creates a session from SessionOptions, seeded with the cookies
// in cookiesFile when it is not empty. The caller closes the session.
func (s *Settings) NewSession(cookiesFile string) (*xhttp.Session, error) {
	session, err := xhttp.NewSession(s.SessionOptions())
	if err != nil {
		return nil, err
	}
	if cookiesFile == "" {
		return session, nil
	}

	cookies, err := xhttp.LoadCookieFile(cookiesFile)
	if err != nil {
		session.Close()
		return nil, err
	}
	if err := session.SetCookies(s.SiteRoot, cookies); err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}

// CrawlerConfig converts settings to intel.CrawlerConfig.
func (s *Settings) CrawlerConfig() intel.CrawlerConfig {
	return intel.CrawlerConfig{
		LandingURL:         s.LandingURL,
		SiteRoot:           s.SiteRoot,
		HomeRedirectMarker: s.HomeRedirectMarker,
		PageURLSuffix:      s.PageURLSuffix,
		MaxConcurrent:      s.MaxConcurrentPages,
	}
}

// ResolverConfig converts settings to intel.ResolverConfig.
func (s *Settings) ResolverConfig() intel.ResolverConfig {
	return intel.ResolverConfig{
		FetchSegment:  s.FetchSegment,
		EulaSegment:   s.EulaSegment,
		CDNHost:       s.CDNHost,
		CDNPathPrefix: s.CDNPathPrefix,
		StaleMargin:   seconds(s.CookieStaleMargin),
	}
}

var kitIDPattern = regexp.MustCompile(`/software-kit/(\d+)(?:/|$)`)

// DateOrderFor returns the "Last Updated" order for a version page: the
// override for its software kit ID if there is one, the default otherwise.
func (s *Settings) DateOrderFor(pageURL string) model.DateOrder {
	if m := kitIDPattern.FindStringSubmatch(pageURL); m != nil {
		if o, ok := s.DateOrderOverrides[m[1]]; ok {
			if order, err := model.ParseDateOrder(o); err == nil {
				return order
			}
		}
	}
	order, err := model.ParseDateOrder(s.DateOrder)
	if err != nil {
		return model.DateOrderMDY
	}
	return order
}

// SeededGroups converts Groups to distribution groups, in file order.
func (s *Settings) SeededGroups() ([]*model.DistributionGroup, error) {
	groups := make([]*model.DistributionGroup, 0, len(s.Groups))
	seen := make(map[model.GroupKey]bool)
	for i, seed := range s.Groups {
		pages := make([]model.VersionPage, 0, len(seed.Pages))
		for _, p := range seed.Pages {
			v, err := model.ParseVersion(p.Version)
			if err != nil {
				return nil, fmt.Errorf("groups[%d]: %w", i, err)
			}
			pages = append(pages, model.VersionPage{Version: v, URL: p.URL})
		}

		g, err := model.NewDistributionGroup(model.Edition(seed.Edition), model.Platform(seed.Platform), pages)
		if err != nil {
			return nil, fmt.Errorf("groups[%d]: %w", i, err)
		}
		if seen[g.Key()] {
			return nil, fmt.Errorf("groups[%d]: duplicate group %s", i, g.Key())
		}
		seen[g.Key()] = true
		groups = append(groups, g)
	}
	return groups, nil
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
