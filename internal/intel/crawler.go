package intel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	xhttp "github.com/handiism/quartus-catalog/internal/http"
	"github.com/handiism/quartus-catalog/internal/model"
	"github.com/handiism/quartus-catalog/internal/retry"
)

var (
	// ErrRedirectedHome is returned when the site bounces a request to its
	// home page. It happens when the session is briefly not recognised and
	// goes away on retry.
	ErrRedirectedHome = errors.New("redirected to home page")

	// ErrNoDistributionLinks is returned when the landing page has no
	// "Download for ..." links.
	ErrNoDistributionLinks = errors.New("no distribution links found on landing page")

	// ErrNoVersionSelector is returned when a distribution page lacks the
	// version drop-down.
	ErrNoVersionSelector = errors.New("version selector not found")

	// ErrDuplicateGroup is returned when two distribution pages classify as
	// the same edition and platform.
	ErrDuplicateGroup = errors.New("duplicate distribution group")
)

const (
	distributionLinkPrefix = "Download for "
	versionSelector        = "select#version-driver-select"
	latestSuffix           = "(Latest)"
)

// PageFetcher fetches HTML pages through the authenticated session.
type PageFetcher interface {
	GetPage(ctx context.Context, rawURL string) (*xhttp.Page, error)
}

// CrawlerConfig holds the site layout constants the crawler depends on.
type CrawlerConfig struct {
	// LandingURL lists one "Download for ..." link per edition and platform.
	LandingURL string

	// SiteRoot resolves the relative paths of the version selector.
	SiteRoot string

	// HomeRedirectMarker identifies a bounce to the home page in a final URL.
	HomeRedirectMarker string

	// PageURLSuffix is appended to version page URLs that have no query.
	// The site loops redirects on some pages without it.
	PageURLSuffix string

	// MaxConcurrent bounds how many distribution pages are fetched at once.
	MaxConcurrent int
}

// Crawler discovers distribution groups and fetches version pages.
//
// Every fetch runs under the retry controller. A bounce to the home page
// is retryable; a page whose title or selector cannot be classified is
// fatal, since that means the site layout changed.
//
// Example usage:
//
//	crawler, err := NewCrawler(session, ctl, cfg, log)
//	groups, err := crawler.Discover(ctx)
//	for _, g := range groups {
//	    fmt.Printf("%s/%s: %d versions\n", g.Edition, g.Platform, len(g.Pages))
//	}
type Crawler struct {
	fetcher PageFetcher
	retry   *retry.Controller
	cfg     CrawlerConfig
	root    *url.URL
	log     logrus.FieldLogger
}

// NewCrawler creates a Crawler. A nil logger uses the logrus standard logger.
func NewCrawler(fetcher PageFetcher, ctl *retry.Controller, cfg CrawlerConfig, log logrus.FieldLogger) (*Crawler, error) {
	root, err := url.Parse(cfg.SiteRoot)
	if err != nil || root.Scheme == "" || root.Host == "" {
		return nil, fmt.Errorf("invalid site root %q", cfg.SiteRoot)
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Crawler{fetcher: fetcher, retry: ctl, cfg: cfg, root: root, log: log}, nil
}

// Discover reads the landing page and resolves every distribution link it
// lists into a group, in link order.
//
// Discovery is not all-or-nothing: groups that resolved are returned along
// with an aggregate error describing the ones that did not.
func (c *Crawler) Discover(ctx context.Context) ([]*model.DistributionGroup, error) {
	links, err := retry.Execute(ctx, c.retry, "landing page", func(ctx context.Context) ([]string, error) {
		page, err := c.fetch(ctx, c.cfg.LandingURL)
		if err != nil {
			return nil, err
		}
		return distributionLinks(page)
	})
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}

	c.log.WithField("links", len(links)).Info("found distribution links")

	results := make([]*model.DistributionGroup, len(links))
	errs := make([]error, len(links))

	var g errgroup.Group
	g.SetLimit(c.cfg.MaxConcurrent)
	for i, link := range links {
		g.Go(func() error {
			results[i], errs[i] = c.ResolveGroup(ctx, link)
			return nil
		})
	}
	_ = g.Wait()

	var (
		groups []*model.DistributionGroup
		merr   *multierror.Error
		seen   = make(map[model.GroupKey]string)
	)
	for i, group := range results {
		if errs[i] != nil {
			merr = multierror.Append(merr, errs[i])
			continue
		}
		key := group.Key()
		if first, ok := seen[key]; ok {
			merr = multierror.Append(merr, retry.Fatal(fmt.Errorf("%w %s: %s and %s", ErrDuplicateGroup, key, first, links[i])))
			continue
		}
		seen[key] = links[i]
		groups = append(groups, group)
	}

	return groups, merr.ErrorOrNil()
}

// ResolveGroup opens one distribution page and reads its edition, platform
// and version table. The whole open-and-read step is retried, since a
// bounce to the home page only shows after the request completes.
func (c *Crawler) ResolveGroup(ctx context.Context, rawURL string) (*model.DistributionGroup, error) {
	group, err := retry.Execute(ctx, c.retry, "distribution page", func(ctx context.Context) (*model.DistributionGroup, error) {
		return c.resolveGroupOnce(ctx, rawURL)
	})
	if err != nil {
		return nil, fmt.Errorf("resolve group %s: %w", rawURL, err)
	}

	c.log.WithFields(logrus.Fields{
		"edition":  group.Edition,
		"platform": group.Platform,
		"versions": len(group.Pages),
	}).Info("resolved distribution group")
	return group, nil
}

func (c *Crawler) resolveGroupOnce(ctx context.Context, rawURL string) (*model.DistributionGroup, error) {
	page, err := c.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("parse %s: %w", page.URL, err))
	}

	title := pageTitle(doc)
	edition, err := ClassifyEdition(title)
	if err != nil {
		return nil, retry.Fatal(err)
	}
	platform, err := ClassifyPlatform(title)
	if err != nil {
		return nil, retry.Fatal(err)
	}

	sel := doc.Find(versionSelector).First()
	if sel.Length() == 0 {
		return nil, retry.Fatalf("%s: %w", page.URL, ErrNoVersionSelector)
	}

	var (
		pages   []model.VersionPage
		optErr  error
		options = sel.Find("option")
	)
	options.EachWithBreak(func(i int, opt *goquery.Selection) bool {
		text := strings.TrimSpace(opt.Text())
		text = strings.TrimSpace(strings.TrimSuffix(text, latestSuffix))

		version, err := model.ParseVersion(text)
		if err != nil {
			optErr = fmt.Errorf("%s: option %d: %w", page.URL, i, err)
			return false
		}

		value, ok := opt.Attr("value")
		if !ok || strings.TrimSpace(value) == "" {
			optErr = fmt.Errorf("%s: option %q has no page path", page.URL, text)
			return false
		}
		ref, err := url.Parse(strings.TrimSpace(value))
		if err != nil {
			optErr = fmt.Errorf("%s: option %q: %w", page.URL, text, err)
			return false
		}

		pages = append(pages, model.VersionPage{
			Version: version,
			URL:     c.root.ResolveReference(ref).String(),
		})
		return true
	})
	if optErr != nil {
		return nil, retry.Fatal(optErr)
	}
	if len(pages) == 0 {
		return nil, retry.Fatalf("%s: %w: no options", page.URL, ErrNoVersionSelector)
	}

	group, err := model.NewDistributionGroup(edition, platform, pages)
	if err != nil {
		return nil, retry.Fatal(err)
	}
	return group, nil
}

// FetchVersionPage fetches the page listing one release's artifacts.
func (c *Crawler) FetchVersionPage(ctx context.Context, pageURL string) (*xhttp.Page, error) {
	target := pageURL
	if c.cfg.PageURLSuffix != "" && !strings.Contains(target, "?") {
		target += c.cfg.PageURLSuffix
	}
	page, err := retry.Execute(ctx, c.retry, "version page", func(ctx context.Context) (*xhttp.Page, error) {
		return c.fetch(ctx, target)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch version page %s: %w", pageURL, err)
	}
	return page, nil
}

// fetch performs one GET and flags a bounce to the home page.
func (c *Crawler) fetch(ctx context.Context, rawURL string) (*xhttp.Page, error) {
	c.log.WithField("url", rawURL).Debug("fetching page")

	page, err := c.fetcher.GetPage(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if c.cfg.HomeRedirectMarker != "" && strings.Contains(page.URL, c.cfg.HomeRedirectMarker) {
		c.log.WithFields(logrus.Fields{"url": rawURL, "final": page.URL}).Warn("redirected to home page")
		return nil, retry.Retryable(fmt.Errorf("%s: %w (%s)", rawURL, ErrRedirectedHome, page.URL))
	}
	return page, nil
}

// distributionLinks returns the absolute targets of every "Download for"
// link on the landing page, without duplicates, in page order.
func distributionLinks(page *xhttp.Page) ([]string, error) {
	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("landing url %q: %w", page.URL, err))
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("parse landing page: %w", err))
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if !strings.HasPrefix(normalizeSpace(a.Text()), distributionLinkPrefix) {
			return
		}
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, abs)
	})

	if len(links) == 0 {
		return nil, retry.Fatal(ErrNoDistributionLinks)
	}
	return links, nil
}

func pageTitle(doc *goquery.Document) string {
	return normalizeSpace(doc.Find("title").First().Text())
}

// normalizeSpace collapses runs of whitespace to one space and trims.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
