package intel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xhttp "github.com/handiism/quartus-catalog/internal/http"
	"github.com/handiism/quartus-catalog/internal/model"
	"github.com/handiism/quartus-catalog/internal/retry"
)

const homeMarker = "homepage.html?ref="

func fastRetry(attempts int) *retry.Controller {
	return retry.New(retry.Policy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	}, quietLogger())
}

func newTestSession(t *testing.T) *xhttp.Session {
	t.Helper()
	s, err := xhttp.NewSession(xhttp.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func newTestCrawler(t *testing.T, serverURL string, attempts int) *Crawler {
	t.Helper()
	c, err := NewCrawler(newTestSession(t), fastRetry(attempts), CrawlerConfig{
		LandingURL:         serverURL + "/landing.html",
		SiteRoot:           serverURL,
		HomeRedirectMarker: homeMarker,
		PageURLSuffix:      "?",
		MaxConcurrent:      2,
	}, quietLogger())
	require.NoError(t, err)
	return c
}

const landingHTML = `<html><body>
<a href="/kit/pro-windows.html">Download for Windows</a>
<a href="/kit/std-linux.html">Download
   for   Linux</a>
<a href="/kit/pro-windows.html">Download for Windows</a>
<a href="/support.html">Support</a>
</body></html>`

const proWindowsHTML = `<html><head><title>Intel® Quartus® Prime Pro Edition Design Software for Windows</title></head><body>
<select id="version-driver-select">
  <option value="/content/www/us/en/software-kit/746666/pro-22-3.html">22.3 (Latest)</option>
  <option value="/content/www/us/en/software-kit/736588/pro-22-2.html">22.2</option>
  <option value="/content/www/us/en/software-kit/670215/pro-21-4.html">21.4</option>
</select></body></html>`

const stdLinuxHTML = `<html><head><title>Intel® Quartus® Prime Standard Edition Design Software for Linux</title></head><body>
<select id="version-driver-select">
  <option value="/content/www/us/en/software-kit/736572/std-22-1.html">22.1std (Latest)</option>
</select></body></html>`

func TestDiscover(t *testing.T) {
	var bounces atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/landing.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(landingHTML))
	})
	mux.HandleFunc("/kit/pro-windows.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(proWindowsHTML))
	})
	mux.HandleFunc("/kit/std-linux.html", func(w http.ResponseWriter, r *http.Request) {
		// The first visit bounces to the home page.
		if bounces.Add(1) == 1 {
			http.Redirect(w, r, "/homepage.html?ref=kit", http.StatusFound)
			return
		}
		w.Write([]byte(stdLinuxHTML))
	})
	mux.HandleFunc("/homepage.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><title>Intel</title></html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	groups, err := newTestCrawler(t, server.URL, 3).Discover(context.Background())

	// 22.1std is not a version, so the standard group fails while the pro
	// group is still returned.
	require.Error(t, err)
	assert.True(t, retry.IsFatal(err))
	require.Len(t, groups, 1)

	pro := groups[0]
	assert.Equal(t, model.GroupKey{Edition: model.EditionPro, Platform: model.PlatformWindows}, pro.Key())
	require.Len(t, pro.Pages, 3)
	assert.Equal(t, "22.3", pro.Pages[0].Version.String())
	assert.Equal(t, "21.4", pro.Pages[2].Version.String())
	assert.Equal(t, server.URL+"/content/www/us/en/software-kit/746666/pro-22-3.html", pro.Pages[0].URL)
	assert.EqualValues(t, 2, bounces.Load(), "bounced page should be retried once")
}

func TestResolveGroup_HomeRedirectIsRetryable(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/kit/pro-windows.html", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, "/homepage.html?ref=kit", http.StatusFound)
	})
	mux.HandleFunc("/homepage.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("home"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	_, err := newTestCrawler(t, server.URL, 3).ResolveGroup(context.Background(), server.URL+"/kit/pro-windows.html")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRedirectedHome))
	assert.True(t, retry.IsRetryable(err))
	assert.False(t, retry.IsFatal(err))
	assert.Equal(t, 3, retry.Attempts(err))
	assert.EqualValues(t, 3, hits.Load())
}

func TestResolveGroup_Fatal(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		wantErr error
	}{
		{
			name: "no edition in title",
			html: `<html><head><title>Quartus Prime for Windows</title></head><body>
				<select id="version-driver-select"><option value="/a.html">22.3</option></select></body></html>`,
		},
		{
			name:    "no selector",
			html:    `<html><head><title>Quartus Prime Lite for Linux</title></head><body></body></html>`,
			wantErr: ErrNoVersionSelector,
		},
		{
			name: "duplicate version",
			html: `<html><head><title>Quartus Prime Lite for Linux</title></head><body>
				<select id="version-driver-select">
				<option value="/a.html">22.1 (Latest)</option><option value="/b.html">22.1</option>
				</select></body></html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.Write([]byte(tt.html))
			}))
			defer server.Close()

			_, err := newTestCrawler(t, server.URL, 3).ResolveGroup(context.Background(), server.URL+"/kit.html")
			require.Error(t, err)
			assert.True(t, retry.IsFatal(err), "want fatal, got %v", err)
			assert.EqualValues(t, 1, hits.Load(), "fatal errors must not be retried")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDiscover_NoLinks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><a href="/x">Something else</a></body></html>`))
	}))
	defer server.Close()

	_, err := newTestCrawler(t, server.URL, 3).Discover(context.Background())
	assert.ErrorIs(t, err, ErrNoDistributionLinks)
	assert.True(t, retry.IsFatal(err))
}

func TestDiscover_DuplicateGroup(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/landing.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="/a.html">Download for Windows</a><a href="/b.html">Download for Windows</a>`))
	})
	mux.HandleFunc("/a.html", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(proWindowsHTML)) })
	mux.HandleFunc("/b.html", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(proWindowsHTML)) })
	server := httptest.NewServer(mux)
	defer server.Close()

	groups, err := newTestCrawler(t, server.URL, 1).Discover(context.Background())
	assert.ErrorIs(t, err, ErrDuplicateGroup)
	assert.Len(t, groups, 1)
}

func TestFetchVersionPage_AppendsSuffix(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	page, err := newTestCrawler(t, server.URL, 1).FetchVersionPage(context.Background(), server.URL+"/kit/22-3.html")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(page.Body))
	assert.Equal(t, server.URL+"/kit/22-3.html?", page.URL)
}
