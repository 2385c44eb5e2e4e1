// Package http provides the cookie carrying session used for every request
// to the distribution site.
//
// The Session in this package handles:
//   - A browser User-Agent header, which the site requires
//   - The authenticated cookie jar handed in by the caller
//   - A shared request rate limit across workers
//   - Classification of failures for the retry package
//
// # Basic Usage
//
//	session, err := http.NewSession(http.DefaultOptions())
//	defer session.Close()
//
//	page, err := session.GetPage(ctx, landingURL)
//	fmt.Println(page.URL) // final URL after redirects
//
// # Private cookie jars
//
// Head and Discard accept a jar that replaces the session jar for that one
// request. RecordingJar additionally tracks cookie expiry:
//
//	jar, _ := http.NewRecordingJar(nil)
//	final, err := session.Head(ctx, directURL, jar)
//	if jar.ExpiresWithin(time.Minute) {
//	    // refresh
//	}
package http
