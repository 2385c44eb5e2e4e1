package intel

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/handiism/quartus-catalog/internal/model"
	"github.com/handiism/quartus-catalog/internal/retry"
)

const (
	testSiteRoot = "https://www.intel.com"
	testSHA1     = "da39a3ee5e6b4b0d3255bfef95601890afd80709"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}

func newTestParser(t *testing.T) *LinkPageParser {
	t.Helper()
	p, err := NewLinkPageParser(testSiteRoot, quietLogger())
	if err != nil {
		t.Fatalf("NewLinkPageParser: %v", err)
	}
	return p
}

// downloadBlock renders one package block. details are "key: value" lines.
func downloadBlock(button string, details ...string) string {
	var b strings.Builder
	b.WriteString(`<div class="kit-detail-detailed-package__downloads">`)
	b.WriteString(button)
	b.WriteString("<ul>")
	for _, d := range details {
		fmt.Fprintf(&b, `<li class="kit-detail-detailed-package__list-detail">%s</li>`, d)
	}
	b.WriteString("</ul></div>")
	return b.String()
}

func hrefButton(filename string) string {
	return fmt.Sprintf(`<button class="btn" data-href="/content/www/us/en/download/getContent/%s">Download
		%s</button>`, filename, filename)
}

func versionPage(title string, blocks ...string) string {
	return fmt.Sprintf("<html><head><title>%s</title></head><body>%s</body></html>", title, strings.Join(blocks, "\n"))
}

func fullDetails(id int, size string) []string {
	return []string{
		"sha1: " + strings.ToUpper(testSHA1),
		fmt.Sprintf("ID:   %d", id),
		"Version: 22.3",
		"Last Updated: 10/25/2022",
		"Size: " + size,
	}
}

const proLinuxTitle = "Intel® Quartus® Prime Pro Edition Design Software Version 22.3 for Linux"

func TestParse_FullPage(t *testing.T) {
	html := versionPage(proLinuxTitle,
		downloadBlock(hrefButton("QuartusProSetup-22.3.0.104-linux.run"), fullDetails(1, "1.5 MB")...),
		downloadBlock(hrefButton("QuartusHelpSetup-22.3.0.104-linux.run"), fullDetails(2, "2,048 KB")...),
	)

	res, err := newTestParser(t).Parse(html, ParseOptions{SourcePage: "https://example/page.html"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if res.Edition != model.EditionPro || res.Platform != model.PlatformLinux {
		t.Errorf("classified as %s/%s", res.Edition, res.Platform)
	}
	if len(res.Records) != 2 || len(res.Skipped) != 0 {
		t.Fatalf("got %d records, %d skipped", len(res.Records), len(res.Skipped))
	}

	rec := res.Records[0]
	if rec.Filename != "QuartusProSetup-22.3.0.104-linux.run" {
		t.Errorf("Filename = %q", rec.Filename)
	}
	if rec.DirectURL != testSiteRoot+"/content/www/us/en/download/getContent/QuartusProSetup-22.3.0.104-linux.run" {
		t.Errorf("DirectURL = %q", rec.DirectURL)
	}
	if rec.SHA1 != testSHA1 {
		t.Errorf("SHA1 = %q, want lower case", rec.SHA1)
	}
	if rec.ID != 1 || rec.Version.String() != "22.3" {
		t.Errorf("ID = %d, Version = %s", rec.ID, rec.Version)
	}
	if !rec.Updated.Equal(time.Date(2022, 10, 25, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Updated = %v", rec.Updated)
	}
	if rec.Size != 1572864 {
		t.Errorf("Size = %d, want 1572864", rec.Size)
	}
	if rec.Resolved() {
		t.Error("parsed record should not have a CDN URL")
	}
	if res.Records[1].Size != 2097152 {
		t.Errorf("Size with thousands separator = %d", res.Records[1].Size)
	}
	if rec.SourcePage != "https://example/page.html" {
		t.Errorf("SourcePage = %q", rec.SourcePage)
	}
}

func TestParse_MissingChecksumDropsOnlyThatRecord(t *testing.T) {
	noSHA := fullDetails(2, "10 KB")[1:]
	html := versionPage(proLinuxTitle,
		downloadBlock(hrefButton("a.run"), fullDetails(1, "1 GB")...),
		downloadBlock(hrefButton("b.run"), noSHA...),
		downloadBlock(hrefButton("c.run"), fullDetails(3, "2 GB")...),
	)

	res, err := newTestParser(t).Parse(html, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(res.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(res.Records))
	}
	if res.Records[0].Filename != "a.run" || res.Records[1].Filename != "c.run" {
		t.Errorf("kept %s and %s", res.Records[0].Filename, res.Records[1].Filename)
	}
	if res.Records[1].Size != 2147483648 {
		t.Errorf("Size = %d", res.Records[1].Size)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Index != 1 || !strings.Contains(res.Skipped[0].Reason, "sha1") {
		t.Errorf("Skipped = %v", res.Skipped)
	}
}

func TestParse_SkipReasons(t *testing.T) {
	tests := []struct {
		name    string
		details []string
	}{
		{"short checksum", []string{"sha1: abc123", "ID: 1", "Version: 22.3", "Last Updated: 10/25/2022", "Size: 1 MB"}},
		{"bad id", []string{"sha1: " + testSHA1, "ID: one", "Version: 22.3", "Last Updated: 10/25/2022", "Size: 1 MB"}},
		{"bad version", []string{"sha1: " + testSHA1, "ID: 1", "Version: 22.x", "Last Updated: 10/25/2022", "Size: 1 MB"}},
		{"impossible date", []string{"sha1: " + testSHA1, "ID: 1", "Version: 22.3", "Last Updated: 25/10/2022", "Size: 1 MB"}},
		{"unknown unit", []string{"sha1: " + testSHA1, "ID: 1", "Version: 22.3", "Last Updated: 10/25/2022", "Size: 1 TB"}},
		{"missing size", []string{"sha1: " + testSHA1, "ID: 1", "Version: 22.3", "Last Updated: 10/25/2022"}},
	}

	p := newTestParser(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := versionPage(proLinuxTitle, downloadBlock(hrefButton("x.run"), tt.details...))
			res, err := p.Parse(html, ParseOptions{})
			if err != nil {
				t.Fatalf("a bad detail must not fail the page: %v", err)
			}
			if len(res.Records) != 0 || len(res.Skipped) != 1 {
				t.Errorf("got %d records, %d skipped", len(res.Records), len(res.Skipped))
			}
		})
	}
}

func TestParse_InvalidChecksumIsReported(t *testing.T) {
	details := fullDetails(1, "1 MB")
	details[0] = "sha1: " + testSHA1[:39]
	html := versionPage(proLinuxTitle, downloadBlock(hrefButton("x.run"), details...))

	res, err := newTestParser(t).Parse(html, ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Skipped) != 1 || !errors.Is(res.Skipped[0], model.ErrInvalidChecksum) {
		t.Errorf("Skipped = %v, want ErrInvalidChecksum", res.Skipped)
	}
}

func TestParse_DateOrder(t *testing.T) {
	details := fullDetails(1, "1 MB")
	details[3] = "Last Updated: 13/02/2023"
	html := versionPage(proLinuxTitle, downloadBlock(hrefButton("x.run"), details...))
	p := newTestParser(t)

	res, err := p.Parse(html, ParseOptions{DateOrder: model.DateOrderDMY})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 1 || !res.Records[0].Updated.Equal(time.Date(2023, 2, 13, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("dmy parse failed: %+v", res)
	}

	res, err = p.Parse(html, ParseOptions{DateOrder: model.DateOrderMDY})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 0 || len(res.Skipped) != 1 {
		t.Errorf("month 13 under mdy should skip the record, got %+v", res)
	}
}

func TestParse_MalformedButtonIsFatal(t *testing.T) {
	tests := []struct {
		name   string
		button string
	}{
		{"wrong verb", `<button data-href="/getContent/x.run">Get x.run</button>`},
		{"extra words", `<button data-href="/getContent/x.run">Download the x.run file</button>`},
		{"no filename", `<button data-href="/getContent/x.run">Download</button>`},
		{"no button", `<a href="/getContent/x.run">Download x.run</a>`},
	}

	p := newTestParser(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := versionPage(proLinuxTitle, downloadBlock(tt.button, fullDetails(1, "1 MB")...))
			_, err := p.Parse(html, ParseOptions{})
			if !errors.Is(err, ErrMalformedButton) {
				t.Fatalf("err = %v, want ErrMalformedButton", err)
			}
			if !retry.IsFatal(err) {
				t.Error("malformed button should be fatal")
			}
		})
	}
}

func TestParse_DirectPathFallback(t *testing.T) {
	button := `<button data-direct-path="/download/getContent/y.run">Download y.run</button>`
	html := versionPage(proLinuxTitle, downloadBlock(button, fullDetails(1, "1 MB")...))

	res, err := newTestParser(t).Parse(html, ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Records[0].DirectURL; got != testSiteRoot+"/download/getContent/y.run" {
		t.Errorf("DirectURL = %q", got)
	}
}

func TestParse_PlatformFromDetails(t *testing.T) {
	title := "Intel® Quartus® Prime Pro Edition Design Software Version 22.2"
	withOS := append(fullDetails(1, "1 MB"), "OS: Windows*")
	html := versionPage(title,
		downloadBlock(hrefButton("win.exe"), withOS...),
		downloadBlock(hrefButton("mpfr.tar"), fullDetails(2, "1 MB")...),
	)

	res, err := newTestParser(t).Parse(html, ParseOptions{})
	if err != nil {
		t.Fatalf("missing title platform must not be fatal: %v", err)
	}
	if res.Platform != model.PlatformUnknown {
		t.Errorf("page Platform = %q, want unknown", res.Platform)
	}
	if len(res.Records) != 1 || res.Records[0].Platform != model.PlatformWindows {
		t.Fatalf("Records = %+v", res.Records)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Index != 1 {
		t.Errorf("block without any platform should be skipped, Skipped = %v", res.Skipped)
	}
}

func TestParse_EditionHint(t *testing.T) {
	noEdition := "Intel® Quartus® Prime Design Software Version 17.0 for Windows"
	html := versionPage(noEdition, downloadBlock(hrefButton("x.exe"), fullDetails(1, "1 MB")...))
	p := newTestParser(t)

	res, err := p.Parse(html, ParseOptions{EditionHint: model.EditionStandard})
	if err != nil {
		t.Fatal(err)
	}
	if res.Edition != model.EditionStandard || res.Records[0].Edition != model.EditionStandard {
		t.Errorf("hint not applied: %s", res.Edition)
	}

	if _, err := p.Parse(html, ParseOptions{}); !retry.IsFatal(err) {
		t.Errorf("no edition and no hint should be fatal, got %v", err)
	}

	html = versionPage(proLinuxTitle, downloadBlock(hrefButton("x.run"), fullDetails(1, "1 MB")...))
	_, err = p.Parse(html, ParseOptions{EditionHint: model.EditionLite})
	if !errors.Is(err, ErrEditionMismatch) || !retry.IsFatal(err) {
		t.Errorf("err = %v, want fatal ErrEditionMismatch", err)
	}
}

func TestParse_AmbiguousTitleIsFatal(t *testing.T) {
	html := versionPage("Quartus Pro and Standard for Linux", downloadBlock(hrefButton("x.run"), fullDetails(1, "1 MB")...))
	_, err := newTestParser(t).Parse(html, ParseOptions{})
	var ce *ClassificationError
	if !errors.As(err, &ce) || !retry.IsFatal(err) {
		t.Fatalf("err = %v, want fatal ClassificationError", err)
	}
	if len(ce.Matches) != 2 {
		t.Errorf("Matches = %v", ce.Matches)
	}
}

func TestParse_NoBlocks(t *testing.T) {
	res, err := newTestParser(t).Parse(versionPage(proLinuxTitle), ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 0 {
		t.Errorf("Records = %v", res.Records)
	}
}
