package intel

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/handiism/quartus-catalog/internal/model"
	"github.com/handiism/quartus-catalog/internal/retry"
)

var (
	// ErrMalformedButton is returned when a download block has no button or
	// its label is not "Download <filename>".
	ErrMalformedButton = errors.New("malformed download button")

	// ErrEditionMismatch is returned when the page title names a different
	// edition than the group the page was reached from.
	ErrEditionMismatch = errors.New("page edition does not match group")
)

const (
	blockSelector  = "div.kit-detail-detailed-package__downloads"
	buttonSelector = "button[data-href], button[data-direct-path]"
	detailSelector = "li.kit-detail-detailed-package__list-detail"

	buttonLabel = "Download"
)

// Detail keys read from a download block.
const (
	keySHA1    = "sha1"
	keyID      = "ID"
	keyVersion = "Version"
	keyUpdated = "Last Updated"
	keySize    = "Size"
	keyOS      = "OS"
)

var requiredKeys = []string{keySHA1, keyID, keyVersion, keyUpdated, keySize}

// ParseOptions carries what the caller knows about a page before parsing.
type ParseOptions struct {
	// EditionHint is the edition of the group that listed the page. It is
	// used when the title names none and must agree when it does.
	EditionHint model.Edition

	// DateOrder selects how "Last Updated" is read. Defaults to mdy.
	DateOrder model.DateOrder

	// SourcePage is recorded on every record and in skip reports.
	SourcePage string
}

// ParseResult is the outcome of parsing one version page.
type ParseResult struct {
	Edition  model.Edition
	Platform model.Platform
	Records  []*model.ArtifactRecord
	Skipped  []*SkipError
}

// SkipError reports a download block that was dropped. The rest of the page
// is unaffected.
type SkipError struct {
	Page   string
	Index  int
	Reason string
	Err    error
}

func (e *SkipError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("skipped block %d on %s: %s: %v", e.Index, e.Page, e.Reason, e.Err)
	}
	return fmt.Sprintf("skipped block %d on %s: %s", e.Index, e.Page, e.Reason)
}

func (e *SkipError) Unwrap() error { return e.Err }

// LinkPageParser turns the HTML of a version page into artifact records.
type LinkPageParser struct {
	root *url.URL
	log  logrus.FieldLogger
}

// NewLinkPageParser creates a parser that resolves button paths against
// siteRoot.
func NewLinkPageParser(siteRoot string, log logrus.FieldLogger) (*LinkPageParser, error) {
	root, err := url.Parse(siteRoot)
	if err != nil || root.Scheme == "" || root.Host == "" {
		return nil, fmt.Errorf("invalid site root %q", siteRoot)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LinkPageParser{root: root, log: log}, nil
}

// Parse reads every download block on the page.
//
// A returned error is always fatal: the page layout is not what the parser
// understands. Blocks with missing or invalid details are dropped, logged,
// and listed in ParseResult.Skipped.
func (p *LinkPageParser) Parse(pageHTML string, opts ParseOptions) (*ParseResult, error) {
	if opts.DateOrder == "" {
		opts.DateOrder = model.DateOrderMDY
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("parse %s: %w", opts.SourcePage, err))
	}

	title := pageTitle(doc)
	edition, err := p.edition(title, opts.EditionHint)
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("%s: %w", opts.SourcePage, err))
	}
	// Some legacy pages leave the platform out of the title.
	platform, err := classifyPlatformOptional(title)
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("%s: %w", opts.SourcePage, err))
	}

	result := &ParseResult{Edition: edition, Platform: platform}
	log := p.log.WithFields(logrus.Fields{
		"page":     opts.SourcePage,
		"edition":  edition,
		"platform": platform,
	})

	var fatal error
	doc.Find(blockSelector).EachWithBreak(func(i int, block *goquery.Selection) bool {
		rec, err := p.parseBlock(i, block, edition, platform, opts)
		var skip *SkipError
		switch {
		case errors.As(err, &skip):
			log.WithField("block", i).WithError(err).Warn("dropping artifact record")
			result.Skipped = append(result.Skipped, skip)
		case err != nil:
			fatal = err
			return false
		default:
			result.Records = append(result.Records, rec)
		}
		return true
	})
	if fatal != nil {
		return nil, fatal
	}

	log.WithFields(logrus.Fields{
		"records": len(result.Records),
		"skipped": len(result.Skipped),
	}).Debug("parsed version page")
	return result, nil
}

func (p *LinkPageParser) edition(title string, hint model.Edition) (model.Edition, error) {
	edition, err := ClassifyEdition(title)
	if err != nil {
		var ce *ClassificationError
		if hint != "" && errors.As(err, &ce) && len(ce.Matches) == 0 {
			return hint, nil
		}
		return "", err
	}
	if hint != "" && hint != edition {
		return "", fmt.Errorf("%w: title says %s, group is %s", ErrEditionMismatch, edition, hint)
	}
	return edition, nil
}

func (p *LinkPageParser) parseBlock(i int, block *goquery.Selection, edition model.Edition, platform model.Platform, opts ParseOptions) (*model.ArtifactRecord, error) {
	skip := func(reason string, err error) error {
		return &SkipError{Page: opts.SourcePage, Index: i, Reason: reason, Err: err}
	}

	filename, directURL, err := p.button(block)
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("%s: block %d: %w", opts.SourcePage, i, err))
	}

	details := readDetails(block)
	for _, key := range requiredKeys {
		if _, ok := details[key]; !ok {
			return nil, skip(fmt.Sprintf("missing %q", key), nil)
		}
	}

	sha1, err := model.NormalizeChecksum(details[keySHA1])
	if err != nil {
		return nil, skip("bad checksum", err)
	}
	id, err := strconv.ParseInt(details[keyID], 10, 64)
	if err != nil {
		return nil, skip("bad id", err)
	}
	version, err := model.ParseVersion(details[keyVersion])
	if err != nil {
		return nil, skip("bad version", err)
	}
	updated, err := model.ParseDate(details[keyUpdated], opts.DateOrder)
	if err != nil {
		return nil, skip("bad date", err)
	}
	size, err := model.ParseByteSize(details[keySize])
	if err != nil {
		return nil, skip("bad size", err)
	}

	if platform == model.PlatformUnknown {
		osName, ok := details[keyOS]
		if !ok {
			return nil, skip("no platform in title or details", nil)
		}
		platform, err = ClassifyPlatform(osName)
		if err != nil {
			return nil, skip("unknown platform", err)
		}
	}

	return &model.ArtifactRecord{
		Filename:   filename,
		DirectURL:  directURL,
		SHA1:       sha1,
		Version:    version,
		ID:         id,
		Updated:    updated,
		Size:       size,
		Platform:   platform,
		Edition:    edition,
		SourcePage: opts.SourcePage,
	}, nil
}

// button returns the filename and absolute direct URL of a block's download
// button.
func (p *LinkPageParser) button(block *goquery.Selection) (string, string, error) {
	btn := block.Find(buttonSelector).First()
	if btn.Length() == 0 {
		return "", "", fmt.Errorf("%w: no button", ErrMalformedButton)
	}

	target, ok := btn.Attr("data-href")
	if !ok || strings.TrimSpace(target) == "" {
		target, _ = btn.Attr("data-direct-path")
	}
	ref, err := url.Parse(strings.TrimSpace(target))
	if err != nil || ref.String() == "" {
		return "", "", fmt.Errorf("%w: bad target %q", ErrMalformedButton, target)
	}

	label := strings.Fields(btn.Text())
	if len(label) != 2 || label[0] != buttonLabel {
		return "", "", fmt.Errorf("%w: label %q", ErrMalformedButton, normalizeSpace(btn.Text()))
	}

	return label[1], p.root.ResolveReference(ref).String(), nil
}

// readDetails collects the "key: value" entries of a block. The first entry
// for a key wins.
func readDetails(block *goquery.Selection) map[string]string {
	details := make(map[string]string)
	block.Find(detailSelector).Each(func(_ int, li *goquery.Selection) {
		key, value, ok := strings.Cut(normalizeSpace(li.Text()), ": ")
		if !ok {
			return
		}
		if _, dup := details[key]; !dup {
			details[key] = strings.TrimSpace(value)
		}
	})
	return details
}
