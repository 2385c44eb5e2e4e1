package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCDNURLConflict is returned when a record that already carries a CDN
// URL is given a different one without an explicit ResetCDNURL.
var ErrCDNURLConflict = errors.New("cdn url already set to a different value")

// ArtifactRecord describes one downloadable file listed on a version page.
//
// Records are created by the link page parser without a CDN URL. The CDN
// resolver fills it in exactly once through SetCDNURL. A record is owned by
// a single goroutine at a time; it carries no lock of its own.
type ArtifactRecord struct {
	// Filename is the name shown on the "Download <filename>" button.
	Filename string

	// DirectURL is the temporary download reference that still needs the
	// EULA handshake before it serves bytes.
	DirectURL string

	// SHA1 is the lower-case 40 character hex checksum.
	SHA1 string

	// Version is the release the artifact belongs to.
	Version Version

	// ID is the numeric identifier the site assigns to the artifact.
	ID int64

	// Updated is the "Last Updated" date, at midnight UTC.
	Updated time.Time

	// Size is the listed size in bytes. It comes from a rounded human
	// readable value, so it is approximate.
	Size int64

	Platform Platform
	Edition  Edition

	// SourcePage is the version page the record was parsed from.
	SourcePage string

	cdnURL string
}

// CDNURL returns the resolved content delivery URL, or "" when unresolved.
func (r *ArtifactRecord) CDNURL() string {
	return r.cdnURL
}

// Resolved reports whether the CDN URL has been set.
func (r *ArtifactRecord) Resolved() bool {
	return r.cdnURL != ""
}

// SetCDNURL records the resolved CDN URL.
//
// Setting the value a record already holds is a no-op. Setting a different
// value returns ErrCDNURLConflict; call ResetCDNURL first to re-resolve.
func (r *ArtifactRecord) SetCDNURL(u string) error {
	if u == "" {
		return fmt.Errorf("empty cdn url for %s", r.Filename)
	}
	if r.cdnURL == "" {
		r.cdnURL = u
		return nil
	}
	if r.cdnURL != u {
		return fmt.Errorf("%s: %w (have %s, got %s)", r.Filename, ErrCDNURLConflict, r.cdnURL, u)
	}
	return nil
}

// ResetCDNURL clears the CDN URL so the record can be resolved again.
func (r *ArtifactRecord) ResetCDNURL() {
	r.cdnURL = ""
}

type artifactJSON struct {
	Filename   string   `json:"filename"`
	DirectURL  string   `json:"direct_url"`
	CDNURL     string   `json:"cdn_url,omitempty"`
	SHA1       string   `json:"sha1"`
	Version    Version  `json:"version"`
	ID         int64    `json:"id"`
	Updated    string   `json:"updated"`
	Size       int64    `json:"size"`
	Platform   Platform `json:"platform"`
	Edition    Edition  `json:"edition"`
	SourcePage string   `json:"source_page,omitempty"`
}

const dateLayout = "2006-01-02"

// MarshalJSON encodes the record including its CDN URL.
func (r *ArtifactRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(artifactJSON{
		Filename:   r.Filename,
		DirectURL:  r.DirectURL,
		CDNURL:     r.cdnURL,
		SHA1:       r.SHA1,
		Version:    r.Version,
		ID:         r.ID,
		Updated:    r.Updated.Format(dateLayout),
		Size:       r.Size,
		Platform:   r.Platform,
		Edition:    r.Edition,
		SourcePage: r.SourcePage,
	})
}

// UnmarshalJSON decodes a record written by MarshalJSON.
func (r *ArtifactRecord) UnmarshalJSON(data []byte) error {
	var aux artifactJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	updated, err := time.Parse(dateLayout, aux.Updated)
	if err != nil {
		return fmt.Errorf("updated: %w", err)
	}
	*r = ArtifactRecord{
		Filename:   aux.Filename,
		DirectURL:  aux.DirectURL,
		SHA1:       aux.SHA1,
		Version:    aux.Version,
		ID:         aux.ID,
		Updated:    updated,
		Size:       aux.Size,
		Platform:   aux.Platform,
		Edition:    aux.Edition,
		SourcePage: aux.SourcePage,
		cdnURL:     aux.CDNURL,
	}
	return nil
}
