package export

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/handiism/quartus-catalog/internal/model"
)

// ListFormat represents supported download list formats.
//
// Each format targets a different downloader:
//   - URLs: one URL per line, for wget -i or curl
//   - Aria2: aria2c input file with output name and checksum options
//   - Metalink: Metalink 4 XML (RFC 5854), with size and hash per file
type ListFormat int

const (
	// FormatURLs creates plain .txt URL lists (most compatible).
	FormatURLs ListFormat = iota

	// FormatAria2 creates aria2c input files. aria2 verifies the sha1
	// after each download.
	FormatAria2

	// FormatMetalink creates .meta4 files.
	FormatMetalink
)

// ParseListFormat maps a format name to a ListFormat.
func ParseListFormat(s string) (ListFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "urls", "txt":
		return FormatURLs, nil
	case "aria2":
		return FormatAria2, nil
	case "metalink", "meta4":
		return FormatMetalink, nil
	}
	return 0, fmt.Errorf("unknown list format %q", s)
}

// Extension returns the file extension for the format.
func (f ListFormat) Extension() string {
	switch f {
	case FormatAria2:
		return ".aria2"
	case FormatMetalink:
		return ".meta4"
	default:
		return ".txt"
	}
}

// ListCreator generates download lists for resolved artifacts.
//
// Only records with a CDN URL are listed; a direct URL is useless to a
// downloader without the EULA handshake. Records sharing a filename are
// listed once, first one wins.
//
// Example:
//
//	creator := NewListCreator(FormatAria2)
//	content, err := creator.CreateList(cat.Artifacts)
//	ioutils.WriteFile(ctx, "quartus.aria2", content)
//
//	// Result:
//	// https://downloads.intel.com/akdlm/.../QuartusProSetup-23.1.0.115-linux.run
//	//   out=QuartusProSetup-23.1.0.115-linux.run
//	//   checksum=sha-1=3b5c...
type ListCreator struct {
	format ListFormat
}

// NewListCreator creates a new ListCreator.
func NewListCreator(format ListFormat) *ListCreator {
	return &ListCreator{format: format}
}

// CreateList generates list content for records, in record order.
func (c *ListCreator) CreateList(records []*model.ArtifactRecord) ([]byte, error) {
	entries := listable(records)
	switch c.format {
	case FormatAria2:
		return c.createAria2(entries), nil
	case FormatMetalink:
		return c.createMetalink(entries)
	default:
		return c.createURLs(entries), nil
	}
}

func listable(records []*model.ArtifactRecord) []*model.ArtifactRecord {
	seen := make(map[string]bool, len(records))
	out := make([]*model.ArtifactRecord, 0, len(records))
	for _, r := range records {
		if !r.Resolved() || seen[r.Filename] {
			continue
		}
		seen[r.Filename] = true
		out = append(out, r)
	}
	return out
}

// createURLs generates a plain URL list:
//
//	https://downloads.intel.com/akdlm/.../file1.run
//	https://downloads.intel.com/akdlm/.../file2.exe
func (c *ListCreator) createURLs(records []*model.ArtifactRecord) []byte {
	var sb strings.Builder
	for _, r := range records {
		sb.WriteString(r.CDNURL() + "\n")
	}
	return []byte(sb.String())
}

// createAria2 generates an aria2c input file. Options of an entry are the
// indented lines under its URL.
func (c *ListCreator) createAria2(records []*model.ArtifactRecord) []byte {
	var sb strings.Builder
	for _, r := range records {
		sb.WriteString(r.CDNURL() + "\n")
		sb.WriteString(fmt.Sprintf("  out=%s\n", r.Filename))
		sb.WriteString(fmt.Sprintf("  checksum=sha-1=%s\n", r.SHA1))
	}
	return []byte(sb.String())
}

const metalinkNamespace = "urn:ietf:params:xml:ns:metalink"

type metalink struct {
	XMLName   xml.Name       `xml:"metalink"`
	Namespace string         `xml:"xmlns,attr"`
	Generator string         `xml:"generator"`
	Files     []metalinkFile `xml:"file"`
}

type metalinkFile struct {
	Name string       `xml:"name,attr"`
	Hash metalinkHash `xml:"hash"`
	URL  string       `xml:"url"`
}

type metalinkHash struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// createMetalink generates a Metalink 4 document.
//
// There is no size element. Listed sizes are rounded and clients reject a
// file whose size differs.
func (c *ListCreator) createMetalink(records []*model.ArtifactRecord) ([]byte, error) {
	doc := metalink{
		Namespace: metalinkNamespace,
		Generator: "quartus-catalog",
		Files:     make([]metalinkFile, 0, len(records)),
	}
	for _, r := range records {
		doc.Files = append(doc.Files, metalinkFile{
			Name: r.Filename,
			Hash: metalinkHash{Type: "sha-1", Value: r.SHA1},
			URL:  r.CDNURL(),
		})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode metalink: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}
