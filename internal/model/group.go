package model

import (
	"fmt"
)

// Edition is a product tier of the distribution.
type Edition string

const (
	EditionPro      Edition = "pro"
	EditionStandard Edition = "standard"
	EditionLite     Edition = "lite"
)

// Editions lists every known edition in display order.
var Editions = []Edition{EditionPro, EditionStandard, EditionLite}

// Valid reports whether e is one of the known editions.
func (e Edition) Valid() bool {
	switch e {
	case EditionPro, EditionStandard, EditionLite:
		return true
	}
	return false
}

// Platform is the operating system an artifact targets.
type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"

	// PlatformUnknown marks a page whose title names no platform. It never
	// appears on a finished ArtifactRecord.
	PlatformUnknown Platform = ""
)

// Platforms lists every known platform in display order.
var Platforms = []Platform{PlatformWindows, PlatformLinux}

// Valid reports whether p is windows or linux.
func (p Platform) Valid() bool {
	return p == PlatformWindows || p == PlatformLinux
}

// GroupKey identifies a DistributionGroup within one crawl.
type GroupKey struct {
	Edition  Edition
	Platform Platform
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%s", k.Edition, k.Platform)
}

// VersionPage links one release to the page listing its artifacts.
type VersionPage struct {
	Version Version `json:"version"`
	URL     string  `json:"url"`
}

// DistributionGroup is every release of one edition for one platform.
//
// Pages keep the order in which the site lists them, which is usually
// newest first but is not guaranteed to be sorted.
//
// A group is read-only once built. NewDistributionGroup keeps its own copy
// of the pages and Versions returns a fresh slice; Pages is exported for
// ranging and JSON and must not be modified in place.
type DistributionGroup struct {
	Edition  Edition       `json:"edition"`
	Platform Platform      `json:"platform"`
	Pages    []VersionPage `json:"pages"`
}

// NewDistributionGroup builds a group and rejects duplicate versions.
func NewDistributionGroup(edition Edition, platform Platform, pages []VersionPage) (*DistributionGroup, error) {
	if !edition.Valid() {
		return nil, fmt.Errorf("invalid edition %q", edition)
	}
	if !platform.Valid() {
		return nil, fmt.Errorf("invalid platform %q", platform)
	}

	for i := range pages {
		for j := 0; j < i; j++ {
			if pages[i].Version.Equal(pages[j].Version) {
				return nil, fmt.Errorf("%s/%s: duplicate version %s", edition, platform, pages[i].Version)
			}
		}
	}

	out := make([]VersionPage, len(pages))
	copy(out, pages)
	return &DistributionGroup{Edition: edition, Platform: platform, Pages: out}, nil
}

// Key returns the (edition, platform) pair of the group.
func (g *DistributionGroup) Key() GroupKey {
	return GroupKey{Edition: g.Edition, Platform: g.Platform}
}

// Lookup returns the page URL listed for v.
func (g *DistributionGroup) Lookup(v Version) (string, bool) {
	for _, p := range g.Pages {
		if p.Version.Equal(v) {
			return p.URL, true
		}
	}
	return "", false
}

// Versions returns the group's versions in listing order.
func (g *DistributionGroup) Versions() []Version {
	out := make([]Version, len(g.Pages))
	for i, p := range g.Pages {
		out[i] = p.Version
	}
	return out
}
