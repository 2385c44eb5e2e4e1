// Package model defines the data structures shared by the crawler, the link
// page parser and the CDN resolver.
//
// # Distribution groups
//
// A DistributionGroup lists every release of one edition for one platform,
// each release pointing at the page that lists its artifacts:
//
//	g, err := model.NewDistributionGroup(model.EditionPro, model.PlatformLinux, pages)
//	url, ok := g.Lookup(model.MustParseVersion("22.3"))
//
// # Artifact records
//
// ArtifactRecord holds the metadata parsed from a version page. Its CDN URL
// is set once by the resolver:
//
//	if err := rec.SetCDNURL(cdn); err != nil {
//	    // a different URL was already recorded
//	}
//
// # Field parsing
//
// ParseVersion, ParseByteSize, NormalizeChecksum and ParseDate turn the
// listed text values into typed fields.
package model
