// Package intel reads the Intel FPGA software download center.
//
// The package covers three steps of building a catalog:
//
//  1. Crawler discovers one DistributionGroup per edition and platform from
//     the landing page, each with its version to page URL table
//  2. LinkPageParser turns a version page into ArtifactRecords
//  3. Resolver performs the EULA cookie handshake that turns a record's
//     direct URL into a CDN URL
//
// Every network call runs under a retry.Controller. Errors are classified
// as retryable (a bounce to the home page, transient HTTP failures) or
// fatal (the page layout is not what this package understands). Blocks on
// a version page with missing or invalid details are skipped and reported
// without failing the page.
//
// # Discovery
//
//	crawler, err := intel.NewCrawler(session, ctl, cfg, log)
//	groups, err := crawler.Discover(ctx)
//
// # Parsing
//
//	parser, err := intel.NewLinkPageParser(siteRoot, log)
//	page, err := crawler.FetchVersionPage(ctx, group.Pages[0].URL)
//	res, err := parser.Parse(string(page.Body), intel.ParseOptions{
//	    EditionHint: group.Edition,
//	    DateOrder:   model.DateOrderMDY,
//	    SourcePage:  page.URL,
//	})
//
// # Resolution
//
//	resolver := intel.NewResolver(session, ctl, intel.DefaultResolverConfig(), log)
//	err := resolver.ResolveRecord(ctx, res.Records[0])
package intel
