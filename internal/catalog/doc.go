// Package catalog runs the full catalog pipeline and holds its result.
//
// A run has three stages, each on a bounded worker pool:
//
//  1. Initialize: discover distribution groups, or take them from settings
//  2. CollectArtifacts: fetch and parse every version page
//  3. ResolveCDN: run the EULA handshake for every artifact
//
// The pipeline is not transactional. A failed page or resolution is
// recorded in Catalog.Failures and everything else is kept.
//
// # Basic Usage
//
//	session, err := http.NewSession(settings.SessionOptions())
//	defer session.Close()
//
//	manager, err := catalog.NewManager(settings, session, log, func(e catalog.ProgressEvent) {
//	    fmt.Println(e.Message)
//	})
//	cat, err := manager.Run(ctx, catalog.RunOptions{})
//	err = ioutils.WriteJSON(ctx, "catalog.json", cat)
package catalog
