// Package retry runs network operations under a bounded retry policy.
//
// Failures are classified by the operation itself:
//
//	err := ctl.Do(ctx, "landing page", func(ctx context.Context) error {
//	    page, err := session.GetPage(ctx, landingURL)
//	    if err != nil {
//	        return err // the session already marks transient failures retryable
//	    }
//	    if !looksRight(page) {
//	        return retry.Fatalf("unexpected layout at %s", page.URL)
//	    }
//	    return nil
//	})
//
// Retryable errors are attempted again after an exponential wait. Fatal
// and unclassified errors are returned immediately. When the attempts run
// out the caller gets an *ExhaustedError carrying the attempt count.
package retry
