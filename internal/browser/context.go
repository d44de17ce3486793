// File: internal/browser/context.go
package browser

import "context"

// combineContext derives a context from primaryCtx that is additionally
// canceled when secondaryCtx is done. Used to run chromedp actions on the
// tab's context while still honoring the caller's cancellation.
func combineContext(primaryCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(primaryCtx)

	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
