// internal/driver/cdp/context_utils.go
package cdp

import (
	"context"
)

// CombineContext returns a context derived from tabCtx that is also canceled
// when opCtx is done. Values (the chromedp target) come from tabCtx; the
// operation deadline comes from opCtx.
func CombineContext(tabCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(tabCtx)
	stop := context.AfterFunc(opCtx, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}
