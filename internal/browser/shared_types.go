package browser

import (
	"context"
)

// SessionLifecycleObserver is notified when a session is terminated.
type SessionLifecycleObserver interface {
	unregisterSession(s *Session)
}

// CombineContext derives a context from sessionCtx (inheriting its values,
// including the chromedp target) that is also cancelled when opCtx is done.
// Callers keep control of timeouts through opCtx while chromedp still finds
// its session information.
func CombineContext(sessionCtx context.Context, opCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(sessionCtx)

	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
