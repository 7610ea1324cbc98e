package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ariadriver/api/schemas"
	"github.com/xkilldash9x/ariadriver/internal/observability"
)

// node wraps a live chromedp node as an opaque element handle.
type node struct {
	n *cdp.Node
}

func (e *node) ID() string { return strconv.FormatInt(int64(e.n.BackendNodeID), 10) }

// Session is one browser tab driven over the DevTools protocol.
type Session struct {
	id             string
	ctx            context.Context // chromedp tab context, master for the session's lifecycle.
	cancel         context.CancelFunc
	logger         *zap.Logger
	commandTimeout time.Duration
	observer       SessionLifecycleObserver

	// opMu serializes commands; the remote backend is the implicit
	// serialization point of a session and we never interleave on it.
	opMu        sync.Mutex
	closeStatus int32
	closeOnce   sync.Once
}

var _ schemas.SessionBackend = (*Session)(nil)

func newSession(ctx context.Context, cancel context.CancelFunc, logger *zap.Logger, commandTimeout time.Duration, observer SessionLifecycleObserver) *Session {
	id := uuid.New().String()
	return &Session{
		id:             id,
		ctx:            ctx,
		cancel:         cancel,
		logger:         observability.ForSession(logger, "session", id),
		commandTimeout: commandTimeout,
		observer:       observer,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// run executes actions on the tab, bounded by the caller's context and the
// configured per-command timeout.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if atomic.LoadInt32(&s.closeStatus) != 0 {
		return fmt.Errorf("session %s is closed", s.id)
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	if s.commandTimeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, s.commandTimeout)
		defer cancelTimeout()
	}
	return chromedp.Run(runCtx, actions...)
}

func asNode(el schemas.Element) (*cdp.Node, error) {
	n, ok := el.(*node)
	if !ok || n.n == nil {
		return nil, fmt.Errorf("element handle %T was not issued by a chromedp session", el)
	}
	return n.n, nil
}

// Navigate loads url and waits for the body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))
	if err := s.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// QueryAll returns every match in document order without waiting for one to appear.
func (s *Session) QueryAll(ctx context.Context, selector string) ([]schemas.Element, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("querying %q: %w", selector, err)
	}
	out := make([]schemas.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &node{n: n}
	}
	return out, nil
}

// Attribute reads the live attribute value rather than the cached node copy.
func (s *Session) Attribute(ctx context.Context, el schemas.Element, name string) (string, bool, error) {
	n, err := asNode(el)
	if err != nil {
		return "", false, err
	}
	var attrs []string
	err = s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		attrs, err = dom.GetAttributes(n.NodeID).Do(ctx)
		return err
	}))
	if err != nil {
		return "", false, fmt.Errorf("reading attribute %s: %w", name, err)
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i] == name {
			return attrs[i+1], true, nil
		}
	}
	return "", false, nil
}

// Focus issues DOM.focus on the element.
func (s *Session) Focus(ctx context.Context, el schemas.Element) error {
	n, err := asNode(el)
	if err != nil {
		return err
	}
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return dom.Focus().WithNodeID(n.NodeID).Do(ctx)
	}))
}

const isActiveFunction = `function() {
	let active = document.activeElement;
	while (active && active.shadowRoot && active.shadowRoot.activeElement) {
		active = active.shadowRoot.activeElement;
	}
	return active === this;
}`

// IsActive compares the page's active element with el.
func (s *Session) IsActive(ctx context.Context, el schemas.Element) (bool, error) {
	n, err := asNode(el)
	if err != nil {
		return false, err
	}
	var active bool
	err = s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.CallFunctionOnNode(ctx, n, isActiveFunction, &active)
	}))
	if err != nil {
		return false, fmt.Errorf("reading active element: %w", err)
	}
	return active, nil
}

// PressKey dispatches key to the element.
func (s *Session) PressKey(ctx context.Context, el schemas.Element, key string) error {
	n, err := asNode(el)
	if err != nil {
		return err
	}
	s.logger.Debug("Dispatching key", zap.String("key", strconv.Quote(key)), zap.String("node", el.ID()))
	return s.run(ctx, chromedp.KeyEventNode(n, key))
}

const countVisibleScript = `(function(selector) {
	return Array.from(document.querySelectorAll(selector)).filter(function(el) {
		const style = window.getComputedStyle(el);
		return el.getClientRects().length > 0 && style.visibility !== 'hidden' && style.visibility !== 'collapse' && style.display !== 'none';
	}).length;
})(%s)`

// CountVisible counts rendered matches of selector.
func (s *Session) CountVisible(ctx context.Context, selector string) (int, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(countVisibleScript, quoted), &count)); err != nil {
		return 0, fmt.Errorf("counting visible %q: %w", selector, err)
	}
	return count, nil
}

// Close cancels the tab context, which closes the target.
func (s *Session) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.closeStatus, 0, 1) {
		s.logger.Debug("Close called on an already closing session.")
		return nil
	}
	s.closeOnce.Do(func() {
		s.logger.Info("Initiating session shutdown.")
		done := make(chan struct{})
		go func() {
			s.opMu.Lock()
			defer s.opMu.Unlock()
			if err := chromedp.Cancel(s.ctx); err != nil {
				s.logger.Debug("Cancelling tab context", zap.Error(err))
			}
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.logger.Warn("Session close timed out; forcing cancellation.", zap.Error(ctx.Err()))
		}
		s.cancel()
		if s.observer != nil {
			s.observer.unregisterSession(s)
		}
		s.logger.Info("Session closed.")
	})
	return nil
}
