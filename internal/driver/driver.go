// Package driver is the widget verification engine. A Driver wraps exactly
// one backend session, owns that session's diagnostic sink, and exposes the
// page operations and the per kind widget operations.
package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ariadriver/api/schemas"
	"github.com/xkilldash9x/ariadriver/internal/browser"
	"github.com/xkilldash9x/ariadriver/internal/config"
	"github.com/xkilldash9x/ariadriver/internal/diagnostics"
	"github.com/xkilldash9x/ariadriver/internal/observability"
	"github.com/xkilldash9x/ariadriver/internal/patience"
)

// Options configures a Driver. The zero value is usable: patience defaults
// to one second and the poll interval to patience.DefaultInterval.
type Options struct {
	// Patience bounds every wait. It is fixed for the driver's lifetime.
	// Nil selects the default; a negative value is rejected.
	Patience     *time.Duration
	PollInterval time.Duration
	Logger       *zap.Logger
	Metrics      *observability.Metrics
}

// DefaultPatience is used when Options.Patience is nil.
const DefaultPatience = config.DefaultPatienceMs * time.Millisecond

// Driver drives one browser session.
type Driver struct {
	backend  schemas.Backend
	logger   *zap.Logger
	patience time.Duration
	poller   *patience.Poller
	sink     *diagnostics.Sink
	metrics  *observability.Metrics

	// shutdown tears down whatever created the backend, if the driver owns it.
	shutdown func(ctx context.Context) error
	quitOnce sync.Once
	quitErr  error
}

// New wraps backend. The driver takes ownership: Quit closes the backend.
func New(backend schemas.Backend, opts Options) (*Driver, error) {
	if backend == nil {
		return nil, fmt.Errorf("driver requires a backend")
	}
	p := DefaultPatience
	if opts.Patience != nil {
		p = *opts.Patience
	}
	if p < 0 {
		return nil, fmt.Errorf("patience must be non-negative, got %s", p)
	}

	var sessionID string
	if sb, ok := backend.(schemas.SessionBackend); ok {
		sessionID = sb.ID()
	}
	logger := observability.ForSession(opts.Logger, "driver", sessionID)

	d := &Driver{
		backend:  backend,
		logger:   logger,
		patience: p,
		poller:   patience.NewPoller(opts.PollInterval),
		sink:     diagnostics.NewSink(logger),
		metrics:  opts.Metrics,
	}
	if d.metrics != nil {
		d.sink.OnPublish(func(w diagnostics.Warning) {
			d.metrics.ObserveDiagnostic(string(w.Code))
		})
	}
	return d, nil
}

// Connect opens a session through a browser manager built from cfg and
// returns a driver that owns both.
func Connect(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mgr, err := browser.NewManager(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	session, err := mgr.NewSession(ctx)
	if err != nil {
		_ = mgr.Shutdown(ctx)
		return nil, fmt.Errorf("opening browser session: %w", err)
	}

	p := cfg.Driver.Patience()
	d, err := New(session, Options{
		Patience:     &p,
		PollInterval: cfg.Driver.PollInterval,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		_ = mgr.Shutdown(ctx)
		return nil, err
	}
	d.shutdown = mgr.Shutdown
	return d, nil
}

// Patience returns the fixed bound applied to every wait.
func (d *Driver) Patience() time.Duration { return d.patience }

// Get navigates the session to url.
func (d *Driver) Get(ctx context.Context, url string) error {
	d.logger.Debug("Navigating", zap.String("url", url))
	return d.backend.Navigate(ctx, url)
}

// Count returns the number of elements matching selector.
func (d *Driver) Count(ctx context.Context, selector string) (int, error) {
	els, err := d.backend.QueryAll(ctx, selector)
	if err != nil {
		return 0, fmt.Errorf("counting %q: %w", selector, err)
	}
	return len(els), nil
}

// Use resolves selector, moves focus to it and presses Enter.
func (d *Driver) Use(ctx context.Context, selector string) error {
	el, err := d.resolve(ctx, selector)
	if err != nil {
		return err
	}
	return d.activate(ctx, selector, el)
}

// Subscribe attaches fn to the session's diagnostic sink and returns the
// func that detaches it.
func (d *Driver) Subscribe(fn diagnostics.Listener) func() {
	return d.sink.Subscribe(fn)
}

// Diagnostics exposes the session's sink.
func (d *Driver) Diagnostics() *diagnostics.Sink { return d.sink }

// Quit closes the sink and the session. It is safe to call more than once.
func (d *Driver) Quit(ctx context.Context) error {
	d.quitOnce.Do(func() {
		d.sink.Close()
		if err := d.backend.Close(ctx); err != nil {
			d.quitErr = fmt.Errorf("closing session: %w", err)
		}
		if d.shutdown != nil {
			if err := d.shutdown(ctx); err != nil && d.quitErr == nil {
				d.quitErr = fmt.Errorf("shutting down browser: %w", err)
			}
		}
		d.logger.Debug("Driver quit.")
	})
	return d.quitErr
}

func (d *Driver) warn(code diagnostics.Code, detail, link string) {
	d.sink.Publish(diagnostics.Warning{Code: code, Detail: detail, Link: link})
}
