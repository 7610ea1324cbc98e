package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ariadriver/internal/config"
)

// Manager owns the allocator (a remote DevTools endpoint or a locally
// launched browser) and the sessions opened on it.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	sessions map[string]*Session
	mu       sync.Mutex
}

// NewManager creates the allocator. With a configured endpoint it attaches to
// the running backend; otherwise it launches a browser on first use.
func NewManager(ctx context.Context, logger *zap.Logger, cfg *config.Config) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("browser manager requires a configuration")
	}
	m := &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}

	if endpoint := cfg.Driver.Endpoint; endpoint != "" {
		m.allocatorCtx, m.allocatorCancel = chromedp.NewRemoteAllocator(ctx, endpoint)
		m.logger.Info("Browser manager attached to remote endpoint", zap.String("endpoint", endpoint))
		return m, nil
	}

	m.allocatorCtx, m.allocatorCancel = chromedp.NewExecAllocator(ctx, m.generateAllocatorOptions()...)
	m.logger.Info("Browser manager initialized",
		zap.Bool("headless", cfg.Browser.Headless),
		zap.String("exec_path", cfg.Browser.ExecPath),
	)
	return m, nil
}

// generateAllocatorOptions configures the flags for the browser executable.
func (m *Manager) generateAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	browserCfg := m.cfg.Browser

	if !browserCfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if browserCfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(browserCfg.ExecPath))
	}
	if browserCfg.WindowWidth > 0 && browserCfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(browserCfg.WindowWidth, browserCfg.WindowHeight))
	}

	opts = append(opts,
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-extensions", true),
		// GPU often causes issues in headless/containerized environments.
		chromedp.Flag("disable-gpu", browserCfg.Headless),
		chromedp.Flag("ignore-certificate-errors", browserCfg.IgnoreTLSErrors),
	)

	for _, arg := range browserCfg.Args {
		name, value := splitFlag(arg)
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// NewSession opens a new tab and returns it as a backend session.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	ctxOpts := newCDPLogger(m.logger).contextOptions(m.cfg.Browser.Debug)
	tabCtx, cancel := chromedp.NewContext(m.allocatorCtx, ctxOpts...)

	// The first Run starts the browser (or attaches) and creates the target.
	initCtx, initCancel := CombineContext(tabCtx, ctx)
	err := chromedp.Run(initCtx, chromedp.Navigate("about:blank"))
	initCancel()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize new browser context connection: %w", err)
	}

	s := newSession(tabCtx, cancel, m.logger, m.cfg.Driver.CommandTimeout, m)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s, nil
}

// unregisterSession removes the session from the tracking map.
func (m *Manager) unregisterSession(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, s.ID())
}

// Shutdown closes all sessions and then the allocator.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager...")

	m.mu.Lock()
	sessionsToClose := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessionsToClose = append(sessionsToClose, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessionsToClose {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := s.Close(closeCtx); err != nil {
				m.logger.Warn("Error closing browser session during shutdown", zap.String("session_id", s.ID()), zap.Error(err))
			}
		}(s)
	}
	wg.Wait()

	if m.allocatorCancel != nil {
		m.allocatorCancel()
	}
	m.logger.Info("Browser manager shutdown complete.")
	return nil
}

// splitFlag turns "--name=value" or "--name" into a chromedp flag pair.
func splitFlag(arg string) (string, interface{}) {
	for len(arg) > 0 && arg[0] == '-' {
		arg = arg[1:]
	}
	for i := 0; i < len(arg); i++ {
		if arg[i] == '=' {
			return arg[:i], arg[i+1:]
		}
	}
	return arg, true
}
