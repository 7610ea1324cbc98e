// File: cmd/factory.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ariadriver/internal/browser/static"
	"github.com/xkilldash9x/ariadriver/internal/config"
	"github.com/xkilldash9x/ariadriver/internal/driver"
	"github.com/xkilldash9x/ariadriver/internal/observability"
)

// Components holds the services a command needs and centralizes their
// lifecycle.
type Components struct {
	Driver  *driver.Driver
	Metrics *observability.Metrics

	logger        *zap.Logger
	metricsServer *http.Server
}

// componentOptions selects the backend a command runs against.
type componentOptions struct {
	// Offline uses the static document backend instead of a browser.
	Offline bool
}

// initializeComponents builds the driver (and metrics endpoint, if enabled).
// On error, anything already started is torn down.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts componentOptions) (*Components, error) {
	c := &Components{logger: logger}

	if cfg.Metrics.Enabled {
		c.Metrics = observability.NewMetrics()
		c.startMetricsServer(cfg.Metrics.Address)
	}

	var err error
	if opts.Offline {
		p := cfg.Driver.Patience()
		c.Driver, err = driver.New(static.New(logger), driver.Options{
			Patience:     &p,
			PollInterval: cfg.Driver.PollInterval,
			Logger:       logger,
			Metrics:      c.Metrics,
		})
	} else {
		c.Driver, err = driver.Connect(ctx, cfg, logger, c.Metrics)
	}
	if err != nil {
		c.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize driver: %w", err)
	}
	return c, nil
}

func (c *Components) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Metrics.Handler())
	c.metricsServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		c.logger.Info("Serving metrics", zap.String("address", addr))
		if err := c.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
}

// Shutdown quits the driver and stops the metrics endpoint.
func (c *Components) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if c.Driver != nil {
		if err := c.Driver.Quit(shutdownCtx); err != nil {
			c.logger.Warn("Error while quitting driver", zap.Error(err))
		}
	}
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("Error while stopping metrics server", zap.Error(err))
		}
	}
}
