package browser

import (
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// cdpLogger routes chromedp's printf style callbacks into zap.
type cdpLogger struct {
	logger *zap.SugaredLogger
}

func newCDPLogger(logger *zap.Logger) *cdpLogger {
	return &cdpLogger{logger: logger.Named("cdp").Sugar()}
}

func (c *cdpLogger) Logf(format string, args ...interface{})   { c.logger.Debugf(format, args...) }
func (c *cdpLogger) Debugf(format string, args ...interface{}) { c.logger.Debugf(format, args...) }
func (c *cdpLogger) Errorf(format string, args ...interface{}) { c.logger.Errorf(format, args...) }

// contextOptions wires the logger into a new tab context. Raw protocol
// traffic is only logged when debug is set.
func (c *cdpLogger) contextOptions(debug bool) []chromedp.ContextOption {
	opts := []chromedp.ContextOption{
		chromedp.WithLogf(c.Logf),
		chromedp.WithErrorf(c.Errorf),
	}
	if debug {
		opts = append(opts, chromedp.WithDebugf(c.Debugf))
	}
	return opts
}
