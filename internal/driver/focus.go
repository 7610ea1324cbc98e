package driver

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp/kb"

	"github.com/xkilldash9x/ariadriver/api/schemas"
	"github.com/xkilldash9x/ariadriver/internal/diagnostics"
)

// activate moves focus to el, confirms the page accepted it and presses
// Enter. Each step runs only if the previous one succeeded.
func (d *Driver) activate(ctx context.Context, selector string, el schemas.Element) error {
	hidden, _, err := d.backend.Attribute(ctx, el, "aria-hidden")
	if err != nil {
		return fmt.Errorf("reading aria-hidden of %q: %w", selector, err)
	}
	if hidden == "true" {
		return diagnostics.NewError(diagnostics.CodeElementUnfocusable, selector)
	}

	if err := d.backend.Focus(ctx, el); err != nil {
		return diagnostics.NewError(diagnostics.CodeElementUnfocusable, selector).WithCause(err)
	}
	active, err := d.backend.IsActive(ctx, el)
	if err != nil {
		return fmt.Errorf("reading active element: %w", err)
	}
	if !active {
		return diagnostics.NewError(diagnostics.CodeElementUnfocusable, selector)
	}

	if err := d.backend.PressKey(ctx, el, kb.Enter); err != nil {
		return fmt.Errorf("pressing Enter on %q: %w", selector, err)
	}
	return nil
}
