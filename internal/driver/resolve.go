package driver

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/ariadriver/api/schemas"
	"github.com/xkilldash9x/ariadriver/internal/diagnostics"
	"github.com/xkilldash9x/ariadriver/internal/htmlattr"
)

const apgKeyboard = "https://www.w3.org/WAI/ARIA/apg/practices/keyboard-interface/"

// resolve narrows selector to one element. Plurality and positive tabindex
// are reported on the sink, once each, and never fail the call.
func (d *Driver) resolve(ctx context.Context, selector string) (schemas.Element, error) {
	matches, err := d.backend.QueryAll(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", selector, err)
	}
	if len(matches) == 0 {
		return nil, diagnostics.NewError(diagnostics.CodeElementNotFound, selector)
	}
	if len(matches) > 1 {
		d.warn(diagnostics.CodeAmbiguousReference,
			fmt.Sprintf("Selector %q matched %d elements; using the first in document order", selector, len(matches)), "")
	}

	el := matches[0]
	tabindex, present, err := d.backend.Attribute(ctx, el, "tabindex")
	if err != nil {
		return nil, fmt.Errorf("reading tabindex of %q: %w", selector, err)
	}
	if present && positiveInt(tabindex) {
		d.warn(diagnostics.CodePoorSemantics,
			fmt.Sprintf("Element with selector %q has tabindex=%q; positive values override the natural focus order", selector, tabindex),
			apgKeyboard)
	}
	return el, nil
}

// positiveInt reads s the way the browser does when it orders focus.
func positiveInt(s string) bool {
	n, ok := htmlattr.Integer(s)
	return ok && n > 0
}
