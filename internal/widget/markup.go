package widget

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/ariadriver/api/schemas"
	"github.com/xkilldash9x/ariadriver/internal/diagnostics"
)

// MarkupRule declares the attribute a trigger must carry and the tokens it
// may hold. Negative tokens are recognised but declare the state the widget
// is meant to change, so they are rejected as well.
type MarkupRule struct {
	Attribute string
	Accepted  []string
	Negative  []string
	Link      string
}

// Reason identifies which sub case of a markup violation applied.
type Reason string

const (
	ReasonMissing      Reason = "missing"
	ReasonNegative     Reason = "negative"
	ReasonUnrecognized Reason = "unrecognized"
)

// Violation is attached as the cause of an INVALID_MARKUP error.
type Violation struct {
	Attribute string
	Value     string
	Reason    Reason
}

func (v *Violation) Error() string {
	switch v.Reason {
	case ReasonMissing:
		return fmt.Sprintf("attribute %s is missing", v.Attribute)
	case ReasonNegative:
		return fmt.Sprintf("attribute %s explicitly declares %q", v.Attribute, v.Value)
	default:
		return fmt.Sprintf("attribute %s has unrecognized value %q", v.Attribute, v.Value)
	}
}

// Check inspects value against the rule. It returns nil when the value is
// accepted. Tokens compare ASCII case insensitively after trimming.
func (r MarkupRule) Check(value string, present bool) *Violation {
	if !present {
		return &Violation{Attribute: r.Attribute, Reason: ReasonMissing}
	}
	token := strings.ToLower(strings.TrimSpace(value))
	for _, n := range r.Negative {
		if token == n {
			return &Violation{Attribute: r.Attribute, Value: value, Reason: ReasonNegative}
		}
	}
	for _, a := range r.Accepted {
		if token == a {
			return nil
		}
	}
	return &Violation{Attribute: r.Attribute, Value: value, Reason: ReasonUnrecognized}
}

// Validate runs the descriptor's markup rule against the resolved trigger.
// It reads attributes only and never waits.
func Validate(ctx context.Context, page PageReader, d Descriptor, selector string, trigger schemas.Element) error {
	value, present, err := page.Attribute(ctx, trigger, d.Markup.Attribute)
	if err != nil {
		return fmt.Errorf("reading %s: %w", d.Markup.Attribute, err)
	}
	v := d.Markup.Check(value, present)
	if v == nil {
		return nil
	}
	return diagnostics.NewError(diagnostics.CodeInvalidMarkup, selector, string(v.Reason)).
		WithLink(d.Markup.Link).
		WithCause(v)
}
