// Package widget holds the closed set of widget descriptors. A descriptor
// pairs a static markup rule with a success predicate; it is the only place
// widget kind specific behaviour lives.
package widget

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/ariadriver/api/schemas"
	"github.com/xkilldash9x/ariadriver/internal/patience"
)

// Kind names a supported widget kind.
type Kind string

const (
	KindPopup  Kind = "popup"
	KindButton Kind = "button"
	KindDialog Kind = "dialog"
)

// PageReader is the read only slice of the backend that descriptors need.
type PageReader interface {
	Attribute(ctx context.Context, el schemas.Element, name string) (string, bool, error)
	CountVisible(ctx context.Context, selector string) (int, error)
}

// SuccessPredicate captures whatever baseline it needs from the page before
// activation and returns the condition to poll afterwards.
type SuccessPredicate func(ctx context.Context, page PageReader, trigger schemas.Element) (patience.Condition, error)

// Descriptor is the per kind pair of markup rule and success predicate.
type Descriptor struct {
	Kind    Kind
	Markup  MarkupRule
	Success SuccessPredicate
}

const (
	popupContainers  = `[role="menu"], [role="listbox"], [role="tree"], [role="grid"], [role="dialog"]`
	dialogContainers = `[role="dialog"], [role="alertdialog"]`

	apgMenuButton = "https://www.w3.org/WAI/ARIA/apg/patterns/menu-button/"
	apgButton     = "https://www.w3.org/WAI/ARIA/apg/patterns/button/"
	apgDialog     = "https://www.w3.org/WAI/ARIA/apg/patterns/dialog-modal/"
)

var descriptors = map[Kind]Descriptor{
	KindPopup: {
		Kind: KindPopup,
		Markup: MarkupRule{
			Attribute: "aria-haspopup",
			Accepted:  []string{"true", "menu", "listbox", "tree", "grid", "dialog"},
			Negative:  []string{"false"},
			Link:      apgMenuButton,
		},
		Success: containerAppears(popupContainers),
	},
	KindButton: {
		Kind: KindButton,
		Markup: MarkupRule{
			Attribute: "aria-pressed",
			Accepted:  []string{"true", "false", "mixed"},
			Link:      apgButton,
		},
		Success: attributeChanges("aria-pressed"),
	},
	KindDialog: {
		Kind: KindDialog,
		Markup: MarkupRule{
			Attribute: "aria-haspopup",
			Accepted:  []string{"dialog"},
			Negative:  []string{"false"},
			Link:      apgDialog,
		},
		Success: containerAppears(dialogContainers),
	},
}

// Lookup returns the descriptor for kind.
func Lookup(kind Kind) (Descriptor, error) {
	d, ok := descriptors[Kind(strings.ToLower(string(kind)))]
	if !ok {
		return Descriptor{}, fmt.Errorf("unsupported widget kind %q (supported: %s)", kind, strings.Join(kindNames(), ", "))
	}
	return d, nil
}

// Kinds lists the supported kinds in a stable order.
func Kinds() []Kind {
	names := kindNames()
	kinds := make([]Kind, len(names))
	for i, n := range names {
		kinds[i] = Kind(n)
	}
	return kinds
}

func kindNames() []string {
	names := make([]string, 0, len(descriptors))
	for k := range descriptors {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}

// VisibleContainerSelector wraps each comma separated part of selector so
// that elements hidden through aria-hidden="true" are excluded.
func VisibleContainerSelector(selector string) string {
	parts := strings.Split(selector, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p) + `:not([aria-hidden="true"])`
	}
	return strings.Join(parts, ", ")
}

// containerAppears succeeds when exactly one more visible container exists
// than before activation.
func containerAppears(containers string) SuccessPredicate {
	selector := VisibleContainerSelector(containers)
	return func(ctx context.Context, page PageReader, _ schemas.Element) (patience.Condition, error) {
		before, err := page.CountVisible(ctx, selector)
		if err != nil {
			return nil, fmt.Errorf("counting containers before activation: %w", err)
		}
		return func(ctx context.Context) (bool, error) {
			now, err := page.CountVisible(ctx, selector)
			if err != nil {
				return false, err
			}
			return now == before+1, nil
		}, nil
	}
}

// attributeChanges succeeds once the trigger's attribute holds a value other
// than the one it had before activation.
func attributeChanges(name string) SuccessPredicate {
	return func(ctx context.Context, page PageReader, trigger schemas.Element) (patience.Condition, error) {
		before, _, err := page.Attribute(ctx, trigger, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s before activation: %w", name, err)
		}
		return func(ctx context.Context) (bool, error) {
			now, present, err := page.Attribute(ctx, trigger, name)
			if err != nil {
				return false, err
			}
			return present && now != before, nil
		}, nil
	}
}
