package schemas

import (
	"context"
)

// Element is an opaque handle to a live node in the remote page.
// Handles are borrowed per call; a navigation or reload invalidates them.
type Element interface {
	// ID returns an identifier that is stable for the lifetime of the node
	// within the current document. Two handles with equal IDs refer to the same node.
	ID() string
}

// Backend is the capability set the engine consumes from a browser automation
// backend. Every method is a round trip to the remote page and may block, so
// each accepts a context.
type Backend interface {
	// Navigate loads url in the session's page.
	Navigate(ctx context.Context, url string) error
	// QueryAll returns every element matching selector in document order.
	// Zero matches is not an error.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// Attribute reads a live attribute. The boolean reports presence.
	Attribute(ctx context.Context, el Element, name string) (string, bool, error)
	// Focus issues a focus command on the element.
	Focus(ctx context.Context, el Element) error
	// IsActive reports whether el is the page's active element.
	IsActive(ctx context.Context, el Element) (bool, error)
	// PressKey dispatches a key press to the element.
	PressKey(ctx context.Context, el Element, key string) error
	// CountVisible counts elements matching selector that are rendered.
	CountVisible(ctx context.Context, selector string) (int, error)
	// Close tears down the session.
	Close(ctx context.Context) error
}

// SessionBackend is a Backend bound to an identified session.
type SessionBackend interface {
	Backend
	ID() string
}
