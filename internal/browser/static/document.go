// Package static implements schemas.Backend over a parsed HTML document. It
// runs no scripts; keyboard activation is recorded and handed to an optional
// hook so callers can emulate the page's reaction. It backs the offline lint
// command and gives deterministic pages to tests.
package static

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/ariadriver/api/schemas"
	"github.com/xkilldash9x/ariadriver/internal/htmlattr"
	"github.com/xkilldash9x/ariadriver/internal/observability"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("static document closed")

// KeyHook is invoked after a key press has been recorded, outside any lock.
type KeyHook func(d *Document, el schemas.Element, key string)

// KeyPress records a dispatched key.
type KeyPress struct {
	ElementID string
	Key       string
}

type element struct {
	node *html.Node
	id   string
}

func (e *element) ID() string { return e.id }

// Document is a single static page.
type Document struct {
	id     string
	logger *zap.Logger
	client *http.Client

	mu      sync.Mutex
	doc     *goquery.Document
	ids     map[*html.Node]string
	nextID  int
	active  *html.Node
	presses []KeyPress
	onKey   KeyHook
	closed  bool
}

var _ schemas.SessionBackend = (*Document)(nil)

// New creates an empty document (equivalent to about:blank).
func New(logger *zap.Logger) *Document {
	id := uuid.New().String()
	d := &Document{
		id:     id,
		logger: observability.ForSession(logger, "static", id),
		client: &http.Client{Timeout: 30 * time.Second},
	}
	d.reset(goquery.NewDocumentFromNode(&html.Node{Type: html.DocumentNode}))
	return d
}

// FromHTML creates a document from markup.
func FromHTML(logger *zap.Logger, markup string) (*Document, error) {
	d := New(logger)
	if err := d.Load(strings.NewReader(markup)); err != nil {
		return nil, err
	}
	return d, nil
}

// ID returns the session identifier.
func (d *Document) ID() string { return d.id }

// OnKey installs the key press hook.
func (d *Document) OnKey(hook KeyHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onKey = hook
}

// KeyPresses returns every key dispatched so far.
func (d *Document) KeyPresses() []KeyPress {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]KeyPress, len(d.presses))
	copy(out, d.presses)
	return out
}

// Load replaces the document with parsed markup. Existing handles become invalid.
func (d *Document) Load(r io.Reader) error {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return fmt.Errorf("parsing document: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.reset(doc)
	return nil
}

func (d *Document) reset(doc *goquery.Document) {
	d.doc = doc
	d.ids = make(map[*html.Node]string)
	d.active = nil
}

// Mutate runs fn against the live document under the document lock.
func (d *Document) Mutate(fn func(doc *goquery.Selection)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	fn(d.doc.Selection)
}

// Navigate loads file://, http(s):// or about:blank URLs.
func (d *Document) Navigate(ctx context.Context, rawURL string) error {
	if rawURL == "about:blank" {
		return d.Load(strings.NewReader(""))
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	d.logger.Debug("Loading document", zap.String("url", rawURL))

	switch u.Scheme {
	case "file", "":
		f, err := os.Open(u.Path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", u.Path, err)
		}
		defer f.Close()
		return d.Load(f)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", rawURL, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("fetching %s: unexpected status %s", rawURL, resp.Status)
		}
		return d.Load(resp.Body)
	default:
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
}

// QueryAll returns matching elements in document order.
func (d *Document) QueryAll(_ context.Context, selector string) ([]schemas.Element, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	found := d.doc.FindMatcher(sel)
	out := make([]schemas.Element, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		out = append(out, d.handle(s.Get(0)))
	})
	return out, nil
}

func (d *Document) handle(n *html.Node) *element {
	id, ok := d.ids[n]
	if !ok {
		d.nextID++
		id = strconv.Itoa(d.nextID)
		d.ids[n] = id
	}
	return &element{node: n, id: id}
}

func (d *Document) resolve(el schemas.Element) (*html.Node, error) {
	if d.closed {
		return nil, ErrClosed
	}
	e, ok := el.(*element)
	if !ok {
		return nil, fmt.Errorf("foreign element handle %T", el)
	}
	if d.ids[e.node] != e.id {
		return nil, fmt.Errorf("stale element handle %s", e.id)
	}
	return e.node, nil
}

// Attribute reads an attribute of el.
func (d *Document) Attribute(_ context.Context, el schemas.Element, name string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.resolve(el)
	if err != nil {
		return "", false, err
	}
	v, ok := attr(n, name)
	return v, ok, nil
}

// Focus moves focus to el when it is focusable. Like a real browser, a
// refused focus is silent.
func (d *Document) Focus(_ context.Context, el schemas.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.resolve(el)
	if err != nil {
		return err
	}
	if focusable(n) {
		d.active = n
	}
	return nil
}

// IsActive reports whether el currently holds focus.
func (d *Document) IsActive(_ context.Context, el schemas.Element) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.resolve(el)
	if err != nil {
		return false, err
	}
	return d.active == n, nil
}

// PressKey records the key and runs the hook.
func (d *Document) PressKey(_ context.Context, el schemas.Element, key string) error {
	d.mu.Lock()
	n, err := d.resolve(el)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	d.presses = append(d.presses, KeyPress{ElementID: d.ids[n], Key: key})
	hook := d.onKey
	d.mu.Unlock()

	if hook != nil {
		hook(d, el, key)
	}
	return nil
}

// CountVisible counts matches not hidden by the hidden attribute or an
// inline display/visibility style on themselves or an ancestor.
func (d *Document) CountVisible(_ context.Context, selector string) (int, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return 0, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	count := 0
	d.doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
		if rendered(s.Get(0)) {
			count++
		}
	})
	return count, nil
}

// Close releases the document.
func (d *Document) Close(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.doc = nil
	d.ids = nil
	d.active = nil
	d.client.CloseIdleConnections()
	d.logger.Debug("Static document closed.")
	return nil
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func focusable(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if _, disabled := attr(n, "disabled"); disabled {
		return false
	}
	if !rendered(n) {
		return false
	}
	if v, ok := attr(n, "tabindex"); ok {
		if _, valid := htmlattr.Integer(v); valid {
			return true
		}
	}
	switch n.Data {
	case "button", "select", "textarea", "summary":
		return true
	case "input":
		t, _ := attr(n, "type")
		return !strings.EqualFold(t, "hidden")
	case "a", "area":
		_, ok := attr(n, "href")
		return ok
	}
	if v, ok := attr(n, "contenteditable"); ok && !strings.EqualFold(v, "false") {
		return true
	}
	return false
}

// rendered reports whether n would be painted. The hidden attribute and
// display:none remove the whole subtree. visibility inherits instead, so the
// nearest element that declares it decides and a descendant may declare
// visible again.
func rendered(n *html.Node) bool {
	visibility := ""
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if _, hidden := attr(cur, "hidden"); hidden {
			return false
		}
		decls := inlineStyle(cur)
		if decls["display"] == "none" {
			return false
		}
		if v, ok := decls["visibility"]; ok && visibility == "" {
			visibility = v
		}
	}
	return visibility != "hidden" && visibility != "collapse"
}

// inlineStyle returns the declarations of n's style attribute, lower cased
// and without !important. A later declaration of a property wins.
func inlineStyle(n *html.Node) map[string]string {
	style, ok := attr(n, "style")
	if !ok {
		return nil
	}
	decls := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		prop, val, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		val = strings.TrimSpace(strings.ToLower(val))
		val = strings.TrimSpace(strings.TrimSuffix(val, "!important"))
		decls[strings.TrimSpace(strings.ToLower(prop))] = val
	}
	return decls
}
