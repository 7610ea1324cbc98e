package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/ariadriver/api/schemas"
	"github.com/xkilldash9x/ariadriver/internal/browser/static"
	"github.com/xkilldash9x/ariadriver/internal/diagnostics"
	"github.com/xkilldash9x/ariadriver/internal/mocks"
	"github.com/xkilldash9x/ariadriver/internal/widget"
)

const menuPage = `
<button id="trigger" aria-haspopup="menu">Actions</button>
<ul role="menu" id="menu" hidden><li role="menuitem">Copy</li></ul>
<ul role="menu" id="other" aria-hidden="true"><li role="menuitem">Stale</li></ul>`

const visibleMenus = `[role="menu"]:not([aria-hidden="true"])`

func TestOpenPopup(t *testing.T) {
	ctx := context.Background()

	t.Run("container appearing within patience succeeds", func(t *testing.T) {
		d, doc, rec := newTestDriver(t, menuPage, time.Second)
		doc.OnKey(reveal("#menu", 60*time.Millisecond))

		out, err := d.Operate(ctx, widget.KindPopup, "#trigger")
		require.NoError(t, err)

		assert.Equal(t, StateSucceeded, out.State)
		assert.Empty(t, out.FailedIn)
		assert.Empty(t, out.Warnings)
		assert.Empty(t, rec.Warnings())
		visible, err := doc.CountVisible(ctx, visibleMenus)
		require.NoError(t, err)
		assert.Equal(t, 1, visible)
	})

	t.Run("synchronous reaction succeeds on the first sample", func(t *testing.T) {
		d, doc, _ := newTestDriver(t, menuPage, time.Second)
		doc.OnKey(reveal("#menu", 0))

		start := time.Now()
		require.NoError(t, d.OpenPopup(ctx, "#trigger"))
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("container never appearing times out at patience", func(t *testing.T) {
		patience := 200 * time.Millisecond
		d, doc, _ := newTestDriver(t, menuPage, patience)

		start := time.Now()
		out, err := d.Operate(ctx, widget.KindPopup, "#trigger")
		elapsed := time.Since(start)

		de := requireCode(t, err, diagnostics.CodeTimeout)
		assert.Equal(t, []interface{}{"#trigger"}, de.Args)
		assert.Equal(t, StateFailed, out.State)
		assert.Equal(t, StateAwaitingState, out.FailedIn)
		assert.GreaterOrEqual(t, elapsed, patience)
		assert.Less(t, elapsed, patience+testInterval+150*time.Millisecond)
		assert.Len(t, doc.KeyPresses(), 1, "activation is never retried")
	})

	t.Run("two containers appearing is not success", func(t *testing.T) {
		patience := 100 * time.Millisecond
		d, doc, _ := newTestDriver(t, menuPage+`<div role="listbox" id="lb" hidden></div>`, patience)
		doc.OnKey(func(doc *static.Document, _ schemas.Element, _ string) {
			doc.Mutate(func(s *goquery.Selection) {
				s.Find("#menu").RemoveAttr("hidden")
				s.Find("#lb").RemoveAttr("hidden")
			})
		})

		requireCode(t, d.OpenPopup(ctx, "#trigger"), diagnostics.CodeTimeout)
	})

	t.Run("aria-hidden containers do not count", func(t *testing.T) {
		patience := 100 * time.Millisecond
		d, doc, _ := newTestDriver(t, menuPage, patience)
		doc.OnKey(func(doc *static.Document, _ schemas.Element, _ string) {
			doc.Mutate(func(s *goquery.Selection) {
				s.Find("#menu").RemoveAttr("hidden").SetAttr("aria-hidden", "true")
			})
		})

		requireCode(t, d.OpenPopup(ctx, "#trigger"), diagnostics.CodeTimeout)
	})

	t.Run("missing trigger fails with ELEMENT_NOT_FOUND", func(t *testing.T) {
		d, doc, _ := newTestDriver(t, menuPage, time.Second)

		out, err := d.Operate(ctx, widget.KindPopup, "#nope")
		requireCode(t, err, diagnostics.CodeElementNotFound)
		assert.Equal(t, StateFailed, out.State)
		assert.Empty(t, doc.KeyPresses())
	})

	t.Run("hidden trigger fails with ELEMENT_UNFOCUSABLE", func(t *testing.T) {
		d, _, _ := newTestDriver(t, `<button id="t" aria-haspopup="true" aria-hidden="true">x</button>`, time.Second)

		out, err := d.Operate(ctx, widget.KindPopup, "#t")
		requireCode(t, err, diagnostics.CodeElementUnfocusable)
		assert.Equal(t, StateActivating, out.FailedIn)
	})

	t.Run("ambiguous trigger warns once and is reported in the outcome", func(t *testing.T) {
		d, doc, rec := newTestDriver(t,
			`<button class="t" aria-haspopup="true">a</button><button class="t" aria-haspopup="true">b</button><div role="menu" id="menu" hidden></div>`,
			time.Second)
		doc.OnKey(reveal("#menu", 0))

		out, err := d.Operate(ctx, widget.KindPopup, ".t")
		require.NoError(t, err)

		assert.Equal(t, []diagnostics.Code{diagnostics.CodeAmbiguousReference}, rec.Codes())
		require.Len(t, out.Warnings, 1)
		assert.Equal(t, diagnostics.CodeAmbiguousReference, out.Warnings[0].Code)
	})

	t.Run("positive tabindex warns alongside success", func(t *testing.T) {
		d, doc, rec := newTestDriver(t,
			`<div id="t" role="button" tabindex="1" aria-haspopup="listbox">x</div><div role="listbox" id="lb" style="display: none"></div>`,
			time.Second)
		doc.OnKey(func(doc *static.Document, _ schemas.Element, _ string) {
			doc.Mutate(func(s *goquery.Selection) { s.Find("#lb").RemoveAttr("style") })
		})

		require.NoError(t, d.OpenPopup(ctx, "#t"))
		assert.Equal(t, []diagnostics.Code{diagnostics.CodePoorSemantics}, rec.Codes())
	})
}

func TestOpenPopupInvalidMarkup(t *testing.T) {
	ctx := context.Background()
	el := mocks.MockElement("1")

	cases := []struct {
		name    string
		value   string
		present bool
		reason  widget.Reason
	}{
		{"absent", "", false, widget.ReasonMissing},
		{"negative", "false", true, widget.ReasonNegative},
		{"unrecognized", "sometimes", true, widget.ReasonUnrecognized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := mocks.NewMockBackend()
			backend.On("QueryAll", mock.Anything, "#t").Return([]schemas.Element{el}, nil)
			backend.On("Attribute", mock.Anything, el, "tabindex").Return("", false, nil)
			backend.On("Attribute", mock.Anything, el, "aria-haspopup").Return(tc.value, tc.present, nil)
			d, err := New(backend, Options{})
			require.NoError(t, err)

			out, err := d.Operate(ctx, widget.KindPopup, "#t")

			de := requireCode(t, err, diagnostics.CodeInvalidMarkup)
			assert.Equal(t, []interface{}{"#t", string(tc.reason)}, de.Args)
			assert.NotEmpty(t, de.Link)
			var v *widget.Violation
			require.True(t, errors.As(err, &v))
			assert.Equal(t, tc.reason, v.Reason)
			assert.Equal(t, StateValidating, out.FailedIn)

			backend.AssertNotCalled(t, "Focus", mock.Anything, mock.Anything)
			backend.AssertNotCalled(t, "IsActive", mock.Anything, mock.Anything)
			backend.AssertNotCalled(t, "PressKey", mock.Anything, mock.Anything, mock.Anything)
			backend.AssertNotCalled(t, "CountVisible", mock.Anything, mock.Anything)
		})
	}
}

func TestPollErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	el := mocks.MockElement("1")
	cause := errors.New("target crashed")

	backend := mocks.NewMockBackend()
	backend.On("QueryAll", mock.Anything, "#t").Return([]schemas.Element{el}, nil)
	backend.On("Attribute", mock.Anything, el, "tabindex").Return("", false, nil)
	backend.On("Attribute", mock.Anything, el, "aria-haspopup").Return("true", true, nil)
	backend.On("Attribute", mock.Anything, el, "aria-hidden").Return("", false, nil)
	backend.On("Focus", mock.Anything, el).Return(nil)
	backend.On("IsActive", mock.Anything, el).Return(true, nil)
	backend.On("PressKey", mock.Anything, el, mock.Anything).Return(nil)
	backend.On("CountVisible", mock.Anything, mock.Anything).Return(0, nil).Once()
	backend.On("CountVisible", mock.Anything, mock.Anything).Return(0, cause)

	d, err := New(backend, Options{})
	require.NoError(t, err)

	out, err := d.Operate(ctx, widget.KindPopup, "#t")
	assert.ErrorIs(t, err, cause)
	assert.False(t, errors.Is(err, diagnostics.ErrTimeout))
	assert.Equal(t, StateAwaitingState, out.FailedIn)
}

func TestStalledSampleStillTimesOut(t *testing.T) {
	ctx := context.Background()
	el := mocks.MockElement("1")
	patience := 50 * time.Millisecond

	backend := mocks.NewMockBackend()
	backend.On("QueryAll", mock.Anything, "#t").Return([]schemas.Element{el}, nil)
	backend.On("Attribute", mock.Anything, el, "tabindex").Return("", false, nil)
	backend.On("Attribute", mock.Anything, el, "aria-haspopup").Return("true", true, nil)
	backend.On("Attribute", mock.Anything, el, "aria-hidden").Return("", false, nil)
	backend.On("Focus", mock.Anything, el).Return(nil)
	backend.On("IsActive", mock.Anything, el).Return(true, nil)
	backend.On("PressKey", mock.Anything, el, mock.Anything).Return(nil)
	backend.On("CountVisible", mock.Anything, mock.Anything).Return(0, nil).Once()
	// Every later evaluation hangs until its context gives up, like a
	// renderer that stopped answering.
	backend.On("CountVisible", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		select {
		case <-args.Get(0).(context.Context).Done():
		case <-time.After(600 * time.Millisecond):
		}
	}).Return(0, context.DeadlineExceeded)

	d, err := New(backend, Options{Patience: &patience, PollInterval: testInterval})
	require.NoError(t, err)

	start := time.Now()
	out, err := d.Operate(ctx, widget.KindPopup, "#t")
	elapsed := time.Since(start)

	requireCode(t, err, diagnostics.CodeTimeout)
	assert.Equal(t, StateAwaitingState, out.FailedIn)
	assert.GreaterOrEqual(t, elapsed, patience)
	assert.Less(t, elapsed, patience+testInterval+150*time.Millisecond)
}

func TestToggleButton(t *testing.T) {
	ctx := context.Background()
	toggle := func(doc *static.Document, _ schemas.Element, _ string) {
		doc.Mutate(func(s *goquery.Selection) {
			b := s.Find("#mute")
			if v, _ := b.Attr("aria-pressed"); v == "true" {
				b.SetAttr("aria-pressed", "false")
			} else {
				b.SetAttr("aria-pressed", "true")
			}
		})
	}

	t.Run("pressed state flips", func(t *testing.T) {
		d, doc, _ := newTestDriver(t, `<button id="mute" aria-pressed="false">Mute</button>`, time.Second)
		doc.OnKey(toggle)

		require.NoError(t, d.ToggleButton(ctx, "#mute"))
		require.NoError(t, d.ToggleButton(ctx, "#mute"))

		els, err := doc.QueryAll(ctx, "#mute")
		require.NoError(t, err)
		v, _, err := doc.Attribute(ctx, els[0], "aria-pressed")
		require.NoError(t, err)
		assert.Equal(t, "false", v)
	})

	t.Run("false is an accepted state for buttons", func(t *testing.T) {
		d, _, _ := newTestDriver(t, `<button id="mute" aria-pressed="false">Mute</button>`, 50*time.Millisecond)

		requireCode(t, d.ToggleButton(ctx, "#mute"), diagnostics.CodeTimeout)
	})

	t.Run("missing aria-pressed is invalid markup", func(t *testing.T) {
		d, doc, _ := newTestDriver(t, `<button id="mute">Mute</button>`, time.Second)

		requireCode(t, d.ToggleButton(ctx, "#mute"), diagnostics.CodeInvalidMarkup)
		assert.Empty(t, doc.KeyPresses())
	})
}

func TestOpenDialog(t *testing.T) {
	ctx := context.Background()

	t.Run("dialog appears", func(t *testing.T) {
		d, doc, _ := newTestDriver(t,
			`<button id="open" aria-haspopup="dialog">Open</button><div role="alertdialog" id="dlg" hidden></div>`,
			time.Second)
		doc.OnKey(reveal("#dlg", 30*time.Millisecond))

		require.NoError(t, d.OpenDialog(ctx, "#open"))
	})

	t.Run("generic popup value is not a dialog trigger", func(t *testing.T) {
		d, doc, _ := newTestDriver(t, `<button id="open" aria-haspopup="true">Open</button>`, time.Second)

		de := requireCode(t, d.OpenDialog(ctx, "#open"), diagnostics.CodeInvalidMarkup)
		assert.Equal(t, string(widget.ReasonUnrecognized), de.Args[1])
		assert.Empty(t, doc.KeyPresses())
	})
}

func TestOperateUnknownKind(t *testing.T) {
	d, doc, _ := newTestDriver(t, `<button id="b">b</button>`, time.Second)

	out, err := d.Operate(context.Background(), widget.Kind("carousel"), "#b")
	require.Error(t, err)
	assert.Equal(t, StateFailed, out.State)
	assert.Empty(t, doc.KeyPresses())
}

func TestInspect(t *testing.T) {
	ctx := context.Background()

	t.Run("valid trigger", func(t *testing.T) {
		d, doc, _ := newTestDriver(t, `<button id="t" aria-haspopup=" MENU ">x</button>`, time.Second)

		warnings, err := d.Inspect(ctx, widget.KindPopup, "#t")
		require.NoError(t, err)
		assert.Empty(t, warnings)
		assert.Empty(t, doc.KeyPresses(), "inspection never activates")
	})

	t.Run("reports warnings and violations", func(t *testing.T) {
		d, _, _ := newTestDriver(t, `<a class="t" href="#" tabindex="3" aria-haspopup="false">x</a><a class="t" href="#">y</a>`, time.Second)

		warnings, err := d.Inspect(ctx, widget.KindPopup, ".t")
		de := requireCode(t, err, diagnostics.CodeInvalidMarkup)
		assert.Equal(t, string(widget.ReasonNegative), de.Args[1])
		require.Len(t, warnings, 2)
	})
}
