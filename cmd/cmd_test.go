package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/ariadriver/internal/diagnostics"
	"github.com/xkilldash9x/ariadriver/internal/driver"
)

func writePage(t *testing.T, markup string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(markup), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLintCommand(t *testing.T) {
	page := writePage(t, `<button id="ok" aria-haspopup="menu">a</button>
<button class="bad" aria-haspopup="false" tabindex="4">b</button><button class="bad">c</button>`)

	t.Run("valid trigger", func(t *testing.T) {
		out, err := run(t, "lint", page, "#ok", "--kind", "popup", "--json=false")
		require.NoError(t, err)
		assert.Contains(t, out, "VALID popup #ok")
	})

	t.Run("invalid trigger as JSON", func(t *testing.T) {
		out, err := run(t, "lint", page, ".bad", "--kind", "popup", "--json")
		require.Error(t, err)
		assert.True(t, errors.Is(err, diagnostics.ErrInvalidMarkup))

		var r Report
		require.NoError(t, json.Unmarshal([]byte(out), &r))
		assert.Equal(t, "INVALID_MARKUP", r.Code)
		assert.NotEmpty(t, r.Link)
		assert.Len(t, r.Warnings, 2)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := run(t, "lint", page, "#ok", "--kind", "carousel", "--json=false")
		assert.Error(t, err)
	})
}

func TestCountCommandOffline(t *testing.T) {
	page := writePage(t, `<ul><li>a</li><li>b</li></ul>`)

	out, err := run(t, "count", page, "li", "--offline", "--json=false")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestReportWrite(t *testing.T) {
	out := driver.Outcome{
		Kind:     "popup",
		Selector: "#t",
		State:    driver.StateFailed,
		FailedIn: driver.StateAwaitingState,
		Warnings: []diagnostics.Warning{{Code: diagnostics.CodePoorSemantics, Detail: "tabindex", Link: "https://example.test"}},
		Elapsed:  1200 * time.Millisecond,
	}
	r := newOutcomeReport(out, diagnostics.NewError(diagnostics.CodeTimeout, "#t"))

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf, false))
	assert.Contains(t, buf.String(), "warning POOR_SEMANTICS: tabindex (see https://example.test)")
	assert.Contains(t, buf.String(), "FAIL TIMEOUT")

	assert.Equal(t, "TIMEOUT", r.Code)
	assert.Equal(t, "AWAITING_STATE", r.FailedIn)
	assert.Equal(t, int64(1200), r.ElapsedMs)
}
