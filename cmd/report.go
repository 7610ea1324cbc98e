// cmd/report.go
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/xkilldash9x/ariadriver/internal/diagnostics"
	"github.com/xkilldash9x/ariadriver/internal/driver"
)

// Report is the printable result of one command.
type Report struct {
	Kind      string                `json:"kind,omitempty"`
	Selector  string                `json:"selector"`
	State     string                `json:"state,omitempty"`
	FailedIn  string                `json:"failed_in,omitempty"`
	Code      string                `json:"code,omitempty"`
	Error     string                `json:"error,omitempty"`
	Link      string                `json:"link,omitempty"`
	Warnings  []diagnostics.Warning `json:"warnings"`
	ElapsedMs int64                 `json:"elapsed_ms,omitempty"`
	Count     *int                  `json:"count,omitempty"`
}

func newOutcomeReport(out driver.Outcome, err error) Report {
	r := Report{
		Kind:      string(out.Kind),
		Selector:  out.Selector,
		State:     string(out.State),
		FailedIn:  string(out.FailedIn),
		Warnings:  out.Warnings,
		ElapsedMs: out.Elapsed.Milliseconds(),
	}
	r.setError(err)
	return r
}

func (r *Report) setError(err error) {
	if err == nil {
		return
	}
	r.Error = err.Error()
	var de *diagnostics.Error
	if errors.As(err, &de) {
		r.Code = string(de.Code)
		r.Link = de.Link
	}
}

// ToJSON serializes the report.
func (r Report) ToJSON() ([]byte, error) {
	if r.Warnings == nil {
		r.Warnings = []diagnostics.Warning{}
	}
	return json.MarshalIndent(r, "", "  ")
}

// Write prints the report as JSON or as human readable lines.
func (r Report) Write(w io.Writer, asJSON bool) error {
	if asJSON {
		b, err := r.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to serialize report to JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}

	for _, warn := range r.Warnings {
		line := fmt.Sprintf("warning %s: %s", warn.Code, warn.Detail)
		if warn.Link != "" {
			line += " (see " + warn.Link + ")"
		}
		fmt.Fprintln(w, line)
	}
	switch {
	case r.Count != nil:
		fmt.Fprintln(w, *r.Count)
	case r.Error != "":
		fmt.Fprintf(w, "FAIL %s\n", r.Error)
	default:
		label := r.State
		if label == "" {
			label = "OK"
		}
		fmt.Fprintf(w, "%s %s %s (%dms)\n", label, r.Kind, r.Selector, r.ElapsedMs)
	}
	return nil
}
