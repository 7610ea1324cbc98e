package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ariadriver/internal/diagnostics"
	"github.com/xkilldash9x/ariadriver/internal/observability"
	"github.com/xkilldash9x/ariadriver/internal/patience"
	"github.com/xkilldash9x/ariadriver/internal/widget"
)

// State is a step of a widget operation.
type State string

const (
	StateValidating    State = "VALIDATING"
	StateActivating    State = "ACTIVATING"
	StateAwaitingState State = "AWAITING_STATE"
	StateSucceeded     State = "SUCCEEDED"
	StateFailed        State = "FAILED"
)

// Outcome summarises a finished widget operation. Warnings holds every
// diagnostic published on the session while the operation ran.
type Outcome struct {
	Kind     widget.Kind
	Selector string
	// State is terminal. FailedIn names the state that failed, if any.
	State    State
	FailedIn State
	Warnings []diagnostics.Warning
	Elapsed  time.Duration
}

// OpenPopup activates a popup trigger and waits for its container.
func (d *Driver) OpenPopup(ctx context.Context, selector string) error {
	_, err := d.Operate(ctx, widget.KindPopup, selector)
	return err
}

// ToggleButton activates a toggle button and waits for aria-pressed to change.
func (d *Driver) ToggleButton(ctx context.Context, selector string) error {
	_, err := d.Operate(ctx, widget.KindButton, selector)
	return err
}

// OpenDialog activates a dialog trigger and waits for the dialog.
func (d *Driver) OpenDialog(ctx context.Context, selector string) error {
	_, err := d.Operate(ctx, widget.KindDialog, selector)
	return err
}

// Operate runs the widget protocol for kind against selector. The trigger is
// resolved once, before validation; a failed validation issues no activation
// command and a failed activation never starts the wait.
func (d *Driver) Operate(ctx context.Context, kind widget.Kind, selector string) (Outcome, error) {
	desc, err := widget.Lookup(kind)
	if err != nil {
		return Outcome{Kind: kind, Selector: selector, State: StateFailed, FailedIn: StateValidating}, err
	}
	op := &operation{
		driver:   d,
		desc:     desc,
		selector: selector,
		logger:   d.logger.With(observability.OperationFields(string(desc.Kind), selector)...),
	}

	rec := &diagnostics.Recorder{}
	unsubscribe := d.sink.Subscribe(rec.Listen)
	start := time.Now()
	err = op.run(ctx)
	unsubscribe()

	out := Outcome{
		Kind:     desc.Kind,
		Selector: selector,
		State:    op.state,
		Warnings: rec.Warnings(),
		Elapsed:  time.Since(start),
	}
	if err != nil {
		out.FailedIn = op.failedIn
	}
	if d.metrics != nil {
		d.metrics.ObserveOperation(string(desc.Kind), outcomeLabel(err))
	}
	return out, err
}

// Inspect resolves selector and runs only the markup rule for kind. It
// never focuses, presses keys or waits.
func (d *Driver) Inspect(ctx context.Context, kind widget.Kind, selector string) ([]diagnostics.Warning, error) {
	desc, err := widget.Lookup(kind)
	if err != nil {
		return nil, err
	}
	rec := &diagnostics.Recorder{}
	unsubscribe := d.sink.Subscribe(rec.Listen)
	defer unsubscribe()

	trigger, err := d.resolve(ctx, selector)
	if err != nil {
		return rec.Warnings(), err
	}
	return rec.Warnings(), widget.Validate(ctx, d.backend, desc, selector, trigger)
}

type operation struct {
	driver   *Driver
	desc     widget.Descriptor
	selector string
	logger   *zap.Logger

	state    State
	failedIn State
}

func (op *operation) transition(next State) {
	op.logger.Debug("State transition", zap.String("from", string(op.state)), zap.String("to", string(next)))
	op.state = next
}

func (op *operation) fail(err error) error {
	op.failedIn = op.state
	op.transition(StateFailed)
	return err
}

func (op *operation) run(ctx context.Context) error {
	d := op.driver

	op.transition(StateValidating)
	trigger, err := d.resolve(ctx, op.selector)
	if err != nil {
		return op.fail(err)
	}
	if err := widget.Validate(ctx, d.backend, op.desc, op.selector, trigger); err != nil {
		return op.fail(err)
	}

	op.transition(StateActivating)
	cond, err := op.desc.Success(ctx, d.backend, trigger)
	if err != nil {
		return op.fail(err)
	}
	if err := d.activate(ctx, op.selector, trigger); err != nil {
		return op.fail(err)
	}

	op.transition(StateAwaitingState)
	if err := op.await(ctx, cond); err != nil {
		return op.fail(err)
	}
	op.transition(StateSucceeded)
	return nil
}

func (op *operation) await(ctx context.Context, cond patience.Condition) error {
	d := op.driver
	res, err := d.poller.Poll(ctx, d.patience, cond)
	if d.metrics != nil {
		d.metrics.ObserveAwait(string(op.desc.Kind), res.Satisfied, res.Elapsed)
	}
	op.logger.Debug("Await finished",
		zap.Bool("satisfied", res.Satisfied),
		zap.Int("samples", res.Samples),
		zap.Duration("elapsed", res.Elapsed),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, patience.ErrExpired):
		return diagnostics.NewError(diagnostics.CodeTimeout, op.selector)
	default:
		return fmt.Errorf("awaiting %s state for %q: %w", op.desc.Kind, op.selector, err)
	}
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var de *diagnostics.Error
	if errors.As(err, &de) {
		return string(de.Code)
	}
	return "error"
}
