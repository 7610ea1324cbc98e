// Package patience provides deadline bounded predicate polling. It knows
// nothing about widgets or markup, only "evaluate until true or expire".
package patience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultInterval is the sampling interval used when none is configured.
const DefaultInterval = 25 * time.Millisecond

// ErrExpired is returned by Poll when the deadline passes before the
// condition holds. Callers decide which error code that becomes.
var ErrExpired = errors.New("patience expired")

// Condition is evaluated against remote state on every sample.
type Condition func(ctx context.Context) (bool, error)

// Result describes a completed poll.
type Result struct {
	Satisfied bool
	Samples   int
	Elapsed   time.Duration
}

// Poller samples a Condition at a fixed interval.
type Poller struct {
	interval time.Duration
	now      func() time.Time
}

// NewPoller creates a poller. A non-positive interval selects DefaultInterval.
func NewPoller(interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{interval: interval, now: time.Now}
}

// Interval returns the sampling interval.
func (p *Poller) Interval() time.Duration { return p.interval }

// Poll evaluates cond until it returns true or patience has elapsed. It
// returns as soon as cond holds, with no trailing delay. The final sample is
// taken at the deadline, so a timeout is never reported early. A condition
// error aborts polling and is returned wrapped.
//
// Each sample runs under a context that expires one interval past the
// deadline. A sample cut off by that context reports ErrExpired, so a stalled
// condition cannot stretch the poll beyond patience plus one interval.
func (p *Poller) Poll(ctx context.Context, patience time.Duration, cond Condition) (Result, error) {
	if patience < 0 {
		patience = 0
	}
	start := p.now()
	deadline := start.Add(patience)

	var res Result
	for {
		ok, cutOff, err := p.sample(ctx, deadline, cond)
		res.Samples++
		if err != nil {
			res.Elapsed = p.now().Sub(start)
			switch {
			case ctx.Err() != nil:
				return res, ctx.Err()
			case cutOff:
				return res, ErrExpired
			}
			return res, fmt.Errorf("evaluating condition: %w", err)
		}
		if ok {
			res.Satisfied = true
			res.Elapsed = p.now().Sub(start)
			return res, nil
		}

		remaining := deadline.Sub(p.now())
		if remaining <= 0 {
			res.Elapsed = p.now().Sub(start)
			return res, ErrExpired
		}

		wait := p.interval
		if remaining < wait {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			res.Elapsed = p.now().Sub(start)
			return res, ctx.Err()
		case <-timer.C:
		}
	}
}

// sample runs cond once under the per-sample deadline. cutOff reports
// whether that deadline, rather than the caller's context, ended the sample.
func (p *Poller) sample(ctx context.Context, deadline time.Time, cond Condition) (ok, cutOff bool, err error) {
	sampleCtx, cancel := context.WithDeadline(ctx, deadline.Add(p.interval))
	defer cancel()

	ok, err = cond(sampleCtx)
	cutOff = ctx.Err() == nil && errors.Is(sampleCtx.Err(), context.DeadlineExceeded)
	return ok, cutOff, err
}
