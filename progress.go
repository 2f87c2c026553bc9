package h5store

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Progress receives the progress of a long transfer and can stop it.
// Update gets the fraction done in [0, 1]. Cancelled is polled between
// chunks; once it returns true the transfer stops with ErrCancelled.
//
// Both methods are called from the goroutine running the operation or
// from its chunk workers, never concurrently.
type Progress interface {
	Update(fraction float64)
	Cancelled() bool
}

// progressInterval throttles Update calls.
const progressInterval = 100 * time.Millisecond

// tracker bridges a Progress to the engine's per-chunk callback and a
// context that is cancelled when the Progress asks to stop.
type tracker struct {
	p      Progress
	every  rate.Sometimes
	ctx    context.Context
	cancel context.CancelFunc
}

// newTracker returns a tracker for p, which may be nil. The caller must
// call done.
func newTracker(p Progress) *tracker {
	ctx, cancel := context.WithCancel(context.Background())
	return &tracker{p: p, every: rate.Sometimes{Interval: progressInterval}, ctx: ctx, cancel: cancel}
}

// stopped polls the Progress and reports whether the transfer must stop.
func (tr *tracker) stopped() bool {
	if tr.ctx.Err() != nil {
		return true
	}
	if tr.p != nil && tr.p.Cancelled() {
		tr.cancel()
		return true
	}
	return false
}

// checkpoint returns ErrCancelled once the Progress asked to stop.
func (tr *tracker) checkpoint(op, path string) error {
	if tr.stopped() {
		return &Error{Op: op, Path: path, Kind: ErrCancelled, Err: context.Canceled}
	}
	return nil
}

func (tr *tracker) report(fraction float64) {
	if tr.p == nil {
		return
	}
	tr.every.Do(func() { tr.p.Update(fraction) })
}

// span returns an engine progress callback that maps one transfer onto
// the fraction range [lo, hi] of the whole operation.
func (tr *tracker) span(lo, hi float64) func(done, total uint64) {
	if tr.p == nil {
		return nil
	}
	return func(done, total uint64) {
		if tr.stopped() {
			return
		}
		f := 1.0
		if total > 0 {
			f = float64(done) / float64(total)
		}
		tr.report(lo + (hi-lo)*f)
	}
}

// done reports completion unless the transfer failed, and releases the
// context.
func (tr *tracker) done(err error) {
	if err == nil && tr.p != nil {
		tr.p.Update(1)
	}
	tr.cancel()
}
