// Package poller waits for a placed call to reach a terminal status.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"coldcall/internal/provider"
)

// Status is the outcome status of a polled call.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusEnded     Status = "ended"
	StatusPending   Status = "pending"
)

// NotAvailable is shown in place of a missing summary or recording.
const NotAvailable = "Not Available"

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 30
)

// IsTerminal reports whether no further state change is expected.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusEnded:
		return true
	}
	return false
}

// Fetcher returns the provider's current view of a call.
type Fetcher interface {
	GetCall(ctx context.Context, callID string) (*provider.CallStatus, error)
}

// Result is what the poller learned about a call. Optional fields are nil when
// absent; a pending result never carries them. A present but empty value is
// kept as the empty string.
type Result struct {
	Status       Status
	EndedReason  *string
	Summary      *string
	RecordingURL *string
	Attempts     int
}

// SummaryText returns the summary or NotAvailable.
func (r Result) SummaryText() string { return orNotAvailable(r.Summary) }

// RecordingText returns the recording reference or NotAvailable.
func (r Result) RecordingText() string { return orNotAvailable(r.RecordingURL) }

// EndedReasonText returns the ended reason or NotAvailable.
func (r Result) EndedReasonText() string { return orNotAvailable(r.EndedReason) }

func orNotAvailable(v *string) string {
	if v == nil {
		return NotAvailable
	}
	return *v
}

// Attempt describes one status check, reported through Options.OnAttempt.
type Attempt struct {
	Number int
	Status string
	Err    error
}

// Options tunes a Poller. Zero values fall back to the defaults.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnAttempt observes every status check.
	OnAttempt func(a Attempt)
}

// Poller polls a Fetcher at a fixed cadence within an attempt budget.
type Poller struct {
	fetcher Fetcher
	opts    Options
}

func New(fetcher Fetcher, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Poller{fetcher: fetcher, opts: opts}
}

// Budget is the worst-case time Wait spends sleeping.
func (p *Poller) Budget() time.Duration {
	return time.Duration(p.opts.MaxAttempts-1) * p.opts.Interval
}

// Wait blocks until callID reaches a terminal status, the attempt budget is
// spent, or ctx is done. Failed status checks consume an attempt and are
// passed to warn (which may be nil); they never end the loop early. An
// exhausted budget yields a pending result with a nil error.
func (p *Poller) Wait(ctx context.Context, callID string, warn func(msg string)) (Result, error) {
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Status: StatusPending, Attempts: attempt - 1}, errors.Wrap(err, "poll cancelled")
		}
		st, err := p.fetcher.GetCall(ctx, callID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{Status: StatusPending, Attempts: attempt}, errors.Wrap(ctxErr, "poll cancelled")
			}
			p.observe(Attempt{Number: attempt, Err: err})
			if warn != nil {
				warn(fmt.Sprintf("Failed to fetch call status (Attempt %d)", attempt))
			}
		} else {
			p.observe(Attempt{Number: attempt, Status: st.Status})
			if status := Status(st.Status); status.IsTerminal() {
				return Result{
					Status:       status,
					EndedReason:  st.EndedReason,
					Summary:      st.Summary(),
					RecordingURL: st.RecordingURL,
					Attempts:     attempt,
				}, nil
			}
		}
		if attempt == p.opts.MaxAttempts {
			break
		}
		if err := p.opts.Sleep(ctx, p.opts.Interval); err != nil {
			return Result{Status: StatusPending, Attempts: attempt}, errors.Wrap(err, "poll cancelled")
		}
	}
	return Result{Status: StatusPending, Attempts: p.opts.MaxAttempts}, nil
}

func (p *Poller) observe(a Attempt) {
	if p.opts.OnAttempt != nil {
		p.opts.OnAttempt(a)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
