// Package console drives one end-to-end call cycle: place the call, wait for
// it to finish, classify the summary, persist the outcome and tell the
// operator what happened.
package console

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"coldcall/internal/classify"
	"coldcall/internal/events"
	"coldcall/internal/logging"
	"coldcall/internal/metrics"
	"coldcall/internal/notify"
	"coldcall/internal/poller"
	"coldcall/internal/provider"
	"coldcall/internal/store"
)

// ErrValidation is returned when a required contact field is empty.
var ErrValidation = errors.New("name, email and phone are required")

// PlacementError wraps any failure to place a call, including a provider
// rejection (*provider.RejectionError).
type PlacementError struct {
	Err error
}

func (e *PlacementError) Error() string { return "place call: " + e.Err.Error() }
func (e *PlacementError) Unwrap() error { return e.Err }

// Contact is the operator-entered callee.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Normalize trims surrounding whitespace from every field.
func (c Contact) Normalize() Contact {
	return Contact{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.TrimSpace(c.Email),
		Phone: strings.TrimSpace(c.Phone),
	}
}

// Validate reports every empty field.
func (c Contact) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(c.Phone) == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrValidation, "missing %s", strings.Join(missing, ", "))
	}
	return nil
}

type Initiator interface {
	PlaceCall(ctx context.Context, customer provider.Customer) (string, error)
}

type Waiter interface {
	Wait(ctx context.Context, callID string, warn func(msg string)) (poller.Result, error)
}

type Classifier interface {
	Classify(ctx context.Context, summary string) classify.Result
}

type Recorder interface {
	Insert(ctx context.Context, rec *store.CallRecord) (int64, error)
}

type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

// Deps are the collaborators of an Orchestrator. Bus and Notifier are
// optional.
type Deps struct {
	Initiator  Initiator
	Poller     Waiter
	Classifier Classifier
	Store      Recorder
	Notifier   Notifier
	Bus        *events.Bus
	// PersistPending writes a "pending" row when the poll budget runs out.
	PersistPending bool
	// NewCycleID overrides uuid generation.
	NewCycleID func() string
}

// Outcome summarizes one cycle. Record is set only when a row was written.
type Outcome struct {
	CycleID   string            `json:"cycle_id"`
	CallID    string            `json:"call_id,omitempty"`
	Status    poller.Status     `json:"status,omitempty"`
	Result    poller.Result     `json:"-"`
	Category  string            `json:"category,omitempty"`
	Record    *store.CallRecord `json:"record,omitempty"`
	Persisted bool              `json:"persisted"`
}

// Orchestrator runs call cycles. It holds no per-cycle state, so one instance
// may serve concurrent requests.
type Orchestrator struct {
	deps Deps
}

func New(deps Deps) *Orchestrator {
	if deps.NewCycleID == nil {
		deps.NewCycleID = uuid.NewString
	}
	return &Orchestrator{deps: deps}
}

// Run executes one cycle for contact, reporting progress to rep (which may be
// nil). Validation, placement and poll-cancellation errors abort the cycle
// before anything is written; a storage error is returned wrapped. A
// classification failure never aborts.
func (o *Orchestrator) Run(ctx context.Context, contact Contact, rep Reporter) (Outcome, error) {
	cycleID := o.deps.NewCycleID()
	ctx = logging.WithCycle(ctx, cycleID)
	logger := logging.FromContext(ctx)
	rep = Multi(rep, BusReporter{Bus: o.deps.Bus, CycleID: cycleID})
	out := Outcome{CycleID: cycleID}

	metrics.IncCyclesStarted()
	contact = contact.Normalize()
	if err := contact.Validate(); err != nil {
		rep.Warn("Please fill all fields before starting a call.")
		logger.Info().Err(err).Msg("cycle rejected")
		return out, err
	}

	callID, err := o.deps.Initiator.PlaceCall(ctx, provider.Customer{Number: contact.Phone})
	if err != nil {
		metrics.IncPlacementsRejected()
		rep.Error("Error: " + placementDetail(err))
		logger.Error().Err(err).Str("phone", contact.Phone).Msg("call placement failed")
		return out, &PlacementError{Err: err}
	}
	out.CallID = callID
	metrics.IncCallsPlaced()
	logger.Info().Str("call_id", callID).Msg("call placed")
	rep.Success(fmt.Sprintf("Call started! Call ID: %s", callID))
	rep.Info("Waiting for call to complete...")

	res, err := o.deps.Poller.Wait(ctx, callID, func(msg string) {
		metrics.IncPollWarnings()
		logger.Warn().Str("call_id", callID).Msg(msg)
		rep.Warn(msg)
	})
	out.Result, out.Status = res, res.Status
	if err != nil {
		logger.Warn().Err(err).Str("call_id", callID).Msg("stopped waiting for call")
		return out, errors.Wrap(err, "wait for call")
	}

	if res.Status == poller.StatusPending {
		metrics.IncPending()
		logger.Info().Str("call_id", callID).Int("attempts", res.Attempts).Msg("call still pending after poll budget")
		if !o.deps.PersistPending {
			return out, nil
		}
		rec := &store.CallRecord{Name: contact.Name, Email: contact.Email, Phone: contact.Phone, Status: string(poller.StatusPending)}
		if err := o.persist(ctx, &out, rec); err != nil {
			rep.Error("Failed to save call record.")
			return out, err
		}
		rep.Info(fmt.Sprintf("Call %s is still pending; saved to history.", callID))
		return out, nil
	}

	rep.Success(fmt.Sprintf("Call %s! Reason: %s", capitalize(string(res.Status)), res.EndedReasonText()))

	classified := o.deps.Classifier.Classify(ctx, res.SummaryText())
	if classified.Err != nil {
		metrics.IncClassificationFailures()
		rep.Error(fmt.Sprintf("Error in classification: %v", classified.Err))
	} else {
		metrics.IncClassified()
	}
	out.Category = classified.Category

	rec := &store.CallRecord{
		Name:         contact.Name,
		Email:        contact.Email,
		Phone:        contact.Phone,
		Status:       classified.Category,
		Summary:      res.Summary,
		RecordingURL: res.RecordingURL,
	}
	if err := o.persist(ctx, &out, rec); err != nil {
		rep.Error("Failed to save call record.")
		return out, err
	}

	rep.Info("Call Summary: " + res.SummaryText())
	rep.Info("Recording: " + res.RecordingText())
	rep.Info("Deal Status: " + classified.Category)

	o.notify(ctx, contact, out)
	return out, nil
}

func (o *Orchestrator) persist(ctx context.Context, out *Outcome, rec *store.CallRecord) error {
	if _, err := o.deps.Store.Insert(ctx, rec); err != nil {
		logging.FromContext(ctx).Error().Err(err).Str("call_id", out.CallID).Msg("insert call record failed")
		return errors.Wrap(err, "insert call record")
	}
	metrics.IncRecordsPersisted()
	out.Record, out.Persisted = rec, true
	logging.FromContext(ctx).Info().Int64("record_id", rec.ID).Str("status", rec.Status).Msg("call record saved")
	return nil
}

func (o *Orchestrator) notify(ctx context.Context, contact Contact, out Outcome) {
	if o.deps.Notifier == nil {
		return
	}
	text := fmt.Sprintf("Call to %s (%s) %s: %s", contact.Name, contact.Phone, out.Status, out.Category)
	if err := o.deps.Notifier.Send(ctx, notify.Message{Text: text}); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("outcome notification failed")
	}
}

func placementDetail(err error) string {
	var rejected *provider.RejectionError
	if errors.As(err, &rejected) {
		if rejected.Body != "" {
			return rejected.Body
		}
		return fmt.Sprintf("status %d", rejected.StatusCode)
	}
	return err.Error()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
