package invoicing

import (
	"errors"
	"time"
)

// State is the position of a run in Allocating → Recorded → Rendered →
// Distributed → CleanedUp, or Failed
type State string

// Run states
const (
	StateAllocating  State = "Allocating"
	StateRecorded    State = "Recorded"
	StateRendered    State = "Rendered"
	StateDistributed State = "Distributed"
	StateCleanedUp   State = "CleanedUp"
	StateFailed      State = "Failed"
)

func (s State) String() string {
	return string(s)
}

// Step names of the distribution and cleanup stages
const (
	StepUpload          = "upload"
	StepEmailRecipient  = "email_recipient"
	StepEmailAccountant = "email_accountant"
	StepCleanup         = "cleanup"
)

// StepStatus is the outcome of one step
type StepStatus string

// Step statuses
const (
	StepSucceeded    StepStatus = "succeeded"
	StepFailed       StepStatus = "failed"
	StepSkipped      StepStatus = "skipped"       // no backend configured
	StepNotRequested StepStatus = "not_requested" // the caller did not ask for it
)

// StepOutcome records what happened to a step
type StepOutcome struct {
	Step   string
	Status StepStatus
	Err    error
}

// Report describes one run. Issue returns it whether the run succeeded or not.
type Report struct {
	RunID        string
	Number       string
	Filename     string
	ArtifactPath string
	State        State
	// FailedStage is set when State is StateFailed
	FailedStage State
	// OrphanedLedgerRecord is set when the ledger holds Number but no
	// document was produced for it
	OrphanedLedgerRecord bool
	// AllocationAttempts counts ledger reads, including re-allocations
	// after NumberTaken
	AllocationAttempts int
	Steps              []StepOutcome
	StartedAt          time.Time
	FinishedAt         time.Time
}

// Failed reports whether the run ended in StateFailed
func (r *Report) Failed() bool {
	return r.State == StateFailed
}

// Step returns the outcome of the named step
func (r *Report) Step(name string) (StepOutcome, bool) {
	for _, s := range r.Steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepOutcome{}, false
}

// StepErrors joins the errors of every failed step, or returns nil
func (r *Report) StepErrors() error {
	var errs []error
	for _, s := range r.Steps {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	return errors.Join(errs...)
}

// Duration returns how long the run took
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) addStep(step string, status StepStatus, err error) StepOutcome {
	o := StepOutcome{Step: step, Status: status, Err: err}
	r.Steps = append(r.Steps, o)
	return o
}
