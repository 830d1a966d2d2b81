package notify

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a notification did not go out cleanly.
type FailureKind string

const (
	KindNoRecipients  FailureKind = "no_recipients"
	KindPrimary       FailureKind = "primary_transport"
	KindSecondary     FailureKind = "secondary_transport"
	KindOrchestration FailureKind = "orchestration"
)

// Failure is one recorded problem during a Notify call.
type Failure struct {
	Kind      FailureKind
	Transport string
	Err       error
}

func (f *Failure) Error() string {
	if f.Transport != "" {
		return fmt.Sprintf("%s (%s): %v", f.Kind, f.Transport, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Outcome is the result of a Notify call. Sent is true when any transport
// delivered the message, even if Failures is non-empty.
type Outcome struct {
	LogID    string
	Sent     bool
	Via      string
	Failures []*Failure
}

// Has reports whether a failure of kind k was recorded.
func (o Outcome) Has(k FailureKind) bool {
	for _, f := range o.Failures {
		if f.Kind == k {
			return true
		}
	}
	return false
}

// Err joins all recorded failures, or returns nil.
func (o Outcome) Err() error {
	if len(o.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(o.Failures))
	for _, f := range o.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

func (o *Outcome) fail(kind FailureKind, transport string, err error) {
	o.Failures = append(o.Failures, &Failure{Kind: kind, Transport: transport, Err: err})
}
