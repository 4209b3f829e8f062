package faults

import "fmt"

// Kind classifies a stage failure. The scheduler does not branch on kinds,
// but logs them and retry policies at the call sites do.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindParse              Kind = "parse"
	KindUpstream           Kind = "upstream"
	KindTimeout            Kind = "timeout"
	KindInvariantViolation Kind = "invariant_violation"
)

type Fault struct {
	Kind      Kind
	Operation string
	Message   string
	Cause     error
}

func (e *Fault) Error() string {
	if e == nil {
		return "workflow fault"
	}
	if e.Message != "" {
		return fmt.Sprintf("%s fault (op=%s): %s", e.Kind, e.Operation, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s fault (op=%s): %v", e.Kind, e.Operation, e.Cause)
	}
	return fmt.Sprintf("%s fault (op=%s)", e.Kind, e.Operation)
}

func (e *Fault) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NotFound(op, msg string) error {
	return &Fault{Kind: KindNotFound, Operation: op, Message: msg}
}

func Parse(op, msg string, cause error) error {
	return &Fault{Kind: KindParse, Operation: op, Message: msg, Cause: cause}
}

func Upstream(op string, cause error) error {
	return &Fault{Kind: KindUpstream, Operation: op, Cause: cause}
}

func Timeout(op, msg string) error {
	return &Fault{Kind: KindTimeout, Operation: op, Message: msg}
}

func Invariant(op, msg string) error {
	return &Fault{Kind: KindInvariantViolation, Operation: op, Message: msg}
}
