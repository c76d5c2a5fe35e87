package domain

import "encoding/json"

// DecisionKind discriminates the outcome of a permission request
type DecisionKind string

const (
	DecisionAllowed DecisionKind = "allowed"
	DecisionDenied  DecisionKind = "denied"
	DecisionAborted DecisionKind = "aborted"
)

// Decision is the tagged outcome of a tool permission request.
// Denied carries the reason (the redirect text verbatim when the human
// redirected); Allowed may carry a modified tool input.
type Decision struct {
	Kind          DecisionKind
	Reason        string
	ModifiedInput json.RawMessage
}

// Allow approves the tool invocation with its input unchanged
func Allow() Decision {
	return Decision{Kind: DecisionAllowed}
}

// AllowWithInput approves the tool invocation with a replacement input
func AllowWithInput(input json.RawMessage) Decision {
	return Decision{Kind: DecisionAllowed, ModifiedInput: input}
}

// Deny rejects the tool invocation with a human-supplied reason
func Deny(reason string) Decision {
	return Decision{Kind: DecisionDenied, Reason: reason}
}

// Abort resolves the request because the whole session was cancelled,
// distinct from a human deny
func Abort() Decision {
	return Decision{Kind: DecisionAborted}
}
