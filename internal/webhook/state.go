package webhook

import (
	"fmt"
	"net/http"
)

// State is the furthest pipeline stage a request reached.
type State int

const (
	StateReceived State = iota
	StateContentTypeChecked
	StatePayloadParsed
	StateRepositoryMatched
	StateSignatureValidated
	StateEventDispatched
	StateResponded
)

var stateNames = [...]string{
	StateReceived:           "received",
	StateContentTypeChecked: "content_type_checked",
	StatePayloadParsed:      "payload_parsed",
	StateRepositoryMatched:  "repository_matched",
	StateSignatureValidated: "signature_validated",
	StateEventDispatched:    "event_dispatched",
	StateResponded:          "responded",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Rejection ends the pipeline with an HTTP status and a short reason.
type Rejection struct {
	Status int
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%d %s: %s", r.Status, http.StatusText(r.Status), r.Reason)
}

func reject(status int, reason string) *Rejection {
	return &Rejection{Status: status, Reason: reason}
}
