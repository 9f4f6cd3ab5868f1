package executor

import (
	"fmt"
	"time"
)

// OutcomeKind distinguishes requests that produced a response from those that did not.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// FailureReason classifies a request that produced no response.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	ReasonTransport
	ReasonTimeout
)

func (r FailureReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonTransport:
		return "transport"
	case ReasonTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("FailureReason(%d)", int(r))
	}
}

// Outcome is the result of one request attempt. A Success carries the status
// code and latency of whatever response arrived, including 4xx and 5xx.
// A Failure carries the reason and the underlying error.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Latency    time.Duration
	Reason     FailureReason
	Err        error
}

// Success builds an outcome for a request that received a response.
func Success(status int, latency time.Duration) Outcome {
	return Outcome{Kind: OutcomeSuccess, StatusCode: status, Latency: latency}
}

// Failure builds an outcome for a request that received no response.
func Failure(reason FailureReason, latency time.Duration, err error) Outcome {
	return Outcome{Kind: OutcomeFailure, Reason: reason, Latency: latency, Err: err}
}

// IsSuccess reports whether the request received a response.
func (o Outcome) IsSuccess() bool {
	return o.Kind == OutcomeSuccess
}

// IsApplicationError reports whether a response was received with a status >= 400.
func (o Outcome) IsApplicationError() bool {
	return o.Kind == OutcomeSuccess && o.StatusCode >= 400
}
