package session

import "time"

// FinishReason classifies why a generation ended.
type FinishReason string

const (
	FinishCompleted    FinishReason = "completed"
	FinishMaxTokens    FinishReason = "max_tokens"
	FinishStopSequence FinishReason = "stop_sequence"
	FinishSafety       FinishReason = "safety_filter"
	FinishError        FinishReason = "error"
)

// Result is the closed set of events a generation stream emits. Exactly one
// terminal event (Completed, SafetyViolation, or Failure) ends every stream;
// the channel is closed right after it. Consumers switch exhaustively over
// the concrete types.
type Result interface {
	isResult()
}

// Started opens every stream.
type Started struct {
	At time.Time
}

// TokenEvent carries one generated token and the text accumulated so far.
type TokenEvent struct {
	Token   string
	Partial string
	Index   int
	// Confidence of the sampled token when the runtime reports one.
	Confidence float64
}

// Completed is the successful terminal event.
type Completed struct {
	Text    string
	Tokens  int
	Elapsed time.Duration
	// TokensPerSecond is Tokens*1000/elapsed milliseconds.
	TokensPerSecond float64
	Reason          FinishReason
}

// SafetyViolation terminates a stream whose input or output was denied by the
// content filter. It is a first-class outcome, not an error.
type SafetyViolation struct {
	Reason string
}

// Failure terminates a stream after an unexpected error. Errors never escape
// the stream as a fault.
type Failure struct {
	Message string
	Cause   error
}

func (Started) isResult()         {}
func (TokenEvent) isResult()      {}
func (Completed) isResult()       {}
func (SafetyViolation) isResult() {}
func (Failure) isResult()         {}
