package httpapi

import (
	json "github.com/goccy/go-json"

	"inferd/internal/session"
)

// Wire shapes for the generation event stream. One JSON object per line;
// the type field discriminates.
type startedLine struct {
	Type string `json:"type"`
}

type tokenLine struct {
	Type       string  `json:"type"`
	Token      string  `json:"token"`
	Index      int     `json:"index"`
	Partial    string  `json:"partial,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

type completedLine struct {
	Type            string  `json:"type"`
	Content         string  `json:"content"`
	Tokens          int     `json:"tokens"`
	ElapsedMs       int64   `json:"elapsed_ms"`
	TokensPerSecond float64 `json:"tokens_per_second"`
	FinishReason    string  `json:"finish_reason"`
}

type safetyLine struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type errorLine struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// resultLine renders one stream event as an NDJSON line. The switch is
// exhaustive over the closed result set.
func resultLine(r session.Result) []byte {
	var v any
	switch e := r.(type) {
	case session.Started:
		v = startedLine{Type: "started"}
	case session.TokenEvent:
		v = tokenLine{Type: "token", Token: e.Token, Index: e.Index, Partial: e.Partial, Confidence: e.Confidence}
	case session.Completed:
		v = completedLine{
			Type:            "completed",
			Content:         e.Text,
			Tokens:          e.Tokens,
			ElapsedMs:       e.Elapsed.Milliseconds(),
			TokensPerSecond: e.TokensPerSecond,
			FinishReason:    string(e.Reason),
		}
	case session.SafetyViolation:
		v = safetyLine{Type: "safety_violation", Reason: e.Reason}
	case session.Failure:
		line := errorLine{Type: "error", Message: e.Message}
		if e.Cause != nil {
			line.Cause = e.Cause.Error()
		}
		v = line
	default:
		v = errorLine{Type: "error", Message: "unknown event"}
	}
	b, _ := json.Marshal(v)
	return append(b, '\n')
}
