// Package safety defines the content-filter boundary. The real classifier is
// an external collaborator; the core only needs a cheap allow/deny verdict on
// input text and on partial/complete output.
package safety

import (
	"context"
	"strings"
)

// Verdict is the filter's decision over a piece of text.
type Verdict struct {
	Allowed bool
	// Reason is set when the text was denied.
	Reason string
}

// Filter checks prompts before generation and generated text during and after
// it. Both calls must be cheap enough to run every few tokens.
type Filter interface {
	CheckInput(ctx context.Context, text string) (Verdict, error)
	CheckOutput(ctx context.Context, text string) (Verdict, error)
}

// AllowAll passes every check. Used when no filter is configured.
type AllowAll struct{}

func (AllowAll) CheckInput(context.Context, string) (Verdict, error) {
	return Verdict{Allowed: true}, nil
}

func (AllowAll) CheckOutput(context.Context, string) (Verdict, error) {
	return Verdict{Allowed: true}, nil
}

// Blocklist denies text containing any configured term (case-insensitive
// substring match). It is a stand-in for a real on-device classifier, useful
// for local setups and tests.
type Blocklist struct {
	terms []string
}

// NewBlocklist builds a Blocklist, lowercasing and dropping empty terms.
func NewBlocklist(terms []string) *Blocklist {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return &Blocklist{terms: out}
}

func (b *Blocklist) check(text string) Verdict {
	lower := strings.ToLower(text)
	for _, t := range b.terms {
		if strings.Contains(lower, t) {
			return Verdict{Allowed: false, Reason: "blocked term: " + t}
		}
	}
	return Verdict{Allowed: true}
}

func (b *Blocklist) CheckInput(_ context.Context, text string) (Verdict, error) {
	return b.check(text), nil
}

func (b *Blocklist) CheckOutput(_ context.Context, text string) (Verdict, error) {
	return b.check(text), nil
}
