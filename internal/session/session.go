package session

import (
	"strings"
	"time"
)

// Exchange is one completed user/assistant turn retained in the sliding
// window.
type Exchange struct {
	UserMessage       string
	AssistantResponse string
	Timestamp         time.Time
	TokenCount        int
}

// contextTurns is how many retained exchanges are rendered into the prompt.
const contextTurns = 10

// session is the mutable per-conversation state. Single-writer: only the
// generation call for this id mutates it, under the manager lock.
type session struct {
	conversationID string
	modelID        string
	systemPrompt   string
	createdAt      time.Time
	lastActivity   time.Time
	tokenCount     int
	exchanges      []Exchange
	// genCh size 1: single in-flight generation per session.
	genCh chan struct{}
}

func newSession(conversationID, modelID, systemPrompt string, now time.Time) *session {
	return &session{
		conversationID: conversationID,
		modelID:        modelID,
		systemPrompt:   systemPrompt,
		createdAt:      now,
		lastActivity:   now,
		genCh:          make(chan struct{}, 1),
	}
}

// append records a completed exchange and evicts oldest-first until the
// retained token count fits the window budget. The newest exchange is always
// retained, even when it alone exceeds the budget.
func (s *session) append(ex Exchange, windowTokens int) (evicted int) {
	s.exchanges = append(s.exchanges, ex)
	s.tokenCount += ex.TokenCount
	for s.tokenCount > windowTokens && len(s.exchanges) > 1 {
		s.tokenCount -= s.exchanges[0].TokenCount
		s.exchanges = s.exchanges[1:]
		evicted++
	}
	s.lastActivity = ex.Timestamp
	return evicted
}

// renderPrompt builds the full context prompt: system prompt, the last
// contextTurns exchanges as alternating turns, then the new user prompt.
func (s *session) renderPrompt(defaultSystem, prompt string) string {
	var b strings.Builder
	system := s.systemPrompt
	if system == "" {
		system = defaultSystem
	}
	if system != "" {
		b.WriteString(system)
		b.WriteString("\n\n")
	}
	start := 0
	if len(s.exchanges) > contextTurns {
		start = len(s.exchanges) - contextTurns
	}
	for _, ex := range s.exchanges[start:] {
		b.WriteString("User: ")
		b.WriteString(ex.UserMessage)
		b.WriteString("\nAssistant: ")
		b.WriteString(ex.AssistantResponse)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(prompt)
	b.WriteString("\nAssistant:")
	return b.String()
}

// View is a read-only snapshot of a session.
type View struct {
	ConversationID string
	ModelID        string
	CreatedAt      time.Time
	LastActivity   time.Time
	TokenCount     int
	Exchanges      []Exchange
}

// view copies session state so introspection never observes a torn exchange
// list.
func (s *session) view() View {
	exchanges := make([]Exchange, len(s.exchanges))
	copy(exchanges, s.exchanges)
	return View{
		ConversationID: s.conversationID,
		ModelID:        s.modelID,
		CreatedAt:      s.createdAt,
		LastActivity:   s.lastActivity,
		TokenCount:     s.tokenCount,
		Exchanges:      exchanges,
	}
}
