package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Generate streams a safety-gated, thermally adapted generation for one
// session. It fails fast when the session does not exist, no model is loaded,
// or a generation is already in flight for the session; every other outcome
// is delivered on the returned channel, which is closed after exactly one
// terminal event. Cancelling ctx stops the token loop within one token and
// leaves session state untouched.
func (m *Manager) Generate(ctx context.Context, conversationID, prompt string, params GenerationParams) (<-chan Result, error) {
	m.mu.RLock()
	loaded := m.state == StateLoaded
	model := m.model
	sess := m.sessions[conversationID]
	m.mu.RUnlock()

	if !loaded || model == nil {
		return nil, ErrNoModel()
	}
	if sess == nil {
		return nil, ErrSessionNotFound(conversationID)
	}
	// Single in-flight generation per session.
	select {
	case sess.genCh <- struct{}{}:
	default:
		return nil, ErrBusy(conversationID)
	}

	out := make(chan Result)
	go func() {
		defer close(out)
		defer func() { <-sess.genCh }()
		defer func() {
			if rec := recover(); rec != nil {
				generationsTotal.WithLabelValues("error").Inc()
				m.cfg.Logger.Error().Interface("panic", rec).Msg("generation panicked")
				emit(ctx, out, Failure{Message: fmt.Sprintf("generation panicked: %v", rec)})
			}
		}()
		m.runGeneration(ctx, sess, prompt, params, out)
	}()
	return out, nil
}

// emit delivers r unless the consumer is gone.
func emit(ctx context.Context, out chan<- Result, r Result) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) runGeneration(ctx context.Context, sess *session, prompt string, params GenerationParams, out chan<- Result) {
	log := m.cfg.Logger.With().Str("conversation", sess.conversationID).Logger()

	// Input gate: denied prompts produce exactly one SafetyViolation and no
	// tokens.
	verdict, err := m.cfg.Safety.CheckInput(ctx, prompt)
	if err != nil {
		generationsTotal.WithLabelValues("error").Inc()
		emit(ctx, out, Failure{Message: "safety check failed", Cause: err})
		return
	}
	if !verdict.Allowed {
		safetyBlocksTotal.WithLabelValues("input").Inc()
		generationsTotal.WithLabelValues("safety").Inc()
		log.Info().Str("reason", verdict.Reason).Msg("prompt blocked by safety filter")
		emit(ctx, out, SafetyViolation{Reason: verdict.Reason})
		return
	}

	// Thermal adaptation happens once, at stream start.
	state := m.cfg.Thermal.State()
	p := params.withDefaults().adaptToThermal(state)

	m.mu.RLock()
	model := m.model
	fullPrompt := sess.renderPrompt(m.cfg.SystemPrompt, prompt)
	m.mu.RUnlock()
	if model == nil {
		emit(ctx, out, Failure{Message: "model unloaded during generation"})
		return
	}

	if !emit(ctx, out, Started{At: time.Now()}) {
		return
	}

	if err := ctx.Err(); err != nil {
		return
	}
	stream, err := model.Start(fullPrompt, p.sampleParams())
	if err != nil {
		generationsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("generation start failed")
		emit(ctx, out, Failure{Message: "generation start failed", Cause: err})
		return
	}
	defer stream.Close()

	start := time.Now()
	var text strings.Builder
	count := 0
	reason := FinishCompleted

loop:
	for {
		if ctx.Err() != nil {
			// Cancelled: stop consuming, append nothing.
			return
		}
		tok, err := stream.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			break loop
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return
		case err != nil:
			generationsTotal.WithLabelValues("error").Inc()
			log.Error().Err(err).Int("tokens", count).Msg("token generation failed")
			emit(ctx, out, Failure{Message: "token generation failed", Cause: err})
			return
		}

		text.WriteString(tok.Text)
		count++
		tokensGeneratedTotal.Inc()
		if !emit(ctx, out, TokenEvent{Token: tok.Text, Partial: text.String(), Index: count - 1, Confidence: tok.Confidence}) {
			return
		}

		// Periodic output gate over the accumulated partial text.
		if count%m.cfg.SafetyInterval == 0 {
			v, err := m.cfg.Safety.CheckOutput(ctx, text.String())
			if err != nil {
				generationsTotal.WithLabelValues("error").Inc()
				emit(ctx, out, Failure{Message: "safety check failed", Cause: err})
				return
			}
			if !v.Allowed {
				safetyBlocksTotal.WithLabelValues("partial").Inc()
				generationsTotal.WithLabelValues("safety").Inc()
				log.Info().Str("reason", v.Reason).Int("tokens", count).Msg("partial output blocked by safety filter")
				emit(ctx, out, SafetyViolation{Reason: v.Reason})
				return
			}
		}

		if hit, trimmed := stopHit(text.String(), p.Stop); hit {
			text.Reset()
			text.WriteString(trimmed)
			reason = FinishStopSequence
			break loop
		}
		if count >= p.MaxTokens {
			reason = FinishMaxTokens
			break loop
		}
	}

	full := text.String()

	// Final pass over the complete text.
	v, err := m.cfg.Safety.CheckOutput(ctx, full)
	if err != nil {
		generationsTotal.WithLabelValues("error").Inc()
		emit(ctx, out, Failure{Message: "safety check failed", Cause: err})
		return
	}
	if !v.Allowed {
		safetyBlocksTotal.WithLabelValues("final").Inc()
		generationsTotal.WithLabelValues("safety").Inc()
		log.Info().Str("reason", v.Reason).Msg("completed output blocked by safety filter")
		emit(ctx, out, SafetyViolation{Reason: v.Reason})
		return
	}

	elapsed := time.Since(start)
	tps := tokensPerSecond(count, elapsed)

	exchange := Exchange{
		UserMessage:       prompt,
		AssistantResponse: full,
		Timestamp:         time.Now(),
		TokenCount:        model.CountTokens(prompt) + count,
	}
	m.mu.Lock()
	evicted := sess.append(exchange, m.cfg.WindowTokens)
	m.mu.Unlock()
	if evicted > 0 {
		windowEvictionsTotal.Add(float64(evicted))
		m.evictions.Add(uint64(evicted))
		log.Debug().Int("evicted", evicted).Msg("sliding window evicted oldest exchanges")
	}

	m.generations.Add(1)
	generationsTotal.WithLabelValues("ok").Inc()
	m.cfg.Publisher.Publish(Event{Name: "generation_complete", ModelID: sess.modelID, ConversationID: sess.conversationID, Fields: map[string]any{
		"tokens": count, "reason": string(reason), "thermal": state.String(),
	}})
	log.Info().
		Int("tokens", count).
		Dur("elapsed", elapsed).
		Float64("tokens_per_second", tps).
		Str("reason", string(reason)).
		Msg("generation completed")

	emit(ctx, out, Completed{
		Text:            full,
		Tokens:          count,
		Elapsed:         elapsed,
		TokensPerSecond: tps,
		Reason:          reason,
	})
}

// tokensPerSecond is tokens*1000/elapsedMs.
func tokensPerSecond(tokens int, elapsed time.Duration) float64 {
	ms := elapsed.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	return float64(tokens) * 1000.0 / float64(ms)
}

// stopHit reports whether accumulated text contains any stop sequence and
// returns the text truncated at the first match.
func stopHit(text string, stops []string) (bool, string) {
	for _, s := range stops {
		if s == "" {
			continue
		}
		if idx := strings.Index(text, s); idx >= 0 {
			return true, text[:idx]
		}
	}
	return false, text
}
