package callsession

import (
	"context"
	"fmt"
	"time"

	"voice-gateway/internal/observability"
)

const (
	sessionReadyAttempts = 5
	sessionReadyInterval = time.Second
)

const apologyReply = "I'm sorry, I'm having trouble answering right now. Please try again."

// fallbackReply echoes the caller so the line is never silent when the
// backend is unreachable.
func fallbackReply(utterance string) string {
	return fmt.Sprintf("I heard you say: %s. Our assistant is unavailable at the moment, please try again later.", utterance)
}

// TurnManager sends finalized utterances to the conversational backend. It
// always produces a spoken reply, never an error.
type TurnManager struct {
	agent         Agent // nil when the backend integration is unconfigured
	logger        *observability.Logger
	readyAttempts int
	readyInterval time.Duration
}

func NewTurnManager(agentBackend Agent, logger *observability.Logger) *TurnManager {
	return &TurnManager{
		agent:         agentBackend,
		logger:        logger,
		readyAttempts: sessionReadyAttempts,
		readyInterval: sessionReadyInterval,
	}
}

// ProcessUtterance sends one utterance, tagged with the session's next
// sequence number, and returns the reply to speak. The utterance must be
// non-empty after trimming.
func (m *TurnManager) ProcessUtterance(ctx context.Context, utterance string, sess *Session) string {
	if m.agent == nil {
		m.logger.Warn(ctx, "agent backend not configured, using fallback reply")
		return fallbackReply(utterance)
	}

	sessionID, ok := m.awaitSession(ctx, sess)
	if !ok {
		m.logger.Warn(ctx, "agent session not ready after retries, using fallback reply")
		return fallbackReply(utterance)
	}

	// One sequence number per attempt, consumed even when the send fails, so
	// the receiver never sees a reused number.
	seq := sess.NextSequence()
	reply, err := m.agent.SendMessage(ctx, sessionID, seq, utterance)
	if err != nil {
		m.logger.Error(ctx, "failed to send utterance to agent backend", err)
		return apologyReply
	}
	return reply.Spoken()
}

// awaitSession waits for the asynchronously created agent session handle,
// polling a bounded number of times. Only the current turn's pipeline is
// suspended while it waits.
func (m *TurnManager) awaitSession(ctx context.Context, sess *Session) (string, bool) {
	if id, ok := sess.AgentSession().TryGet(); ok {
		return id, true
	}
	for attempt := 0; attempt < m.readyAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(m.readyInterval):
		}
		if id, ok := sess.AgentSession().TryGet(); ok {
			return id, true
		}
	}
	return "", false
}
