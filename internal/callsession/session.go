package callsession

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"voice-gateway/internal/observability"
	"voice-gateway/internal/voice/audio"
	"voice-gateway/internal/voicecall/twilio"

	"github.com/google/uuid"
)

// State is the lifecycle of one call session.
type State int32

const (
	StateConnecting State = iota // no stream identifier yet
	StateStreaming               // identifier assigned, media flowing
	StateClosing                 // stop received or connection closed
	StateTerminated              // collaborators released
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

const (
	utteranceQueueSize = 8
	agentEndTimeout    = 10 * time.Second
)

// Session owns one phone call from the moment its audio stream attaches until
// it terminates. Turns are serialized: a single worker drains the utterance
// queue, so overlapping final transcripts never produce overlapping playback.
//
// HandleEvent and Close must be called from the connection's read goroutine.
type Session struct {
	id     string
	logger *observability.Logger

	recognizer Recognizer
	turns      *TurnManager
	relay      *AudioRelay
	agent      Agent // nil when unconfigured
	dest       MediaWriter

	agentSession *SessionFuture
	agg          Aggregator
	seq          atomic.Int64
	turnCount    atomic.Int64
	state        atomic.Int32

	audioIn    chan<- []byte
	utterances chan string
	wg         sync.WaitGroup
	closeOnce  sync.Once

	ctx    context.Context
	cancel context.CancelFunc
}

func New(recognizer Recognizer, turns *TurnManager, relay *AudioRelay, agentBackend Agent, dest MediaWriter, logger *observability.Logger) *Session {
	return &Session{
		id:           uuid.New().String(),
		logger:       logger,
		recognizer:   recognizer,
		turns:        turns,
		relay:        relay,
		agent:        agentBackend,
		dest:         dest,
		agentSession: &SessionFuture{},
		utterances:   make(chan string, utteranceQueueSize),
	}
}

func (s *Session) ID() string {
	return s.id
}

// AgentSession returns the future holding the backend session handle.
func (s *Session) AgentSession() *SessionFuture {
	return s.agentSession
}

// NextSequence returns the next per-session message sequence number.
// Strictly increasing, never reused.
func (s *Session) NextSequence() int64 {
	return s.seq.Add(1)
}

// Turns returns the number of completed turns.
func (s *Session) Turns() int64 {
	return s.turnCount.Load()
}

// StreamSID returns the stream identifier, or empty before the start event.
func (s *Session) StreamSID() string {
	return s.dest.StreamSID()
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Start opens the recognition stream, kicks off asynchronous agent session
// creation, and starts the transcript consumer and turn worker.
func (s *Session) Start(ctx context.Context) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	s.ctx = observability.WithFields(sessionCtx, observability.Field{Key: "call_session_id", Value: s.id})
	s.cancel = cancel

	audioIn, fragments, err := s.recognizer.Start(s.ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to start recognition stream: %w", err)
	}
	s.audioIn = audioIn

	if s.agent != nil {
		// Session creation completes on its own time; turns poll the future.
		go func() {
			id, err := s.agent.CreateSession(s.ctx)
			if err != nil {
				s.logger.Error(s.ctx, "failed to create agent session", err)
				return
			}
			s.agentSession.Set(id)
		}()
	}

	s.wg.Add(2)
	go s.consumeTranscripts(fragments)
	go s.runTurns()

	s.logger.Info(s.ctx, "call session started")
	return nil
}

// HandleEvent processes one inbound control or media message. Malformed
// messages are logged and ignored. It reports whether the session received
// its stop signal.
func (s *Session) HandleEvent(data []byte) bool {
	event, err := twilio.ParseMediaEvent(data)
	if err != nil {
		s.logger.Error(s.ctx, "ignoring malformed telephony event", err)
		return false
	}

	switch event.Event {
	case twilio.EventConnected:
		s.logger.Info(s.ctx, "telephony connection confirmed")

	case twilio.EventStart:
		s.dest.SetStreamSID(event.Start.StreamSid)
		s.state.CompareAndSwap(int32(StateConnecting), int32(StateStreaming))
		s.logger.Info(observability.WithFields(s.ctx,
			observability.Field{Key: "stream_sid", Value: event.Start.StreamSid}),
			"media stream started")

	case twilio.EventMedia:
		s.forwardAudio(event.Media.Payload)

	case twilio.EventStop:
		s.logger.Info(s.ctx, "media stream stopped")
		s.Close()
		return true

	default:
		s.logger.Debug(s.ctx, fmt.Sprintf("unknown telephony event: %s", event.Event))
	}
	return false
}

// forwardAudio pushes caller audio to the recognition stream. It never blocks
// on an in-flight turn: when the recognition buffer is full the chunk is
// dropped.
func (s *Session) forwardAudio(payload string) {
	if s.State() >= StateClosing {
		return
	}
	audioBytes, err := audio.Base64ToBytes(payload)
	if err != nil {
		s.logger.Error(s.ctx, "failed to decode media payload", err)
		return
	}
	select {
	case s.audioIn <- audioBytes:
	default:
		s.logger.Warn(s.ctx, "recognition buffer full, dropping audio chunk")
	}
}

func (s *Session) consumeTranscripts(fragments <-chan TranscriptFragment) {
	defer s.wg.Done()
	defer close(s.utterances)
	for frag := range fragments {
		utterance, ok := s.agg.Consume(frag)
		if !ok {
			if frag.IsFinal {
				s.logger.Debug(s.ctx, "discarding empty final transcript")
			}
			continue
		}
		select {
		case s.utterances <- utterance:
		default:
			s.logger.Warn(s.ctx, "utterance queue full, dropping utterance")
		}
	}
}

// runTurns serializes agent turns: one utterance-in, reply-out cycle at a
// time per session.
func (s *Session) runTurns() {
	defer s.wg.Done()
	for utterance := range s.utterances {
		reply := s.turns.ProcessUtterance(s.ctx, utterance, s)
		if s.State() >= StateClosing {
			s.logger.Warn(s.ctx, "session closing, discarding pending reply")
			continue
		}
		s.relay.Speak(s.ctx, reply, s.dest)
		s.turnCount.Add(1)
	}
}

// Close tears the session down: the recognition stream is flushed and closed,
// and the agent session, if one was created, is asked to end. The two actions
// do not block each other and their failures are logged, not surfaced. Close
// is idempotent and returns once the session is terminated.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		s.logger.Info(s.ctx, "closing call session")

		if s.audioIn != nil {
			close(s.audioIn)
		}

		var endWg sync.WaitGroup
		if s.agent != nil {
			if id, ok := s.agentSession.TryGet(); ok {
				endWg.Add(1)
				go func() {
					defer endWg.Done()
					ctx, cancel := context.WithTimeout(context.Background(), agentEndTimeout)
					defer cancel()
					if err := s.agent.EndSession(ctx, id); err != nil {
						s.logger.Error(s.ctx, "failed to end agent session", err)
					}
				}()
			}
		}

		// In-flight turns run to completion; their replies are discarded by
		// the worker once the state is past streaming.
		s.wg.Wait()
		endWg.Wait()
		if s.cancel != nil {
			s.cancel()
		}
		s.state.Store(int32(StateTerminated))
		s.logger.Info(s.ctx, "call session terminated")
	})
}
