package callsession

//go:generate go run go.uber.org/mock/mockgen@latest -source=interfaces.go -destination=mocks_test.go -package=callsession

import (
	"context"

	"voice-gateway/internal/clients/agent"
)

// TranscriptFragment is one recognized span of speech.
type TranscriptFragment struct {
	Text    string
	IsFinal bool
}

// Recognizer streams caller audio to a speech-recognition engine and yields
// transcript fragments. The caller writes raw mu-law audio to the returned
// channel and closes it to flush and end the stream; the fragment channel is
// closed when the stream ends.
type Recognizer interface {
	Start(ctx context.Context) (chan<- []byte, <-chan TranscriptFragment, error)
}

// Agent is the conversational backend. CreateSession may complete well after
// the call's audio has started flowing.
type Agent interface {
	CreateSession(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, sessionID string, sequence int64, text string) (agent.Reply, error)
	EndSession(ctx context.Context, sessionID string) error
}

// AudioChunk is one bounded block of synthesized audio, or a mid-stream
// synthesis failure. The chunk channel is closed after an Err chunk.
type AudioChunk struct {
	Data []byte
	Err  error
}

// Synthesizer converts reply text into a stream of raw 8kHz mu-law chunks.
// Implementations must stop producing when ctx is cancelled.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (<-chan AudioChunk, error)
}

// MediaWriter is the outbound half of the telephony connection. WriteMedia
// preserves the order of writes.
type MediaWriter interface {
	StreamSID() string
	SetStreamSID(sid string)
	WriteMedia(audio []byte) error
}
