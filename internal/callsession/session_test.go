package callsession

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"voice-gateway/internal/clients/agent"
	"voice-gateway/internal/observability"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// recognitionHarness stands in for the speech-recognition stream: it drains
// the audio channel like a real recognizer and closes the fragment channel
// when the audio side is closed.
type recognitionHarness struct {
	audioIn   chan []byte
	fragments chan TranscriptFragment

	mu       sync.Mutex
	received [][]byte
}

func newRecognitionHarness() *recognitionHarness {
	h := &recognitionHarness{
		audioIn:   make(chan []byte, 64),
		fragments: make(chan TranscriptFragment, 16),
	}
	go func() {
		for chunk := range h.audioIn {
			h.mu.Lock()
			h.received = append(h.received, chunk)
			h.mu.Unlock()
		}
		close(h.fragments)
	}()
	return h
}

func (h *recognitionHarness) receivedAudio() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][]byte, len(h.received))
	copy(out, h.received)
	return out
}

func startEvent(streamSid string) []byte {
	return []byte(fmt.Sprintf(`{"event":"start","start":{"streamSid":%q}}`, streamSid))
}

func mediaEvent(audio []byte) []byte {
	return []byte(fmt.Sprintf(`{"event":"media","media":{"payload":%q}}`, base64.StdEncoding.EncodeToString(audio)))
}

var stopEvent = []byte(`{"event":"stop","stop":{"streamSid":"MZ1234"}}`)

func TestSession_Lifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	logger := observability.NewLogger()
	harness := newRecognitionHarness()

	mockRecognizer := NewMockRecognizer(ctrl)
	mockRecognizer.EXPECT().
		Start(gomock.Any()).
		Return((chan<- []byte)(harness.audioIn), (<-chan TranscriptFragment)(harness.fragments), nil)

	mockAgent := NewMockAgent(ctrl)
	mockAgent.EXPECT().CreateSession(gomock.Any()).Return("agent-session-1", nil)
	mockAgent.EXPECT().
		SendMessage(gomock.Any(), "agent-session-1", int64(1), "book me a table").
		Return(agent.NewReply("Sure, for how many?"), nil)
	mockAgent.EXPECT().EndSession(gomock.Any(), "agent-session-1").Return(nil)

	mockSynth := NewMockSynthesizer(ctrl)
	mockSynth.EXPECT().
		Synthesize(gomock.Any(), "Sure, for how many?").
		Return(synthesisStream(AudioChunk{Data: []byte{0x7f, 0x7f}}), nil)

	dest := &fakeMediaWriter{}
	sess := New(mockRecognizer, NewTurnManager(mockAgent, logger), NewAudioRelay(mockSynth, logger), mockAgent, dest, logger)

	require.NoError(t, sess.Start(context.Background()))
	require.Equal(t, StateConnecting, sess.State())

	require.False(t, sess.HandleEvent(startEvent("MZ1234")))
	require.Equal(t, StateStreaming, sess.State())
	require.Equal(t, "MZ1234", sess.StreamSID())

	// Caller audio flows to the recognition stream.
	callerAudio := []byte{0xff, 0x7f, 0x00}
	require.False(t, sess.HandleEvent(mediaEvent(callerAudio)))
	require.Eventually(t, func() bool {
		return len(harness.receivedAudio()) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, callerAudio, harness.receivedAudio()[0])

	// Wait for the asynchronous backend session before finalizing a turn, so
	// the turn does not sit in the readiness poll.
	require.Eventually(t, func() bool {
		_, ok := sess.AgentSession().TryGet()
		return ok
	}, time.Second, 5*time.Millisecond)

	harness.fragments <- TranscriptFragment{Text: "book me a", IsFinal: false}
	harness.fragments <- TranscriptFragment{Text: "book me a table", IsFinal: true}

	require.Eventually(t, func() bool {
		return sess.Turns() == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Len(t, dest.written(), 1)

	// The stop event tears everything down.
	require.True(t, sess.HandleEvent(stopEvent))
	require.Equal(t, StateTerminated, sess.State())
}

func TestSession_StartFailsWhenRecognitionFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	logger := observability.NewLogger()

	mockRecognizer := NewMockRecognizer(ctrl)
	mockRecognizer.EXPECT().
		Start(gomock.Any()).
		Return(nil, nil, errors.New("dial failed"))

	dest := &fakeMediaWriter{}
	sess := New(mockRecognizer, NewTurnManager(nil, logger), NewAudioRelay(nil, logger), nil, dest, logger)

	err := sess.Start(context.Background())
	require.Error(t, err)
}

func TestSession_MalformedEventIgnored(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	logger := observability.NewLogger()
	harness := newRecognitionHarness()

	mockRecognizer := NewMockRecognizer(ctrl)
	mockRecognizer.EXPECT().
		Start(gomock.Any()).
		Return((chan<- []byte)(harness.audioIn), (<-chan TranscriptFragment)(harness.fragments), nil)

	dest := &fakeMediaWriter{}
	sess := New(mockRecognizer, NewTurnManager(nil, logger), NewAudioRelay(nil, logger), nil, dest, logger)
	require.NoError(t, sess.Start(context.Background()))
	defer sess.Close()

	require.False(t, sess.HandleEvent([]byte("not json")))
	require.False(t, sess.HandleEvent([]byte(`{"event":"unheard-of"}`)))
	require.Equal(t, StateConnecting, sess.State())
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	logger := observability.NewLogger()
	harness := newRecognitionHarness()

	mockRecognizer := NewMockRecognizer(ctrl)
	mockRecognizer.EXPECT().
		Start(gomock.Any()).
		Return((chan<- []byte)(harness.audioIn), (<-chan TranscriptFragment)(harness.fragments), nil)

	mockAgent := NewMockAgent(ctrl)
	mockAgent.EXPECT().CreateSession(gomock.Any()).Return("agent-session-1", nil)
	mockAgent.EXPECT().EndSession(gomock.Any(), "agent-session-1").Return(nil).Times(1)

	dest := &fakeMediaWriter{}
	sess := New(mockRecognizer, NewTurnManager(mockAgent, logger), NewAudioRelay(nil, logger), mockAgent, dest, logger)
	require.NoError(t, sess.Start(context.Background()))

	require.Eventually(t, func() bool {
		_, ok := sess.AgentSession().TryGet()
		return ok
	}, time.Second, 5*time.Millisecond)

	sess.Close()
	sess.Close()
	require.Equal(t, StateTerminated, sess.State())
}

func TestSession_EmptyFinalTranscriptProducesNoTurn(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	logger := observability.NewLogger()
	harness := newRecognitionHarness()

	mockRecognizer := NewMockRecognizer(ctrl)
	mockRecognizer.EXPECT().
		Start(gomock.Any()).
		Return((chan<- []byte)(harness.audioIn), (<-chan TranscriptFragment)(harness.fragments), nil)

	// No SendMessage expected: silence never reaches the backend.
	mockAgent := NewMockAgent(ctrl)
	mockAgent.EXPECT().CreateSession(gomock.Any()).Return("agent-session-1", nil)
	mockAgent.EXPECT().EndSession(gomock.Any(), "agent-session-1").Return(nil)

	dest := &fakeMediaWriter{}
	sess := New(mockRecognizer, NewTurnManager(mockAgent, logger), NewAudioRelay(nil, logger), mockAgent, dest, logger)
	require.NoError(t, sess.Start(context.Background()))

	require.False(t, sess.HandleEvent(startEvent("MZ1234")))
	harness.fragments <- TranscriptFragment{Text: "   ", IsFinal: true}

	require.Eventually(t, func() bool {
		_, ok := sess.AgentSession().TryGet()
		return ok
	}, time.Second, 5*time.Millisecond)

	require.True(t, sess.HandleEvent(stopEvent))
	require.Equal(t, int64(0), sess.Turns())
}

func TestSession_AudioDroppedWhileClosing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	logger := observability.NewLogger()
	harness := newRecognitionHarness()

	mockRecognizer := NewMockRecognizer(ctrl)
	mockRecognizer.EXPECT().
		Start(gomock.Any()).
		Return((chan<- []byte)(harness.audioIn), (<-chan TranscriptFragment)(harness.fragments), nil)

	dest := &fakeMediaWriter{}
	sess := New(mockRecognizer, NewTurnManager(nil, logger), NewAudioRelay(nil, logger), nil, dest, logger)
	require.NoError(t, sess.Start(context.Background()))

	require.False(t, sess.HandleEvent(startEvent("MZ1234")))
	require.True(t, sess.HandleEvent(stopEvent))

	// Media after the stream stopped must not reach a closed channel.
	require.NotPanics(t, func() {
		sess.HandleEvent(mediaEvent([]byte{0x01}))
	})
	require.Empty(t, harness.receivedAudio())
}
