package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"voice-gateway/internal/callsession"
	"voice-gateway/internal/observability"
	"voice-gateway/internal/voice/audio"

	"github.com/gorilla/websocket"
)

const realtimeTranscriptionURL = "wss://api.openai.com/v1/realtime?intent=transcription"

// RealtimeTranscriber streams call audio to the realtime transcription
// endpoint and yields transcript fragments. It implements
// callsession.Recognizer.
type RealtimeTranscriber struct {
	apiKey string
	model  string
	logger *observability.Logger
}

func NewRealtimeTranscriber(apiKey, model string, logger *observability.Logger) (*RealtimeTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return &RealtimeTranscriber{apiKey: apiKey, model: model, logger: logger}, nil
}

// Start opens a websocket session configured for 8kHz mu-law input. The
// caller writes raw audio to the returned channel and closes it to flush and
// end the stream; the fragment channel closes when the stream ends.
func (c *RealtimeTranscriber) Start(ctx context.Context) (chan<- []byte, <-chan callsession.TranscriptFragment, error) {
	dialer := websocket.Dialer{}
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.apiKey)

	conn, _, err := dialer.DialContext(ctx, realtimeTranscriptionURL, headers)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to realtime endpoint: %w", err)
	}

	sessionReq := map[string]interface{}{
		"type": "transcription_session.update",
		"session": map[string]interface{}{
			"input_audio_format": "g711_ulaw",
			"input_audio_transcription": map[string]string{
				"model": c.model,
			},
			"turn_detection": map[string]interface{}{
				"type":                "server_vad",
				"threshold":           0.5,
				"prefix_padding_ms":   300,
				"silence_duration_ms": 500,
			},
		},
	}
	if err := conn.WriteJSON(sessionReq); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to configure transcription session: %w", err)
	}

	audioIn := make(chan []byte, 64)
	fragments := make(chan callsession.TranscriptFragment, 16)

	// Read transcript events until the connection ends.
	go func() {
		defer close(fragments)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Error(ctx, "realtime transcription stream error", err)
				}
				return
			}
			var event struct {
				Type       string `json:"type"`
				Delta      string `json:"delta"`
				Transcript string `json:"transcript"`
				Error      struct {
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.Unmarshal(msg, &event); err != nil {
				c.logger.Error(ctx, "failed to parse realtime event", err)
				continue
			}
			switch event.Type {
			case "conversation.item.input_audio_transcription.delta":
				fragments <- callsession.TranscriptFragment{Text: event.Delta, IsFinal: false}
			case "conversation.item.input_audio_transcription.completed":
				fragments <- callsession.TranscriptFragment{Text: event.Transcript, IsFinal: true}
			case "error":
				c.logger.Error(ctx, "realtime transcription error event", fmt.Errorf("%s", event.Error.Message))
			}
		}
	}()

	// Forward audio chunks. Closing the audio channel ends the stream.
	go func() {
		defer conn.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-audioIn:
				if !ok {
					return
				}
				appendEvent := map[string]interface{}{
					"type":  "input_audio_buffer.append",
					"audio": audio.BytesToBase64(chunk),
				}
				if err := conn.WriteJSON(appendEvent); err != nil {
					c.logger.Error(ctx, "failed to send audio chunk", err)
					return
				}
			}
		}
	}()

	return audioIn, fragments, nil
}
