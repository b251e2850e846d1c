package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"voice-gateway/internal/callsession"
	"voice-gateway/internal/observability"
	"voice-gateway/internal/voice/audio"

	"github.com/openai/openai-go"
	openaiOption "github.com/openai/openai-go/option"
)

// pcmReadSize is 100ms of 24kHz 16-bit PCM. Multiple of the 6 input bytes
// that produce one mu-law output byte, so chunks stay sample-aligned.
const pcmReadSize = 4800

// SpeechSynthesizer produces raw 8kHz mu-law audio from reply text via the
// OpenAI speech endpoint. It implements callsession.Synthesizer.
type SpeechSynthesizer struct {
	apiKey string
	voice  string
	logger *observability.Logger
}

func NewSpeechSynthesizer(apiKey, voice string, logger *observability.Logger) (*SpeechSynthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return &SpeechSynthesizer{apiKey: apiKey, voice: voice, logger: logger}, nil
}

// Synthesize requests 24kHz PCM speech and streams it, downconverted to the
// telephony channel's 8kHz mu-law, one bounded chunk at a time. The chunk
// channel is closed after a mid-stream error.
func (s *SpeechSynthesizer) Synthesize(ctx context.Context, text string) (<-chan callsession.AudioChunk, error) {
	client := openai.NewClient(openaiOption.WithAPIKey(s.apiKey))

	resp, err := client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelTTS1,
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start speech synthesis: %w", err)
	}

	chunks := make(chan callsession.AudioChunk)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		buf := make([]byte, pcmReadSize)
		for {
			n, err := io.ReadFull(resp.Body, buf)
			if n > 0 {
				mulaw := audio.ConvertPCM24kHzToMuLaw8kHz(buf[:n])
				select {
				case chunks <- callsession.AudioChunk{Data: mulaw}:
				case <-ctx.Done():
					return
				}
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			if err != nil {
				select {
				case chunks <- callsession.AudioChunk{Err: fmt.Errorf("speech stream read failed: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()

	return chunks, nil
}
