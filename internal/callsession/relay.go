package callsession

import (
	"context"
	"time"

	"voice-gateway/internal/observability"
)

// mu-law at 8kHz is 8000 bytes per second on the wire.
const muLawBytesPerSecond = 8000

// AudioRelay converts reply text into outbound media frames and paces their
// delivery to the telephony channel.
type AudioRelay struct {
	synth  Synthesizer
	logger *observability.Logger
}

func NewAudioRelay(synth Synthesizer, logger *observability.Logger) *AudioRelay {
	return &AudioRelay{synth: synth, logger: logger}
}

// Speak synthesizes replyText and writes it to dest in production order. It
// is a no-op when the reply is empty or dest has no stream identifier yet.
// A failure mid-stream stops the remainder of this reply only; it never
// terminates the session and the reply is not retried.
func (r *AudioRelay) Speak(ctx context.Context, replyText string, dest MediaWriter) {
	if replyText == "" {
		r.logger.Warn(ctx, "empty reply text, nothing to speak")
		return
	}
	if dest.StreamSID() == "" {
		r.logger.Warn(ctx, "no stream identifier assigned, discarding reply")
		return
	}

	// The child context releases the synthesis stream when delivery stops
	// early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, err := r.synth.Synthesize(ctx, replyText)
	if err != nil {
		r.logger.Error(ctx, "failed to start speech synthesis", err)
		return
	}

	for chunk := range chunks {
		if chunk.Err != nil {
			r.logger.Error(ctx, "speech synthesis failed mid-stream", chunk.Err)
			return
		}
		if err := dest.WriteMedia(chunk.Data); err != nil {
			r.logger.Error(ctx, "failed to deliver audio chunk", err)
			return
		}
		// Pace delivery to the channel's real-time byte rate.
		time.Sleep(time.Duration(len(chunk.Data)) * time.Second / muLawBytesPerSecond)
	}
}
