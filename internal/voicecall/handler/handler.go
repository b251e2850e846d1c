package handler

import (
	"net/http"

	"voice-gateway/internal/config"
	"voice-gateway/internal/observability"
	"voice-gateway/internal/voicecall/processor"

	"github.com/gorilla/websocket"
)

type Handler struct {
	voiceProcessor *processor.VoiceCallProcessor
	twilioCfg      config.TwilioConfig
	logger         *observability.Logger
}

func New(voiceProcessor *processor.VoiceCallProcessor, twilioCfg config.TwilioConfig, logger *observability.Logger) Handler {
	return Handler{
		voiceProcessor: voiceProcessor,
		twilioCfg:      twilioCfg,
		logger:         logger,
	}
}

// upgrader is a shared WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Twilio media-stream connections carry no browser origin
		return true
	},
}
