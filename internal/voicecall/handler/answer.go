package handler

import (
	"fmt"
	"net/http"

	"voice-gateway/internal/apierrors"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/twiml"
)

// HandleAnswerCall returns the TwiML that connects an answered call's media
// stream to this service's websocket endpoint.
func (h *Handler) HandleAnswerCall(c *gin.Context) {
	ctx := c.Request.Context()

	say := &twiml.VoiceSay{
		Message: "Hello! Connecting you to our assistant. One moment please.",
	}
	stream := twiml.VoiceStream{
		Name: "voice-gateway-stream",
		Url:  h.twilioCfg.MediaStreamURL,
	}
	connect := twiml.VoiceConnect{
		InnerElements: []twiml.Element{stream},
	}

	twimlResult, err := twiml.Voice([]twiml.Element{say, connect})
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}

	h.logger.Info(ctx, fmt.Sprintf("TwiML answer with media stream %s", h.twilioCfg.MediaStreamURL))
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, twimlResult)
}
