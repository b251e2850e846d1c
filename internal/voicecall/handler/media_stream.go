package handler

import (
	"github.com/gin-gonic/gin"

	"voice-gateway/internal/observability"
	"voice-gateway/internal/voicecall/twilio"
)

// HandleMediaStream upgrades a Twilio media-stream connection and runs a
// call session over it until the call stops or the socket drops.
func (h *Handler) HandleMediaStream(c *gin.Context) {
	ctx := c.Request.Context()

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error(ctx, "WebSocket upgrade failed", err)
		return
	}

	conn := twilio.NewConn(wsConn, h.logger)
	defer conn.Close()

	h.logger.Info(ctx, "Twilio media-stream connection established")

	sess, err := h.voiceProcessor.StartCallSession(ctx, conn)
	if err != nil {
		h.logger.Error(ctx, "failed to start call session", err)
		return
	}
	defer sess.Close()

	sessions := h.voiceProcessor.Sessions()
	sessions.Add(sess.ID(), sess)
	defer sessions.Remove(sess.ID())

	ctx = observability.WithFields(ctx, observability.Field{Key: "call_session_id", Value: sess.ID()})

	record, recordErr := h.voiceProcessor.RecordCallStart(ctx)
	if recordErr != nil {
		h.logger.Error(ctx, "failed to record call start", recordErr)
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			h.logger.Info(ctx, "media-stream connection closed")
			break
		}
		if done := sess.HandleEvent(data); done {
			break
		}
	}

	sess.Close()

	if recordErr == nil {
		if err := h.voiceProcessor.RecordCallEnd(ctx, record.ID, sess.StreamSID(), sess.Turns()); err != nil {
			h.logger.Error(ctx, "failed to record call end", err)
		}
	}
}
