package handler

import (
	"net/http"

	"voice-gateway/internal/apierrors"

	"github.com/gin-gonic/gin"
)

type startCallRequest struct {
	To string `json:"to"`
}

// HandleStartCall places an outbound call to the requested number.
func (h *Handler) HandleStartCall(c *gin.Context) {
	ctx := c.Request.Context()

	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.To == "" {
		apierrors.BadRequest(c, "INVALID_REQUEST", "a destination number is required")
		return
	}

	callSID, err := h.voiceProcessor.PlaceCall(ctx, req.To)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"callSid": callSID})
}
