package processor

import (
	"context"
	"fmt"

	"voice-gateway/internal/callsession"
	"voice-gateway/internal/store"

	"github.com/google/uuid"
	twilioopenapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// StartCallSession builds and starts the orchestrator for one telephony
// connection.
func (v *VoiceCallProcessor) StartCallSession(ctx context.Context, dest callsession.MediaWriter) (*callsession.Session, error) {
	sess := callsession.New(v.recognizer, v.turns, v.relay, v.agent, dest, v.logger)
	if err := sess.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start call session: %w", err)
	}
	return sess, nil
}

// PlaceCall triggers an outbound call through the Twilio REST API. The call
// is answered by the configured TwiML webhook, which connects its media
// stream back to this service.
func (v *VoiceCallProcessor) PlaceCall(ctx context.Context, to string) (string, error) {
	params := &twilioopenapi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(v.twilioCfg.FromNumber)
	params.SetUrl(v.twilioCfg.AnswerURL)
	params.SetMethod("POST")

	call, err := v.twilioAPI.Api.CreateCall(params)
	if err != nil {
		v.logger.Error(ctx, "failed to place outbound call", err)
		return "", fmt.Errorf("failed to place outbound call: %w", err)
	}

	sid := ""
	if call.Sid != nil {
		sid = *call.Sid
	}
	return sid, nil
}

// RecordCallStart persists a call record at connection-accept time. Failures
// degrade to an unrecorded call, never a dropped one.
func (v *VoiceCallProcessor) RecordCallStart(ctx context.Context) (store.CallRecord, error) {
	return v.store.CreateCallRecord(ctx)
}

// RecordCallEnd stamps the call record at teardown.
func (v *VoiceCallProcessor) RecordCallEnd(ctx context.Context, id uuid.UUID, streamSID string, turns int64) error {
	return v.store.FinishCallRecord(ctx, id, streamSID, turns)
}
