package processor

import (
	"voice-gateway/internal/callsession"
	"voice-gateway/internal/config"
	"voice-gateway/internal/observability"
	"voice-gateway/internal/store"

	twilioapi "github.com/twilio/twilio-go"
)

// VoiceCallProcessor wires the per-call collaborators and owns the shared
// pieces: the session registry, the turn manager and the audio relay.
type VoiceCallProcessor struct {
	recognizer callsession.Recognizer
	agent      callsession.Agent // nil when the backend is unconfigured
	turns      *callsession.TurnManager
	relay      *callsession.AudioRelay
	sessions   *callsession.Registry
	store      store.Store
	twilioAPI  *twilioapi.RestClient
	twilioCfg  config.TwilioConfig
	logger     *observability.Logger
}

func NewVoiceCallProcessor(
	recognizer callsession.Recognizer,
	agentBackend callsession.Agent,
	synthesizer callsession.Synthesizer,
	sessions *callsession.Registry,
	callStore store.Store,
	twilioAPI *twilioapi.RestClient,
	twilioCfg config.TwilioConfig,
	logger *observability.Logger,
) *VoiceCallProcessor {
	return &VoiceCallProcessor{
		recognizer: recognizer,
		agent:      agentBackend,
		turns:      callsession.NewTurnManager(agentBackend, logger),
		relay:      callsession.NewAudioRelay(synthesizer, logger),
		sessions:   sessions,
		store:      callStore,
		twilioAPI:  twilioAPI,
		twilioCfg:  twilioCfg,
		logger:     logger,
	}
}

// Sessions returns the live-session registry.
func (v *VoiceCallProcessor) Sessions() *callsession.Registry {
	return v.sessions
}
