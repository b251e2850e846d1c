package bootstrap

import (
	"context"
	"fmt"

	"voice-gateway/internal/callsession"
	"voice-gateway/internal/clients/agent"
	openaiclients "voice-gateway/internal/clients/openai"
	"voice-gateway/internal/config"
	"voice-gateway/internal/observability"
	"voice-gateway/internal/store"
	voiceCallHandler "voice-gateway/internal/voicecall/handler"
	voiceCallProcessor "voice-gateway/internal/voicecall/processor"

	twilioapi "github.com/twilio/twilio-go"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Store  store.Store
	Logger *observability.Logger

	// Live call sessions
	Sessions *callsession.Registry

	// Handlers
	VoiceCallHandler voiceCallHandler.Handler
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}

	// Initialize database store
	connectionString := cfg.Database.ConnectionString()
	var err error
	deps.Store, err = store.New(connectionString, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize speech clients
	recognizer, err := openaiclients.NewRealtimeTranscriber(cfg.OpenAI.APIKey, cfg.OpenAI.TranscriptionModel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcriber: %w", err)
	}

	synthesizer, err := openaiclients.NewSpeechSynthesizer(cfg.OpenAI.APIKey, cfg.OpenAI.Voice, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	// Initialize the conversational backend. A missing configuration is not
	// fatal: calls fall back to deterministic echo replies.
	var agentBackend callsession.Agent
	if cfg.Agent.Configured() {
		var tokens *agent.TokenSource
		if cfg.Agent.TokenURL != "" {
			tokens, err = agent.NewTokenSource(cfg.Agent.TokenURL, cfg.Agent.ClientID, cfg.Agent.Audience, []byte(cfg.Agent.PrivateKey))
			if err != nil {
				return nil, fmt.Errorf("failed to create agent token source: %w", err)
			}
		}
		agentBackend = agent.NewClient(cfg.Agent.BaseURL, tokens, logger)
	} else {
		logger.Warn(ctx, "agent backend not configured, calls will echo the caller")
	}

	// Initialize Twilio REST client for outbound calls
	twilioClient := twilioapi.NewRestClientWithParams(twilioapi.ClientParams{
		Username: cfg.Twilio.AccountSID,
		Password: cfg.Twilio.AuthToken,
	})

	// Initialize voice call processor and handler
	deps.Sessions = callsession.NewRegistry()
	voiceCallProc := voiceCallProcessor.NewVoiceCallProcessor(
		recognizer,
		agentBackend,
		synthesizer,
		deps.Sessions,
		deps.Store,
		twilioClient,
		cfg.Twilio,
		logger,
	)
	deps.VoiceCallHandler = voiceCallHandler.New(voiceCallProc, cfg.Twilio, logger)

	return deps, nil
}

// Cleanup closes all resources that need cleanup
func (d *Dependencies) Cleanup() {
	if db := d.Store.DB(); db != nil {
		_ = db.Close()
	}
}
