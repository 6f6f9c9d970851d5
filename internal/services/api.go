package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Turn is one prior exchange sent as reply context.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Voice is one catalog entry.
type Voice struct {
	ID   string `json:"voice_id"`
	Name string `json:"name"`
}

// DefaultVoiceID is used until a voice is chosen.
const DefaultVoiceID = "pNInz6obpgDQGcFmaJgB"

// FallbackVoices is offered when the catalog is unreachable or empty.
var FallbackVoices = []Voice{
	{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam"},
	{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Bella"},
	{ID: "yoZ06aMxZJJ28mfd3POQ", Name: "Sam"},
}

type transcribeRequest struct {
	Audio        string `json:"audio"`
	GeminiAPIKey string `json:"gemini_api_key"`
}

type transcribeResponse struct {
	Transcription string `json:"transcription"`
}

// Transcribe sends a data URI of recorded audio and returns the transcription.
func (c *Client) Transcribe(ctx context.Context, audio, apiKey string) (string, error) {
	var out transcribeResponse
	err := c.do(ctx, EndpointTranscribe, http.MethodPost, c.cfg.TranscribePath, nil,
		transcribeRequest{Audio: audio, GeminiAPIKey: apiKey}, &out, c.cfg.Timeout)
	if err != nil {
		return "", err
	}
	return out.Transcription, nil
}

type replyRequest struct {
	Message      string `json:"message"`
	History      []Turn `json:"history"`
	GeminiAPIKey string `json:"gemini_api_key"`
}

type replyResponse struct {
	Response string `json:"response"`
}

// Reply asks the gateway model for a response to message given prior history.
func (c *Client) Reply(ctx context.Context, message string, history []Turn, apiKey string) (string, error) {
	if history == nil {
		history = []Turn{}
	}
	var out replyResponse
	err := c.do(ctx, EndpointReply, http.MethodPost, c.cfg.ReplyPath, nil,
		replyRequest{Message: message, History: history, GeminiAPIKey: apiKey}, &out, c.cfg.Timeout)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", &ServiceError{Endpoint: EndpointReply, Err: ErrEmptyResponse}
	}
	return out.Response, nil
}

type speechRequest struct {
	Text             string `json:"text"`
	ElevenLabsAPIKey string `json:"elevenlabs_api_key"`
	VoiceID          string `json:"voice_id"`
}

type speechResponse struct {
	Audio string `json:"audio"`
}

// Synthesize converts text to speech and returns the audio as a data URI.
func (c *Client) Synthesize(ctx context.Context, text, voiceID, apiKey string) (string, error) {
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	var out speechResponse
	err := c.do(ctx, EndpointSpeech, http.MethodPost, c.cfg.SpeechPath, nil,
		speechRequest{Text: text, ElevenLabsAPIKey: apiKey, VoiceID: voiceID}, &out, c.cfg.SpeechTimeout)
	if err != nil {
		return "", err
	}
	if out.Audio == "" {
		return "", &ServiceError{Endpoint: EndpointSpeech, Err: ErrEmptyResponse}
	}
	return out.Audio, nil
}

type voicesResponse struct {
	Voices []Voice `json:"voices"`
}

// Voices lists the catalog available to apiKey.
func (c *Client) Voices(ctx context.Context, apiKey string) ([]Voice, error) {
	var out voicesResponse
	err := c.do(ctx, EndpointVoices, http.MethodGet, c.cfg.VoicesPath, url.Values{"api_key": {apiKey}},
		nil, &out, c.cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return out.Voices, nil
}

// VoiceCatalog returns the live catalog, or FallbackVoices with the reason
// when the catalog is unreachable or empty.
func (c *Client) VoiceCatalog(ctx context.Context, apiKey string) ([]Voice, string) {
	voices, err := c.Voices(ctx, apiKey)
	switch {
	case err != nil:
		c.logger.Warn("voice catalog unavailable", "error", err.Error())
		return FallbackVoices, "Error loading voices"
	case len(voices) == 0:
		return FallbackVoices, "Using fallback voices"
	default:
		return voices, "Voices loaded"
	}
}
