package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jdros15/Talking-LLM/internal/conversation"
	"github.com/jdros15/Talking-LLM/internal/fsm"
	"github.com/jdros15/Talking-LLM/internal/services"
	"github.com/jdros15/Talking-LLM/internal/transcript"
)

const (
	stageTranscribe = "transcribe"
	stageReply      = "reply"
	stageSynthesize = "synthesize"
	stageSpeak      = "speak"
)

// process runs transcription, reply, synthesis and playback in order. The
// controller is in Transcribing when it is called.
func (c *Controller) process(ctx context.Context, rec Recording, result Result) Result {
	result.RunID = uuid.NewString()
	logger := c.logger.With("run_id", result.RunID)
	logger.Info("recording captured",
		"audio_device", rec.AudioDevice,
		"bytes_captured", rec.BytesCaptured,
		"duration_ms", rec.Duration.Milliseconds(),
	)

	text, err := c.transcribe(ctx, logger, rec, &result)
	if err != nil {
		result.Err = err
		return c.finish(result, "transcribe_failed")
	}
	result.Transcript = text

	reply := c.generateReply(ctx, logger, text, &result)
	result.Reply = reply.Content
	result.ReplyAt = reply.Timestamp

	payload, err := c.synthesize(ctx, logger, reply, &result)
	if err != nil {
		result.Err = err
		return c.finish(result, "synthesize_failed")
	}

	if err := c.speak(ctx, logger, payload, &result); err != nil {
		result.Err = err
		return c.finish(result, "playback_failed")
	}

	if result.Fallback {
		return c.finish(result, "fallback")
	}
	return c.finish(result, "ok")
}

// transcribe inserts the placeholder user message and replaces it with the
// transcription. Failure leaves the placeholder and returns to idle.
func (c *Controller) transcribe(ctx context.Context, logger *slog.Logger, rec Recording, result *Result) (string, error) {
	c.log.Append(conversation.RoleUser, conversation.VoicePlaceholder, nil)
	c.showStatus(ctx, StatusTranscribing)

	started := c.now()
	raw, err := c.transcriber.Transcribe(ctx, rec.Payload, c.settings.GeminiKey())
	text := transcript.Clean(raw, transcript.Options{})
	if err == nil && text == "" {
		err = ErrEmptyTranscript
	}
	elapsed := c.stageDone(result, stageTranscribe, started, err)
	if err != nil {
		logger.Error("transcription failed", "error", err.Error(), "duration_ms", elapsed.Milliseconds())
		c.showError(ctx, "Error: "+services.UserMessage(err))
		c.toErrorAndReset()
		return "", fmt.Errorf("transcribe: %w", err)
	}

	c.log.UpdateLastUserMessage(text)
	logger.Info("transcription complete", "chars", len(text), "duration_ms", elapsed.Milliseconds())
	if err := c.transition(fsm.EventTranscribed); err != nil {
		c.toErrorAndReset()
		return "", err
	}
	return text, nil
}

// generateReply asks for a reply to text given the prior history. A failed
// or empty reply is replaced by FallbackReply; the run always advances.
func (c *Controller) generateReply(ctx context.Context, logger *slog.Logger, text string, result *Result) conversation.Message {
	c.showStatus(ctx, StatusGenerating)

	history := toTurns(c.log.History(0))

	started := c.now()
	reply, err := c.replier.Reply(ctx, text, history, c.settings.GeminiKey())
	reply = strings.TrimSpace(reply)
	if err == nil && reply == "" {
		err = services.ErrEmptyResponse
	}
	elapsed := c.stageDone(result, stageReply, started, err)
	if err != nil {
		logger.Warn("reply failed, using fallback", "error", err.Error(), "duration_ms", elapsed.Milliseconds())
		reply = FallbackReply
		result.Fallback = true
	} else {
		logger.Info("reply complete", "chars", len(reply), "history", len(history), "duration_ms", elapsed.Milliseconds())
	}

	msg := c.log.Append(conversation.RoleAssistant, reply, nil)
	_ = c.transition(fsm.EventReplied)
	return msg
}

// synthesize turns the reply into audio and caches it under the reply's
// timestamp so it can be replayed.
func (c *Controller) synthesize(ctx context.Context, logger *slog.Logger, reply conversation.Message, result *Result) (string, error) {
	c.showStatus(ctx, StatusSynthesizing)

	started := c.now()
	payload, err := c.synthesizer.Synthesize(ctx, transcript.Speakable(reply.Content), c.settings.VoiceID(), c.settings.ElevenLabsKey())
	elapsed := c.stageDone(result, stageSynthesize, started, err)
	if err != nil {
		logger.Error("speech synthesis failed", "error", err.Error(), "duration_ms", elapsed.Milliseconds())
		c.showError(ctx, "Error: "+services.UserMessage(err))
		c.toErrorAndReset()
		return "", fmt.Errorf("synthesize: %w", err)
	}

	c.cache.Store(reply.Timestamp, payload)
	logger.Info("speech synthesized", "bytes", len(payload), "duration_ms", elapsed.Milliseconds())
	if err := c.transition(fsm.EventSynthesized); err != nil {
		c.toErrorAndReset()
		return "", err
	}
	return payload, nil
}

// speak plays the payload and waits for completion, an explicit stop or a
// playback error. Every outcome returns to idle.
func (c *Controller) speak(ctx context.Context, logger *slog.Logger, payload string, result *Result) error {
	c.showStatus(ctx, StatusSpeaking)

	started := c.now()
	done, err := c.speaker.Play(ctx, payload, c.settings.Volume())
	if err == nil {
		select {
		case err = <-done:
		case <-ctx.Done():
			c.speaker.Stop()
			err = ctx.Err()
		}
	}
	elapsed := c.stageDone(result, stageSpeak, started, err)
	if err != nil {
		logger.Error("playback failed", "error", err.Error(), "duration_ms", elapsed.Milliseconds())
		c.showError(ctx, "Error playing audio")
		c.toErrorAndReset()
		return fmt.Errorf("play: %w", err)
	}

	logger.Info("playback complete", "duration_ms", elapsed.Milliseconds())
	if err := c.transition(fsm.EventPlayed); err != nil {
		c.toErrorAndReset()
	}
	c.indicator.CueComplete(ctx)
	c.showReady(ctx)
	return nil
}

func (c *Controller) stageDone(result *Result, stage string, started time.Time, err error) time.Duration {
	elapsed := c.now().Sub(started)
	result.Timings[stage] = elapsed
	c.observer.ObserveStage(stage, elapsed, err)
	return elapsed
}

// toTurns converts logged messages into reply history, skipping the welcome
// and placeholders left by failed transcriptions.
func toTurns(messages []conversation.Message) []services.Turn {
	turns := make([]services.Turn, 0, len(messages))
	for _, m := range messages {
		if !m.Exchanged() {
			continue
		}
		turns = append(turns, services.Turn{Role: string(m.Role), Content: m.Content})
	}
	return turns
}
