// Package conversation owns the ordered, persisted chat log.
package conversation

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	// VoicePlaceholder stands in for the user's utterance until transcription returns.
	VoicePlaceholder = "🎤 [Voice message]"

	WelcomeReady   = "Hello! I'm your voice assistant. Press Enter to start speaking, and press it again when you're done."
	WelcomeNoKeys  = "Hello! I'm your voice assistant. Please set your Gemini and ElevenLabs API keys with `talkie keys set` first. Then press Enter to start speaking."
	defaultMaxSize = 100
)

// Message is one chat entry. Timestamp doubles as the audio cache key.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Key formats the timestamp the way it is persisted and looked up.
func (m Message) Key() string {
	return FormatTimestamp(m.Timestamp)
}

// FormatTimestamp renders t as RFC 3339 with nanoseconds, in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses a persisted or user-supplied timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
}

// Exchanged reports whether m is a real conversational turn. The seeded
// welcome and an untranscribed voice placeholder are not.
func (m Message) Exchanged() bool {
	switch {
	case m.Role == RoleUser:
		return m.Content != VoicePlaceholder
	default:
		return m.Content != WelcomeReady && m.Content != WelcomeNoKeys
	}
}

type identity struct {
	role    Role
	content string
	unix    int64
}

func (m Message) identity() identity {
	return identity{role: m.Role, content: m.Content, unix: m.Timestamp.UnixNano()}
}

func validRole(r Role) bool {
	return r == RoleUser || r == RoleAssistant
}
