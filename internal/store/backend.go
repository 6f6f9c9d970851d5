// Package store persists keyed application state under a byte quota.
package store

import "errors"

// Durable keys shared by the conversation, cache and preference layers.
const (
	KeyChatHistory      = "chatHistory"
	KeyAudioCache       = "audioCache"
	KeyVolume           = "volume"
	KeyGeminiAPIKey     = "geminiApiKey"
	KeyElevenLabsAPIKey = "elevenlabsApiKey"
	KeyVoiceID          = "voiceId"
)

// ErrQuotaExceeded indicates a write would push stored bytes past the quota.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Backend is a raw key/value sink.
type Backend interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// usage tracks the summed value size per key against a quota. Zero quota means unlimited.
type usage struct {
	quota int64
	sizes map[string]int64
	total int64
}

func newUsage(quota int64) usage {
	return usage{quota: quota, sizes: map[string]int64{}}
}

func (u *usage) admit(key string, size int64) error {
	if u.quota <= 0 {
		return nil
	}
	if u.total-u.sizes[key]+size > u.quota {
		return ErrQuotaExceeded
	}
	return nil
}

func (u *usage) set(key string, size int64) {
	u.total += size - u.sizes[key]
	u.sizes[key] = size
}

func (u *usage) remove(key string) {
	u.total -= u.sizes[key]
	delete(u.sizes, key)
}
