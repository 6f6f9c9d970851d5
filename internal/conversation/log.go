package conversation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jdros15/Talking-LLM/internal/store"
)

// Store is the persistence subset the log needs.
type Store interface {
	Save(key string, value any) bool
	Load(key string, dst any) (bool, error)
	Remove(key string)
}

// Cache is the audio cache subset the log drives.
type Cache interface {
	Trim()
	Clear()
}

// View renders the log. Implementations must not call back into the Log.
type View interface {
	Render(Message)
	ReplaceLastUser(content string)
	Reset()
}

// Config tunes a Log. Zero values select defaults.
type Config struct {
	MaxMessages    int
	HasCredentials func() bool
	Now            func() time.Time
	Logger         *slog.Logger
}

// Log is the ordered conversation. Append order, rendered order and
// persisted order are always the same.
type Log struct {
	store Store
	cache Cache
	view  View

	maxMessages    int
	hasCredentials func() bool
	now            func() time.Time
	logger         *slog.Logger

	mu          sync.Mutex
	messages    []Message
	initialized bool
}

// New builds a Log. Nil cache and view are replaced by no-ops.
func New(st Store, cache Cache, view View, cfg Config) *Log {
	if cache == nil {
		cache = nopCache{}
	}
	if view == nil {
		view = NopView{}
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = defaultMaxSize
	}
	if cfg.HasCredentials == nil {
		cfg.HasCredentials = func() bool { return false }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Log{
		store:          st,
		cache:          cache,
		view:           view,
		maxMessages:    cfg.MaxMessages,
		hasCredentials: cfg.HasCredentials,
		now:            cfg.Now,
		logger:         cfg.Logger,
	}
}

// Initialize loads, repairs, renders and re-persists history. Only the first
// call has any effect.
func (l *Log) Initialize() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return
	}
	l.initialized = true

	var raw []map[string]any
	found, err := l.store.Load(store.KeyChatHistory, &raw)
	if err != nil {
		l.logger.Warn("chat history unreadable; starting fresh", "error", err.Error())
		found = false
	}

	messages, dropped := decodeEntries(raw, l.now())
	if !found || len(messages) == 0 {
		l.seedWelcomeLocked()
		return
	}

	decoded := len(messages)
	messages = reconcile(messages)
	duplicates := decoded - len(messages)
	if len(messages) > l.maxMessages {
		messages = messages[len(messages)-l.maxMessages:]
	}
	l.messages = messages
	for _, m := range l.messages {
		l.view.Render(m)
	}
	l.persistLocked()

	l.logger.Info("chat history restored",
		"messages", len(l.messages),
		"dropped_invalid", dropped,
		"dropped_duplicate", duplicates,
	)
}

// Append adds a message. With a nil timestamp the message is stamped,
// persisted and the cache trimmed. A supplied timestamp renders a display-only
// copy and leaves the log untouched.
func (l *Log) Append(role Role, content string, timestamp *time.Time) Message {
	if timestamp != nil {
		msg := Message{Role: role, Content: content, Timestamp: *timestamp}
		l.view.Render(msg)
		return msg
	}

	l.mu.Lock()
	ts := l.now()
	if n := len(l.messages); n > 0 && ts.Before(l.messages[n-1].Timestamp) {
		ts = l.messages[n-1].Timestamp
	}
	msg := Message{Role: role, Content: content, Timestamp: ts}
	l.messages = append(l.messages, msg)
	if len(l.messages) > l.maxMessages {
		l.messages = append([]Message(nil), l.messages[len(l.messages)-l.maxMessages:]...)
	}
	l.persistLocked()
	l.view.Render(msg)
	l.mu.Unlock()

	l.cache.Trim()
	return msg
}

// UpdateLastUserMessage replaces the content of the final message when it is
// a user message. Position and timestamp are kept.
func (l *Log) UpdateLastUserMessage(content string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.messages)
	if n == 0 || l.messages[n-1].Role != RoleUser {
		return false
	}
	l.messages[n-1].Content = content
	l.persistLocked()
	l.view.ReplaceLastUser(content)
	return true
}

// Clear empties the log and the audio cache and re-seeds the welcome message.
func (l *Log) Clear() {
	l.cache.Clear()
	l.store.Remove(store.KeyAudioCache)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = nil
	l.store.Remove(store.KeyChatHistory)
	l.view.Reset()
	l.seedWelcomeLocked()
	l.initialized = true
}

// Messages returns a copy of the log.
func (l *Log) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.messages...)
}

// Len returns the number of logged messages.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Last returns the final message, if any.
func (l *Log) Last() (Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}

// History returns up to limit messages preceding the final one, oldest first.
// limit <= 0 returns all of them.
func (l *Log) History(limit int) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.messages) <= 1 {
		return nil
	}
	prior := l.messages[:len(l.messages)-1]
	if limit > 0 && len(prior) > limit {
		prior = prior[len(prior)-limit:]
	}
	return append([]Message(nil), prior...)
}

func (l *Log) seedWelcomeLocked() {
	text := WelcomeNoKeys
	if l.hasCredentials() {
		text = WelcomeReady
	}
	msg := Message{Role: RoleAssistant, Content: text, Timestamp: l.now()}
	l.messages = []Message{msg}
	l.persistLocked()
	l.view.Render(msg)
}

func (l *Log) persistLocked() {
	if !l.store.Save(store.KeyChatHistory, l.messages) {
		l.logger.Debug("chat history kept in memory only", "messages", len(l.messages))
	}
}

type nopCache struct{}

func (nopCache) Trim()  {}
func (nopCache) Clear() {}
