package conversation

import (
	"sort"
	"strings"
	"time"
)

// decodeEntries validates persisted entries. Invalid ones are dropped and the
// legacy "message" field is accepted as content. Bad timestamps are
// regenerated from their neighbours so each entry keeps its position.
func decodeEntries(raw []map[string]any, now time.Time) (kept []Message, dropped int) {
	var stamped []bool
	for _, entry := range raw {
		msg, hasTS, ok := decodeEntry(entry)
		if !ok {
			dropped++
			continue
		}
		kept = append(kept, msg)
		stamped = append(stamped, hasTS)
	}
	restamp(kept, stamped, now)
	return kept, dropped
}

// restamp fills missing timestamps. An entry after a stamped one gets the
// previous instant plus a nanosecond; a leading run counts back from the
// first stamped entry; entries with nothing stamped after them get at least
// now. Every regenerated instant is distinct.
func restamp(messages []Message, stamped []bool, now time.Time) {
	nextValid := make([]int, len(messages))
	next := -1
	for i := len(messages) - 1; i >= 0; i-- {
		nextValid[i] = next
		if stamped[i] {
			next = i
		}
	}

	for i := range messages {
		if stamped[i] {
			continue
		}
		switch {
		case nextValid[i] < 0:
			ts := now
			if i > 0 && !messages[i-1].Timestamp.Before(ts) {
				ts = messages[i-1].Timestamp.Add(time.Nanosecond)
			}
			messages[i].Timestamp = ts
		case i > 0:
			messages[i].Timestamp = messages[i-1].Timestamp.Add(time.Nanosecond)
		default:
			anchor := nextValid[i]
			for j := anchor - 1; j >= 0; j-- {
				messages[j].Timestamp = messages[anchor].Timestamp.Add(-time.Duration(anchor-j) * time.Nanosecond)
			}
		}
	}
}

func decodeEntry(entry map[string]any) (msg Message, hasTS, ok bool) {
	if entry == nil {
		return Message{}, false, false
	}
	role, _ := entry["role"].(string)
	if !validRole(Role(role)) {
		return Message{}, false, false
	}

	content, ok := entry["content"].(string)
	if !ok {
		content, ok = entry["message"].(string)
	}
	if !ok || strings.TrimSpace(content) == "" {
		return Message{}, false, false
	}

	msg = Message{Role: Role(role), Content: content}
	if raw, ok := entry["timestamp"].(string); ok {
		if parsed, err := ParseTimestamp(raw); err == nil {
			msg.Timestamp = parsed
			hasTS = true
		}
	}
	return msg, hasTS, true
}

// reconcile removes duplicate identities and restores non-decreasing order.
func reconcile(messages []Message) []Message {
	seen := make(map[identity]struct{}, len(messages))
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		id := m.identity()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
