package conversation

import (
	"fmt"
	"io"
	"sync"
)

// NopView discards rendering.
type NopView struct{}

func (NopView) Render(Message)         {}
func (NopView) ReplaceLastUser(string) {}
func (NopView) Reset()                 {}

// WriterView prints messages as transcript lines.
type WriterView struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriterView renders to out.
func NewWriterView(out io.Writer) *WriterView {
	return &WriterView{out: out}
}

func (v *WriterView) Render(m Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "[%s] %s: %s\n", m.Timestamp.Local().Format("15:04:05"), speaker(m.Role), m.Content)
}

// ReplaceLastUser prints the transcription under the placeholder line; a
// terminal cannot rewrite lines that have already scrolled.
func (v *WriterView) ReplaceLastUser(content string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "           %s: %s\n", speaker(RoleUser), content)
}

func (v *WriterView) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, "--- conversation cleared ---")
}

func speaker(r Role) string {
	if r == RoleAssistant {
		return "assistant"
	}
	return "you"
}
