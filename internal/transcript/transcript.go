// Package transcript holds the ordered message log of a conversation and the state machine that applies
// stream deltas to it.
package transcript

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MegaGrindStone/reasoner-web-ui/internal/models"
	"github.com/MegaGrindStone/reasoner-web-ui/internal/stream"
)

var (
	// ErrTurnInProgress is returned when a turn is started while the previous one is still streaming.
	ErrTurnInProgress = errors.New("a response is still streaming")
	// ErrEmptyMessage is returned when a turn is started with blank text.
	ErrEmptyMessage = errors.New("message is empty")
)

const networkErrorFormat = "Network error: Could not connect to the server. " +
	"Please check your connection and try again. Details: %v"

// Transcript is an append-only log of messages in conversation order. At most one message is streaming at a
// time, and when one is, it is the last. A Transcript has a single writer and is not safe for concurrent use.
type Transcript struct {
	messages []models.Message
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// Messages returns a copy of the log.
func (t *Transcript) Messages() []models.Message {
	msgs := make([]models.Message, len(t.messages))
	copy(msgs, t.messages)
	return msgs
}

// Len returns the number of messages in the log.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Active returns the streaming placeholder of the current turn, if there is one.
func (t *Transcript) Active() (models.Message, bool) {
	idx := t.activeIndex()
	if idx < 0 {
		return models.Message{}, false
	}
	return t.messages[idx], true
}

// Streaming reports whether a turn is in progress.
func (t *Transcript) Streaming() bool {
	return t.activeIndex() >= 0
}

func (t *Transcript) activeIndex() int {
	if len(t.messages) == 0 {
		return -1
	}
	last := len(t.messages) - 1
	if t.messages[last].Role != models.RoleAssistant || !t.messages[last].Streaming {
		return -1
	}
	return last
}

// Begin opens a turn: it appends the user message followed by an empty, streaming assistant placeholder.
// It fails with ErrTurnInProgress while the previous placeholder is still streaming.
func (t *Transcript) Begin(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if t.Streaming() {
		return ErrTurnInProgress
	}

	t.messages = append(t.messages, models.NewMessage(models.RoleUser, text), models.NewPlaceholder())
	return nil
}

// Apply applies one delta to the active placeholder and reports whether it was applied. Content and
// reasoning are replaced, never appended, even when the new text is shorter. A terminal delta only ends the
// turn. Without an active placeholder the delta is dropped.
func (t *Transcript) Apply(d stream.ContentDelta) bool {
	idx := t.activeIndex()
	if idx < 0 {
		return false
	}

	msg := &t.messages[idx]
	if !d.Terminal {
		msg.Content = d.Content
		msg.ReasoningContent = d.ReasoningContent
	}
	msg.Streaming = !d.Complete
	return true
}

// Fail ends the active turn after a transport failure: the placeholder is removed and a finalized assistant
// message describing err takes its place. It reports whether a turn was active; once the turn has finished
// Fail does nothing.
func (t *Transcript) Fail(err error) bool {
	idx := t.activeIndex()
	if idx < 0 {
		return false
	}

	t.messages = append(t.messages[:idx], models.NewMessage(models.RoleAssistant, fmt.Sprintf(networkErrorFormat, err)))
	return true
}

// Reset discards the whole log.
func (t *Transcript) Reset() {
	t.messages = nil
}

// History returns the finalized messages in request form, with reasoning stripped.
func (t *Transcript) History() []models.RequestMessage {
	return models.RequestMessages(t.messages)
}
