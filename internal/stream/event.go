package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MegaGrindStone/reasoner-web-ui/internal/models"
)

var errNullPayload = errors.New("payload is null")

// Delta is one interpreted frame. It is either a ContentDelta or a MalformedFrame.
type Delta interface {
	delta()
}

// ContentDelta replaces the active message's content and reasoning. Fields the payload omitted arrive here as
// empty values, not as "unchanged".
type ContentDelta struct {
	Content          string
	ReasoningContent string
	Complete         bool

	// Terminal is set for the end-of-response sentinel. A terminal delta completes the message without
	// touching its content.
	Terminal bool
}

// MalformedFrame is a payload that couldn't be decoded. It is reported and skipped.
type MalformedFrame struct {
	Raw string
	Err error
}

func (ContentDelta) delta()   {}
func (MalformedFrame) delta() {}

func (m MalformedFrame) Error() string {
	return fmt.Sprintf("malformed frame %q: %v", m.Raw, m.Err)
}

// Interpret turns a frame payload into exactly one Delta. It never fails: a payload that isn't a JSON object
// becomes a MalformedFrame.
func Interpret(payload string) Delta {
	if payload == DoneSentinel {
		return ContentDelta{Complete: true, Terminal: true}
	}

	// Keys are matched exactly; encoding/json would also accept "Content" or "IS_COMPLETE".
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return MalformedFrame{Raw: payload, Err: err}
	}
	if fields == nil {
		return MalformedFrame{Raw: payload, Err: errNullPayload}
	}

	var chunk models.Chunk
	for key, dst := range map[string]any{
		"content":           &chunk.Content,
		"reasoning_content": &chunk.ReasoningContent,
		"is_complete":       &chunk.IsComplete,
	} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return MalformedFrame{Raw: payload, Err: fmt.Errorf("field %s: %w", key, err)}
		}
	}

	return ContentDelta{
		Content:          chunk.Content,
		ReasoningContent: chunk.ReasoningContent,
		Complete:         chunk.IsComplete,
	}
}
