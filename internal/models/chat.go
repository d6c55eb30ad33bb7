package models

// ChatRequest is the body the client posts to the backend to start a turn. Messages carry the conversation
// history in order, with reasoning stripped.
type ChatRequest struct {
	Messages []RequestMessage `json:"messages"`
	Stream   bool             `json:"stream"`
	BotRole  string           `json:"botRole,omitempty"`
}

// RequestMessage is one history entry of a ChatRequest.
type RequestMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Chunk is the record carried in the payload of a stream frame. Content and ReasoningContent are cumulative:
// every chunk carries the whole text produced so far, not the increment since the previous chunk.
type Chunk struct {
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content"`
	IsComplete       bool   `json:"is_complete"`
}

// ChatResponse is the body returned for a non-streaming ChatRequest.
type ChatResponse struct {
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content"`
}

// ErrorResponse is the body returned when a ChatRequest is rejected or fails.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RequestMessages converts a transcript into request history. Reasoning content and streaming placeholders
// are dropped.
func RequestMessages(messages []Message) []RequestMessage {
	msgs := make([]RequestMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Streaming {
			continue
		}
		msgs = append(msgs, RequestMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return msgs
}
