package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/MegaGrindStone/reasoner-web-ui/internal/models"
	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
)

const doneSentinel = "[DONE]"

var errNoMessages = errors.New("missing 'messages' in request body")

// rawChatRequest mirrors models.ChatRequest with pointer fields, so that absent message fields can be told
// apart from empty ones.
type rawChatRequest struct {
	Messages []struct {
		Role    *models.Role `json:"role"`
		Content *string      `json:"content"`
	} `json:"messages"`
	Stream  bool   `json:"stream"`
	BotRole string `json:"botRole"`
}

// HandleChat answers a conversation posted as JSON.
//
// The body carries the history as role/content pairs, a stream flag and an optional persona in botRole; any
// other message fields, such as reasoning, are dropped. With stream set, the response is a text/event-stream
// of "data: <json>" frames, each carrying the cumulative content and reasoning_content, followed by a frame
// with is_complete set and a final "data: [DONE]". If the LLM fails mid-answer the stream ends without the
// sentinel. Without stream, the final content and reasoning_content are returned as one JSON object.
//
// Invalid bodies are rejected with 400 and a JSON error.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	logger := m.logger.With(slog.String("requestID", uuid.New().String()))

	if r.Method != http.MethodPost {
		logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := decodeChatRequest(r)
	if err != nil {
		logger.Error("Invalid request", slog.String(errLoggerKey, err.Error()))
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	messages := m.withSystemPrompt(req.BotRole, req.Messages)

	logger.Debug("Chat request",
		slog.Int("messages", len(messages)),
		slog.Bool("stream", req.Stream),
		slog.String("botRole", req.BotRole))

	if !req.Stream {
		m.answer(w, r, logger, messages)
		return
	}
	m.stream(w, r, logger, messages)
}

func decodeChatRequest(r *http.Request) (models.ChatRequest, error) {
	var raw rawChatRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return models.ChatRequest{}, fmt.Errorf("invalid JSON body: %w", err)
	}
	if len(raw.Messages) == 0 {
		return models.ChatRequest{}, errNoMessages
	}

	msgs := make([]models.RequestMessage, len(raw.Messages))
	for i, msg := range raw.Messages {
		if msg.Role == nil || msg.Content == nil {
			return models.ChatRequest{}, errors.New("each message must have 'role' and 'content'")
		}
		if !msg.Role.Valid() {
			return models.ChatRequest{}, fmt.Errorf("message %d has unknown role %q", i, *msg.Role)
		}
		msgs[i] = models.RequestMessage{Role: *msg.Role, Content: *msg.Content}
	}

	return models.ChatRequest{
		Messages: msgs,
		Stream:   raw.Stream,
		BotRole:  strings.TrimSpace(raw.BotRole),
	}, nil
}

// withSystemPrompt prepends the persona and formatting instructions, unless the client sent its own system
// message.
func (m Main) withSystemPrompt(botRole string, messages []models.RequestMessage) []models.RequestMessage {
	if slices.ContainsFunc(messages, func(msg models.RequestMessage) bool {
		return msg.Role == models.RoleSystem
	}) {
		return messages
	}

	var parts []string
	if botRole != "" {
		parts = append(parts, fmt.Sprintf("You are %s.", botRole))
	}
	if m.systemPrompt != "" {
		parts = append(parts, m.systemPrompt)
	}
	if len(parts) == 0 {
		return messages
	}

	return slices.Insert(messages, 0, models.RequestMessage{
		Role:    models.RoleSystem,
		Content: strings.Join(parts, "\n\n"),
	})
}

func (m Main) answer(w http.ResponseWriter, r *http.Request, logger *slog.Logger, messages []models.RequestMessage) {
	var last models.Chunk
	for chunk, err := range m.llm.Chat(r.Context(), messages) {
		if err != nil {
			logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
			writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
			return
		}
		last = chunk
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{
		Content:          last.Content,
		ReasoningContent: last.ReasoningContent,
	})
}

func (m Main) stream(w http.ResponseWriter, r *http.Request, logger *slog.Logger, messages []models.RequestMessage) {
	sess, err := sse.Upgrade(w, r)
	if err != nil {
		logger.Error("Failed to upgrade to event stream", slog.String(errLoggerKey, err.Error()))
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	var last models.Chunk
	for chunk, err := range m.llm.Chat(r.Context(), messages) {
		if err != nil {
			// Ending without the sentinel tells the client the answer is incomplete.
			logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
			return
		}
		last = chunk
		if err := sendChunk(sess, chunk); err != nil {
			logger.Error("Failed to send chunk", slog.String(errLoggerKey, err.Error()))
			return
		}
	}

	if err := r.Context().Err(); err != nil {
		logger.Debug("Client went away", slog.String(errLoggerKey, err.Error()))
		return
	}

	if !last.IsComplete {
		last.IsComplete = true
		if err := sendChunk(sess, last); err != nil {
			logger.Error("Failed to send final chunk", slog.String(errLoggerKey, err.Error()))
			return
		}
	}

	if err := sendData(sess, doneSentinel); err != nil {
		logger.Error("Failed to send done sentinel", slog.String(errLoggerKey, err.Error()))
	}
}

func sendChunk(sess *sse.Session, chunk models.Chunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk: %w", err)
	}
	return sendData(sess, string(data))
}

func sendData(sess *sse.Session, data string) error {
	msg := &sse.Message{}
	msg.AppendData(data)
	if err := sess.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return sess.Flush()
}
