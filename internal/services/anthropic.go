package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/reasoner-web-ui/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Anthropic provides an interface to the Anthropic API for large language model interactions. With a
// thinking budget set, Claude's extended thinking streams into the chunk's reasoning.
type Anthropic struct {
	apiKey         string
	model          string
	maxTokens      int
	thinkingBudget int
	endpoint       string

	client *http.Client

	logger *slog.Logger
}

type anthropicChatRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens,omitempty"`
	Thinking  *anthropicThinking `json:"thinking,omitempty"`
	Stream    bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type anthropicStreamResponse struct {
	Type  string `json:"type"`
	Delta struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Thinking string `json:"thinking"`
	} `json:"delta"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	anthropicAPIEndpoint = "https://api.anthropic.com/v1"
)

// NewAnthropic creates a new Anthropic instance with the specified API key, model name, maximum token limit
// and thinking budget. A zero budget disables extended thinking. An empty endpoint targets the public API.
func NewAnthropic(apiKey, model string, maxTokens, thinkingBudget int, endpoint string, logger *slog.Logger) Anthropic {
	if endpoint == "" {
		endpoint = anthropicAPIEndpoint
	}
	return Anthropic{
		apiKey:         apiKey,
		model:          model,
		maxTokens:      maxTokens,
		thinkingBudget: thinkingBudget,
		endpoint:       endpoint,
		client:         &http.Client{},
		logger:         logger.With(slog.String("module", "anthropic")),
	}
}

// extractSystemMessage pulls the system messages out of the history, since the Anthropic API takes the
// system prompt as a separate field.
func extractSystemMessage(messages []models.RequestMessage) (string, []anthropicMessage) {
	var system string
	msgs := make([]anthropicMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		msgs = append(msgs, anthropicMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return system, msgs
}

// Chat streams responses from the Anthropic API for a given sequence of messages. The context can be used to
// cancel ongoing requests.
func (a Anthropic) Chat(ctx context.Context, messages []models.RequestMessage) iter.Seq2[models.Chunk, error] {
	return func(yield func(models.Chunk, error) bool) {
		system, msgs := extractSystemMessage(messages)

		reqBody := anthropicChatRequest{
			Model:     a.model,
			Messages:  msgs,
			Stream:    true,
			System:    system,
			MaxTokens: a.maxTokens,
		}
		if a.thinkingBudget > 0 {
			reqBody.Thinking = &anthropicThinking{
				Type:         "enabled",
				BudgetTokens: a.thinkingBudget,
			}
		}

		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			yield(models.Chunk{}, fmt.Errorf("error marshaling request: %w", err))
			return
		}

		a.logger.Debug("Request Body", slog.String("body", string(jsonBody)))

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			a.endpoint+"/messages", bytes.NewBuffer(jsonBody))
		if err != nil {
			yield(models.Chunk{}, fmt.Errorf("error creating request: %w", err))
			return
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", a.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")

		resp, err := a.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield(models.Chunk{}, fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			yield(models.Chunk{}, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body)))
			return
		}

		var acc accumulator
		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				yield(models.Chunk{}, fmt.Errorf("error reading response: %w", err))
				return
			}
			switch ev.Type {
			case "error":
				var e anthropicError
				if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
					yield(models.Chunk{}, fmt.Errorf("error unmarshaling error: %w", err))
					return
				}
				yield(models.Chunk{}, fmt.Errorf("anthropic error %s: %s", e.Error.Type, e.Error.Message))
				return
			case "message_stop":
				yield(acc.chunk(true), nil)
				return
			case "content_block_delta":
				var res anthropicStreamResponse
				if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
					yield(models.Chunk{}, fmt.Errorf("error unmarshaling response: %w", err))
					return
				}
				var changed bool
				switch res.Delta.Type {
				case "thinking_delta":
					changed = acc.add("", res.Delta.Thinking)
				case "text_delta":
					changed = acc.add(res.Delta.Text, "")
				}
				if changed && !yield(acc.chunk(false), nil) {
					return
				}
			default:
				continue
			}
		}

		yield(models.Chunk{}, errors.New("anthropic stream ended without message_stop"))
	}
}
