package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/MegaGrindStone/reasoner-web-ui/internal/models"
	goopenai "github.com/sashabaranov/go-openai"
)

const (
	// DeepSeekBaseURL is the OpenAI-compatible endpoint used when no base URL is configured.
	DeepSeekBaseURL = "https://api.deepseek.com"
	// DeepSeekReasonerModel is the reasoning model the client is built around.
	DeepSeekReasonerModel = "deepseek-reasoner"
)

// OpenAI provides an implementation of the LLM interface for OpenAI-compatible chat completion APIs. It
// reads both the answer and the reasoning_content that DeepSeek's reasoner streams alongside it.
type OpenAI struct {
	model  string
	params LLMParameters

	client *goopenai.Client

	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI instance with the specified API key, base URL, model name and sampling
// parameters. An empty baseURL targets DeepSeek.
func NewOpenAI(apiKey, baseURL, model string, params LLMParameters, logger *slog.Logger) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = DeepSeekBaseURL
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return OpenAI{
		model:  model,
		params: params,
		client: goopenai.NewClientWithConfig(cfg),
		logger: logger.With(slog.String("module", "openai")),
	}
}

func openAIMessages(messages []models.RequestMessage) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		msgs[i] = goopenai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return msgs
}

// Chat is a wrapper around the streaming chat completion API. Every yielded chunk carries the text received
// so far; the last one is marked complete.
func (o OpenAI) Chat(ctx context.Context, messages []models.RequestMessage) iter.Seq2[models.Chunk, error] {
	return func(yield func(models.Chunk, error) bool) {
		req := o.chatRequest(openAIMessages(messages))

		reqJSON, err := json.Marshal(req)
		if err == nil {
			o.logger.Debug("Request", slog.String("req", string(reqJSON)))
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stream, err := o.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield(models.Chunk{}, fmt.Errorf("error sending request: %w", err))
			return
		}
		defer stream.Close()

		var acc accumulator
		for {
			response, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				if errors.Is(err, context.Canceled) {
					return
				}
				yield(models.Chunk{}, fmt.Errorf("error receiving response: %w", err))
				return
			}

			if len(response.Choices) == 0 {
				continue
			}

			delta := response.Choices[0].Delta
			if !acc.add(delta.Content, delta.ReasoningContent) {
				continue
			}
			if !yield(acc.chunk(false), nil) {
				return
			}
		}

		yield(acc.chunk(true), nil)
	}
}

func (o OpenAI) chatRequest(messages []goopenai.ChatCompletionMessage) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   true,
	}

	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}
	if o.params.MaxTokens != nil {
		req.MaxTokens = *o.params.MaxTokens
	}
	if o.params.Stop != nil {
		req.Stop = o.params.Stop
	}
	if o.params.PresencePenalty != nil {
		req.PresencePenalty = *o.params.PresencePenalty
	}
	if o.params.FrequencyPenalty != nil {
		req.FrequencyPenalty = *o.params.FrequencyPenalty
	}
	if o.params.Seed != nil {
		req.Seed = o.params.Seed
	}

	return req
}
