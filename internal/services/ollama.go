package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/MegaGrindStone/reasoner-web-ui/internal/models"
	"github.com/ollama/ollama/api"
)

// Ollama provides an implementation of the LLM interface for interacting with Ollama's language models.
// Ollama streams no separate reasoning, so chunks only carry content.
type Ollama struct {
	host  string
	model string

	client *api.Client

	logger *slog.Logger
}

// NewOllama creates a new Ollama instance with the specified host URL and model name.
func NewOllama(host, model string, logger *slog.Logger) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	return Ollama{
		host:   host,
		model:  model,
		client: api.NewClient(u, &http.Client{}),
		logger: logger.With(slog.String("module", "ollama")),
	}, nil
}

// Chat implements the LLM interface by streaming responses from the Ollama model.
func (o Ollama) Chat(ctx context.Context, messages []models.RequestMessage) iter.Seq2[models.Chunk, error] {
	return func(yield func(models.Chunk, error) bool) {
		msgs := make([]api.Message, len(messages))
		for i, msg := range messages {
			msgs[i] = api.Message{
				Role:    string(msg.Role),
				Content: msg.Content,
			}
		}

		t := true
		req := api.ChatRequest{
			Model:    o.model,
			Messages: msgs,
			Stream:   &t,
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var acc accumulator
		stopped := false
		err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
			if stopped || !acc.add(res.Message.Content, "") {
				return nil
			}
			if !yield(acc.chunk(false), nil) {
				stopped = true
				cancel()
			}
			return nil
		})
		// The consumer is gone, whatever error the cancellation surfaced as.
		if stopped {
			return
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield(models.Chunk{}, fmt.Errorf("error sending request: %w", err))
			return
		}

		yield(acc.chunk(true), nil)
	}
}
