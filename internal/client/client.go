// Package client talks to the chat backend and drives a conversation transcript from the streamed response.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/reasoner-web-ui/internal/models"
)

const errLoggerKey = "err"

// Client posts chat requests to the backend's chat endpoint.
type Client struct {
	url    string
	client *http.Client

	logger *slog.Logger
}

// New creates a Client for the chat endpoint at url. A nil httpClient uses a client without a timeout, since
// a streamed response stays open for as long as the model keeps producing tokens.
func New(url string, httpClient *http.Client, logger *slog.Logger) Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return Client{
		url:    url,
		client: httpClient,
		logger: logger.With(slog.String("module", "client")),
	}
}

// Stream sends req and returns the response body as the stream handle. The caller owns the handle and must
// close it; closing it is how a running response is cancelled.
func (c Client) Stream(ctx context.Context, req models.ChatRequest) (io.ReadCloser, error) {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	c.logger.Debug("Request", slog.String("body", string(jsonBody)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error! status: %d, body: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	return resp.Body, nil
}
