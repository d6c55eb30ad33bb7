package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/MegaGrindStone/reasoner-web-ui/internal/models"
	"github.com/MegaGrindStone/reasoner-web-ui/internal/stream"
	"github.com/MegaGrindStone/reasoner-web-ui/internal/transcript"
)

// ErrIncompleteStream is the failure recorded when the response ends before it completes.
var ErrIncompleteStream = errors.New("stream closed before the response completed")

// Streamer opens the byte stream of one response. Client implements it.
type Streamer interface {
	Stream(ctx context.Context, req models.ChatRequest) (io.ReadCloser, error)
}

// Conversation runs turns against a Streamer and keeps their transcript. Only one turn runs at a time: Send
// blocks for the whole turn, and a Send made while another is running fails with
// transcript.ErrTurnInProgress.
//
// The transcript is written only by the goroutine inside Send. Observers are called on that goroutine after
// every change, with a snapshot.
type Conversation struct {
	streamer Streamer
	logger   *slog.Logger
	observer func([]models.Message)

	mu         sync.Mutex
	transcript *transcript.Transcript
	role       string
	cancel     context.CancelFunc
	busy       bool
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithObserver registers fn to receive a transcript snapshot after every change.
func WithObserver(fn func([]models.Message)) Option {
	return func(c *Conversation) {
		c.observer = fn
	}
}

// NewConversation creates an empty conversation with the given persona.
func NewConversation(streamer Streamer, role string, logger *slog.Logger, opts ...Option) *Conversation {
	c := &Conversation{
		streamer:   streamer,
		logger:     logger.With(slog.String("module", "conversation")),
		transcript: transcript.New(),
		role:       role,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send runs one turn: it appends text and an assistant placeholder, streams the response into the
// placeholder, and returns once the placeholder is finalized. If the stream fails or is cancelled first, the
// placeholder is replaced with an error message and the cause is returned. The conversation stays usable
// in every case.
func (c *Conversation) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return transcript.ErrTurnInProgress
	}
	if err := c.transcript.Begin(text); err != nil {
		c.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.busy = true
	req := models.ChatRequest{
		Messages: c.transcript.History(),
		Stream:   true,
		BotRole:  c.role,
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		cancel()
		c.cancel = nil
		c.busy = false
		c.mu.Unlock()
	}()

	c.notify()

	err := c.consume(ctx, req)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		err = ctx.Err()
	}

	c.logger.Error("Turn failed", slog.String(errLoggerKey, err.Error()))
	c.mu.Lock()
	failed := c.transcript.Fail(err)
	c.mu.Unlock()
	if failed {
		c.notify()
	}
	return fmt.Errorf("turn failed: %w", err)
}

// consume returns nil once the active message is finalized, and the transport failure otherwise.
func (c *Conversation) consume(ctx context.Context, req models.ChatRequest) error {
	body, err := c.streamer.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer body.Close()

	// Cancellation closes the handle, which unblocks the pending read.
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	for frame, err := range stream.Frames(body) {
		if err != nil {
			return fmt.Errorf("error reading stream: %w", err)
		}

		switch d := stream.Interpret(frame.Payload).(type) {
		case stream.MalformedFrame:
			c.logger.Warn("Skipping malformed frame",
				slog.String("payload", d.Raw),
				slog.String(errLoggerKey, d.Err.Error()))
		case stream.ContentDelta:
			c.mu.Lock()
			applied := c.transcript.Apply(d)
			streaming := c.transcript.Streaming()
			c.mu.Unlock()

			if !applied {
				c.logger.Debug("Dropping delta without active message", slog.String("payload", frame.Payload))
				continue
			}
			c.notify()
			if !streaming {
				return nil
			}
		}
	}

	return ErrIncompleteStream
}

func (c *Conversation) notify() {
	if c.observer == nil {
		return
	}
	c.observer(c.Messages())
}

// Cancel stops the running turn, if any, by closing its stream handle. The turn then ends with an error
// message. After the turn has finished Cancel does nothing.
func (c *Conversation) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
}

// Reset cancels any running turn and starts a new, empty conversation.
func (c *Conversation) Reset() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.transcript.Reset()
	c.mu.Unlock()

	c.notify()
}

// SetRole changes the persona used for the following turns.
func (c *Conversation) SetRole(role string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy {
		return transcript.ErrTurnInProgress
	}
	c.role = role
	return nil
}

// Role returns the current persona.
func (c *Conversation) Role() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.role
}

// Messages returns a snapshot of the transcript.
func (c *Conversation) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.transcript.Messages()
}

// Busy reports whether a turn is running.
func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.busy
}
