package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MegaGrindStone/reasoner-web-ui/internal/handlers"
	"github.com/MegaGrindStone/reasoner-web-ui/internal/models"
	"github.com/MegaGrindStone/reasoner-web-ui/internal/stream"
)

type mockLLM struct {
	chunks []models.Chunk
	err    error

	received []models.RequestMessage
}

func (m *mockLLM) Chat(_ context.Context, messages []models.RequestMessage) iter.Seq2[models.Chunk, error] {
	m.received = messages
	return func(yield func(models.Chunk, error) bool) {
		for _, c := range m.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if m.err != nil {
			yield(models.Chunk{}, m.err)
		}
	}
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func postChat(t *testing.T, m handlers.Main, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	m.HandleChat(w, req)
	return w
}

func frames(t *testing.T, body string) []string {
	t.Helper()

	var payloads []string
	for f, err := range stream.Frames(strings.NewReader(body)) {
		if err != nil {
			t.Fatalf("Frames() error = %v", err)
		}
		payloads = append(payloads, f.Payload)
	}
	return payloads
}

func TestHandleChatValidation(t *testing.T) {
	m := handlers.NewMain(&mockLLM{}, "", discardLogger)

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{
			name:       "Invalid method",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "Invalid JSON",
			method:     http.MethodPost,
			body:       `{"messages":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Missing messages",
			method:     http.MethodPost,
			body:       `{"stream":true}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Message without content",
			method:     http.MethodPost,
			body:       `{"messages":[{"role":"user"}]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Unknown role",
			method:     http.MethodPost,
			body:       `{"messages":[{"role":"robot","content":"hi"}]}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/chat", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			m.HandleChat(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleChat() status = %v, want %v", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusBadRequest {
				var res models.ErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&res); err != nil || res.Error == "" {
					t.Errorf("error body = %q, decode err = %v", w.Body.String(), err)
				}
			}
		})
	}
}

func TestHandleChatStream(t *testing.T) {
	llm := &mockLLM{chunks: []models.Chunk{
		{Content: "", ReasoningContent: "Think"},
		{Content: "Hi", ReasoningContent: "Think"},
		{Content: "Hi there", ReasoningContent: "Think", IsComplete: true},
	}}
	m := handlers.NewMain(llm, handlers.DefaultSystemPrompt, discardLogger)

	w := postChat(t, m, `{"messages":[{"role":"user","content":"Hello","reasoning_content":"drop me"}],"stream":true,"botRole":"a coding expert"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}

	got := frames(t, w.Body.String())
	if len(got) != 4 {
		t.Fatalf("got %d frames %q, want 4", len(got), got)
	}
	if got[3] != "[DONE]" {
		t.Errorf("last frame = %q, want [DONE]", got[3])
	}
	last, ok := stream.Interpret(got[2]).(stream.ContentDelta)
	if !ok || last.Content != "Hi there" || !last.Complete {
		t.Errorf("complete frame = %q", got[2])
	}

	if len(llm.received) != 2 {
		t.Fatalf("llm received %d messages, want 2", len(llm.received))
	}
	sys := llm.received[0]
	if sys.Role != models.RoleSystem || !strings.HasPrefix(sys.Content, "You are a coding expert.") ||
		!strings.Contains(sys.Content, "LaTeX") {
		t.Errorf("system message = %+v", sys)
	}
	if llm.received[1] != (models.RequestMessage{Role: models.RoleUser, Content: "Hello"}) {
		t.Errorf("user message = %+v", llm.received[1])
	}
}

func TestHandleChatStreamCompletesUnfinishedAnswer(t *testing.T) {
	llm := &mockLLM{chunks: []models.Chunk{{Content: "partial"}}}
	m := handlers.NewMain(llm, "", discardLogger)

	w := postChat(t, m, `{"messages":[{"role":"user","content":"Hello"}],"stream":true}`)
	got := frames(t, w.Body.String())
	if len(got) != 3 {
		t.Fatalf("got %d frames %q, want 3", len(got), got)
	}
	d, _ := stream.Interpret(got[1]).(stream.ContentDelta)
	if d.Content != "partial" || !d.Complete {
		t.Errorf("final chunk = %q", got[1])
	}
	if got[2] != "[DONE]" {
		t.Errorf("last frame = %q", got[2])
	}
}

func TestHandleChatStreamError(t *testing.T) {
	llm := &mockLLM{
		chunks: []models.Chunk{{Content: "partial"}},
		err:    errors.New("upstream failed"),
	}
	m := handlers.NewMain(llm, "", discardLogger)

	w := postChat(t, m, `{"messages":[{"role":"user","content":"Hello"}],"stream":true}`)
	got := frames(t, w.Body.String())
	if len(got) != 1 {
		t.Fatalf("got %d frames %q, want 1", len(got), got)
	}
	for _, f := range got {
		if f == "[DONE]" {
			t.Error("stream carries [DONE] after a provider error")
		}
	}
}

func TestHandleChatNoStream(t *testing.T) {
	llm := &mockLLM{chunks: []models.Chunk{
		{Content: "4", ReasoningContent: "2+2"},
		{Content: "4.", ReasoningContent: "2+2=4", IsComplete: true},
	}}
	m := handlers.NewMain(llm, "", discardLogger)

	w := postChat(t, m, `{"messages":[{"role":"system","content":"Be brief."},{"role":"user","content":"2+2?"}],"botRole":"a math tutor"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var res models.ChatResponse
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Content != "4." || res.ReasoningContent != "2+2=4" {
		t.Errorf("response = %+v", res)
	}

	// The client's own system message wins over the persona.
	if len(llm.received) != 2 || llm.received[0].Content != "Be brief." {
		t.Errorf("llm received %+v", llm.received)
	}
}

func TestHandleChatNoStreamError(t *testing.T) {
	m := handlers.NewMain(&mockLLM{err: errors.New("boom")}, "", discardLogger)

	w := postChat(t, m, `{"messages":[{"role":"user","content":"Hello"}]}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestHandleHealth(t *testing.T) {
	m := handlers.NewMain(&mockLLM{}, "", discardLogger)

	w := httptest.NewRecorder()
	m.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("HandleHealth() = %d %q", w.Code, w.Body.String())
	}
}
