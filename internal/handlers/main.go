package handlers

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/reasoner-web-ui/internal/models"
)

// LLM represents a large language model that answers a conversation. It returns an iterator that yields
// cumulative chunks, each carrying the whole answer and reasoning produced so far, and potential errors. The
// last chunk of a successful answer is marked complete.
type LLM interface {
	Chat(ctx context.Context, messages []models.RequestMessage) iter.Seq2[models.Chunk, error]
}

// Main serves the chat endpoint, relaying answers from the LLM to clients as a stream of data frames.
type Main struct {
	llm          LLM
	systemPrompt string

	logger *slog.Logger
}

const errLoggerKey = "err"

// DefaultSystemPrompt asks the model for Markdown with LaTeX math, which is what the client renders.
const DefaultSystemPrompt = `When responding with mathematical content, please use proper LaTeX notation:
- For inline math, use single dollar signs: $E=mc^2$
- For display math, use double dollar signs: $$\sum_{i=1}^{n} i = \frac{n(n+1)}{2}$$

Format your response in markdown for better readability:
- Use # for headings
- Use **bold** and *italic* for emphasis
- Use - or * for bullet points
- Use 1. 2. 3. for numbered lists
- Use > for blockquotes
- Use ` + "`code`" + ` for inline code
- Use ` + "```language\\ncode\\n```" + ` for code blocks

Ensure all LaTeX expressions are properly escaped and formatted.`

// NewMain creates a new Main instance with the provided LLM. systemPrompt is appended to the persona in the
// system message of every request that doesn't carry its own.
func NewMain(llm LLM, systemPrompt string, logger *slog.Logger) Main {
	return Main{
		llm:          llm,
		systemPrompt: systemPrompt,
		logger:       logger.With(slog.String("module", "main")),
	}
}

// HandleHealth reports that the server is up.
func (m Main) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
