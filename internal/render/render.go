// Package render turns segmented message text into HTML and plain text for display.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/alecthomas/chroma"
	chromahtml "github.com/alecthomas/chroma/formatters/html"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	reasonerwebui "github.com/MegaGrindStone/reasoner-web-ui"
	"github.com/MegaGrindStone/reasoner-web-ui/internal/models"
	"github.com/MegaGrindStone/reasoner-web-ui/internal/segment"
)

const defaultStyle = "monokai"

// Renderer renders message text to HTML. Prose segments go through goldmark; code segments are highlighted
// with chroma using the fence's language.
type Renderer struct {
	md        goldmark.Markdown
	style     *chroma.Style
	formatter *chromahtml.Formatter
	templates *template.Template
}

type messageView struct {
	ID        string
	Role      string
	Label     string
	Content   template.HTML
	Reasoning template.HTML
	Streaming bool
}

type transcriptView struct {
	Title    string
	Role     string
	Messages []messageView
}

// NewRenderer creates a Renderer with the given chroma style name. An unknown or empty style falls back to
// monokai.
func NewRenderer(styleName string) (Renderer, error) {
	tmpl, err := template.ParseFS(reasonerwebui.TemplateFS, "templates/*.html")
	if err != nil {
		return Renderer{}, fmt.Errorf("failed to parse templates: %w", err)
	}

	if styleName == "" {
		styleName = defaultStyle
	}
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}

	return Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(highlighting.WithStyle(styleName)),
			),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		style:     style,
		formatter: chromahtml.New(chromahtml.TabWidth(4)),
		templates: tmpl,
	}, nil
}

// HTML renders text segment by segment.
func (r Renderer) HTML(text string) (template.HTML, error) {
	var buf bytes.Buffer
	for _, seg := range segment.Parse(text) {
		switch seg.Kind {
		case segment.KindText:
			buf.WriteString(`<div class="markdown-content">`)
			if err := r.md.Convert([]byte(seg.Content), &buf); err != nil {
				return "", fmt.Errorf("failed to convert markdown: %w", err)
			}
			buf.WriteString(`</div>`)
		case segment.KindCode:
			if err := r.code(&buf, seg); err != nil {
				return "", err
			}
		}
	}
	// goldmark escapes raw HTML and chroma escapes tokens.
	return template.HTML(buf.String()), nil
}

func (r Renderer) code(w io.Writer, seg segment.Segment) error {
	lexer := lexers.Get(seg.Language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	it, err := lexer.Tokenise(nil, seg.Content)
	if err != nil {
		return fmt.Errorf("failed to tokenise %s code: %w", seg.Language, err)
	}

	fmt.Fprintf(w, `<div class="code-block-container"><div class="code-block-header">`+
		`<span class="code-language">%s</span></div>`, template.HTMLEscapeString(seg.Language))
	if err := r.formatter.Format(w, r.style, it); err != nil {
		return fmt.Errorf("failed to format %s code: %w", seg.Language, err)
	}
	_, err = io.WriteString(w, `</div>`)
	return err
}

// Transcript writes a standalone HTML page for messages. role is the persona shown in the header and may be
// empty.
func (r Renderer) Transcript(w io.Writer, role string, messages []models.Message) error {
	views := make([]messageView, len(messages))
	for i, msg := range messages {
		content, err := r.HTML(msg.Content)
		if err != nil {
			return fmt.Errorf("failed to render message %s: %w", msg.ID, err)
		}
		views[i] = messageView{
			ID:        msg.ID,
			Role:      string(msg.Role),
			Label:     msg.Role.DisplayName(),
			Content:   content,
			Streaming: msg.Streaming,
		}
		if msg.Role == models.RoleAssistant && msg.ReasoningContent != "" {
			views[i].Reasoning, err = r.HTML(msg.ReasoningContent)
			if err != nil {
				return fmt.Errorf("failed to render reasoning of message %s: %w", msg.ID, err)
			}
		}
	}

	return r.templates.ExecuteTemplate(w, "transcript", transcriptView{
		Title:    "DeepSeek Reasoner Chat",
		Role:     role,
		Messages: views,
	})
}

// PlainText renders text for a terminal. Code segments are framed with their language; prose is unchanged.
func PlainText(text string) string {
	var sb strings.Builder
	for _, seg := range segment.Parse(text) {
		switch seg.Kind {
		case segment.KindText:
			sb.WriteString(seg.Content)
		case segment.KindCode:
			if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "----- %s -----\n", seg.Language)
			sb.WriteString(seg.Content)
			if !strings.HasSuffix(seg.Content, "\n") {
				sb.WriteString("\n")
			}
			sb.WriteString("-----\n")
		}
	}
	return sb.String()
}
