package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/MegaGrindStone/reasoner-web-ui/internal/client"
	"github.com/MegaGrindStone/reasoner-web-ui/internal/models"
	"github.com/MegaGrindStone/reasoner-web-ui/internal/render"
	"github.com/MegaGrindStone/reasoner-web-ui/internal/transcript"
)

const helpText = `Commands:
  /role [text]  show or change the role the assistant plays
  /reset        start a new conversation
  /help         show this help
  /quit         leave
`

type repl struct {
	conv     *client.Conversation
	printer  *reasoningPrinter
	renderer render.Renderer
	htmlPath string

	in     *bufio.Scanner
	out    io.Writer
	logger *slog.Logger
}

// reasoningPrinter writes the reasoning of the last assistant message as it grows. A rewrite that is not an
// extension of what was already printed is skipped.
type reasoningPrinter struct {
	out     io.Writer
	printed string
	started bool
}

func newREPL(
	conv *client.Conversation,
	printer *reasoningPrinter,
	renderer render.Renderer,
	in io.Reader,
	out io.Writer,
	logger *slog.Logger,
) *repl {
	return &repl{
		conv:     conv,
		printer:  printer,
		renderer: renderer,
		in:       bufio.NewScanner(in),
		out:      out,
		logger:   logger.With(slog.String("module", "repl")),
	}
}

func (r *repl) run(ctx context.Context) error {
	if r.conv.Role() == "" {
		fmt.Fprint(r.out, "What role should the assistant play? ")
		if !r.in.Scan() {
			return r.in.Err()
		}
		if err := r.conv.SetRole(strings.TrimSpace(r.in.Text())); err != nil {
			return err
		}
	}
	fmt.Fprintf(r.out, "Role: %s\nType /help for commands.\n", r.conv.Role())

	for {
		fmt.Fprint(r.out, "> ")
		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return r.in.Err()
		}
		line := strings.TrimSpace(r.in.Text())

		switch {
		case line == "":
		case line == "/quit", line == "/exit":
			return nil
		case line == "/help":
			fmt.Fprint(r.out, helpText)
		case line == "/reset":
			r.conv.Reset()
			r.printer.reset()
			fmt.Fprintln(r.out, "Started a new conversation.")
		case line == "/role" || strings.HasPrefix(line, "/role "):
			r.role(strings.TrimSpace(strings.TrimPrefix(line, "/role")))
		default:
			r.turn(ctx, line)
		}
	}
}

func (r *repl) role(role string) {
	if role == "" {
		fmt.Fprintf(r.out, "Role: %s\n", r.conv.Role())
		return
	}
	if err := r.conv.SetRole(role); err != nil {
		fmt.Fprintf(r.out, "Cannot change role: %v\n", err)
		return
	}
	fmt.Fprintf(r.out, "Role: %s\n", role)
}

func (r *repl) turn(ctx context.Context, text string) {
	r.printer.reset()
	fmt.Fprintln(r.out, "Thinking...")

	err := r.conv.Send(ctx, text)
	switch {
	case errors.Is(err, transcript.ErrEmptyMessage), errors.Is(err, transcript.ErrTurnInProgress):
		fmt.Fprintf(r.out, "%v\n", err)
		return
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(r.out, "Response cancelled.")
	}

	msgs := r.conv.Messages()
	r.printer.update(msgs)
	if r.printer.started {
		fmt.Fprint(r.out, "\n\n")
	}
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		fmt.Fprintf(r.out, "%s:\n%s\n", last.Role.DisplayName(), strings.TrimRight(render.PlainText(last.Content), "\n"))
	}

	if r.htmlPath != "" {
		if err := r.writeHTML(msgs); err != nil {
			r.logger.Error("Failed to write transcript", slog.String("path", r.htmlPath), slog.String("err", err.Error()))
		}
	}
}

func (r *repl) writeHTML(msgs []models.Message) error {
	f, err := os.Create(r.htmlPath)
	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}
	if err := r.renderer.Transcript(f, r.conv.Role(), msgs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (p *reasoningPrinter) update(msgs []models.Message) {
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	if last.Role != models.RoleAssistant || last.ReasoningContent == "" {
		return
	}
	if !strings.HasPrefix(last.ReasoningContent, p.printed) {
		return
	}

	if !p.started {
		fmt.Fprintln(p.out, "Reasoning:")
		p.started = true
	}
	fmt.Fprint(p.out, last.ReasoningContent[len(p.printed):])
	p.printed = last.ReasoningContent
}

func (p *reasoningPrinter) reset() {
	p.printed = ""
	p.started = false
}
