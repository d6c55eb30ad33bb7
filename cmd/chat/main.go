package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/MegaGrindStone/reasoner-web-ui/internal/client"
	"github.com/MegaGrindStone/reasoner-web-ui/internal/render"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "reasoner-chat",
		Usage: "Chat with a reasoning model from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "Chat endpoint of the backend",
				Value:   "http://127.0.0.1:5000/api/chat",
				EnvVars: []string{"REASONER_CHAT_URL"},
			},
			&cli.StringFlag{
				Name:    "role",
				Aliases: []string{"r"},
				Usage:   "Role the assistant plays; asked for on start when empty",
				EnvVars: []string{"REASONER_CHAT_ROLE"},
			},
			&cli.StringFlag{
				Name:    "html",
				Usage:   "Write the transcript as an HTML page to this path after every turn",
				EnvVars: []string{"REASONER_CHAT_HTML"},
			},
			&cli.StringFlag{
				Name:    "style",
				Usage:   "Syntax highlighting style of the HTML transcript",
				Value:   "monokai",
				EnvVars: []string{"REASONER_CHAT_STYLE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level: debug, info, warn, error",
				Value:   "warn",
				EnvVars: []string{"REASONER_CHAT_LOG_LEVEL"},
			},
		},
		Action: chatAction,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func chatAction(c *cli.Context) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		return cli.Exit(fmt.Sprintf("invalid --log-level %q", c.String("log-level")), 2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	renderer, err := render.NewRenderer(c.String("style"))
	if err != nil {
		return fmt.Errorf("error creating renderer: %w", err)
	}

	printer := &reasoningPrinter{out: os.Stdout}
	conv := client.NewConversation(
		client.New(c.String("url"), nil, logger),
		c.String("role"),
		logger,
		client.WithObserver(printer.update),
	)

	// Ctrl+C stops a running response. When idle it quits.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for range sigs {
			if conv.Busy() {
				conv.Cancel()
				continue
			}
			fmt.Fprintln(os.Stdout)
			os.Exit(130)
		}
	}()

	r := newREPL(conv, printer, renderer, os.Stdin, os.Stdout, logger)
	r.htmlPath = c.String("html")

	return r.run(c.Context)
}
