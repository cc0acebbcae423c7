package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/poiesic/sibyl"
	"github.com/poiesic/sibyl/chat"
	"github.com/urfave/cli/v2"
)

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:      "chat",
		Usage:     "Ask a question, or start an interactive session when no question is given",
		ArgsUsage: "[QUESTION]",
		Action:    chatAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "conversation",
				Usage: "Continue an existing conversation",
			},
			&cli.IntFlag{
				Name:  "max-sources",
				Usage: "Maximum number of sources to cite (0 uses the configured default)",
			},
			&cli.BoolFlag{
				Name:  "sources",
				Usage: "Print the retrieved sources after each answer",
			},
		},
	}
}

func chatAction(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	s := &chatSession{
		svc:            svc,
		out:            c.App.Writer,
		conversationID: c.String("conversation"),
		maxSources:     c.Int("max-sources"),
		showSources:    c.Bool("sources"),
	}

	if c.NArg() > 0 {
		return s.ask(c, strings.Join(c.Args().Slice(), " "))
	}

	in := c.App.Reader
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(s.out, "Type a question, or an empty line to quit.")
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return nil
		}
		if err := s.ask(c, line); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

type chatSession struct {
	svc            *sibyl.Service
	out            io.Writer
	conversationID string
	maxSources     int
	showSources    bool
}

func (s *chatSession) ask(c *cli.Context, question string) error {
	resp, err := s.svc.Chat(c.Context, chat.Request{
		Message:        question,
		ConversationID: s.conversationID,
		MaxSources:     s.maxSources,
	})
	if err != nil {
		return err
	}
	s.conversationID = resp.ConversationID

	fmt.Fprintln(s.out, resp.Response)
	fmt.Fprintf(s.out, "[%s/%s confidence=%.2f conversation=%s]\n",
		resp.Provider, resp.ModelUsed, resp.Confidence, resp.ConversationID)
	if s.showSources {
		for _, src := range resp.Sources {
			title := src.Title
			if title == "" {
				title = string(src.DocumentID)
			}
			fmt.Fprintf(s.out, "  [%d] %s (%s, %.2f)\n", src.Citation, title, src.Type, src.Relevance)
		}
	}
	return nil
}
