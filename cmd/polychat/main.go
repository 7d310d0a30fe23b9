// Command polychat is a terminal client for a polychat server.
//
//	polychat register <name> <animal> <animal> <animal>...
//	polychat login <user-id> <animal> <animal> <animal>...
//	polychat chats
//	polychat history <chat-id>
//	polychat ask [-chat id] [-provider name] [-persona name] <question>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"github.com/dskvich/polychat/pkg/client"
	"github.com/dskvich/polychat/pkg/domain"
	"github.com/dskvich/polychat/pkg/logger"
)

type Config struct {
	ServerURL string `env:"POLYCHAT_URL" envDefault:"http://localhost:8080"`
	Token     string `env:"POLYCHAT_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"warn"`
	NoColor   bool   `env:"NO_COLOR"`
}

var errUsage = errors.New("usage: polychat register|login|chats|history|ask ...")

func main() {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "parsing env config:", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, logger.NewOptions(cfg.LogLevel, cfg.NoColor))))
	color.NoColor = color.NoColor || cfg.NoColor

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:], os.Stdout); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	c := client.New(cfg.ServerURL, cfg.Token, nil)

	switch args[0] {
	case "register":
		if len(args) < 3 {
			return errUsage
		}
		s, err := c.Register(ctx, args[1], args[2:])
		if err != nil {
			return fmt.Errorf("registering: %w", err)
		}
		printSession(out, s)
	case "login":
		if len(args) < 3 {
			return errUsage
		}
		s, err := c.Login(ctx, args[1], args[2:])
		if err != nil {
			return fmt.Errorf("logging in: %w", err)
		}
		printSession(out, s)
	case "chats":
		chats, err := c.Chats(ctx)
		if err != nil {
			return fmt.Errorf("listing chats: %w", err)
		}
		for _, chat := range chats {
			fmt.Fprintf(out, "%s  %s  %s\n", color.CyanString(chat.ID), chat.UpdatedAt.Local().Format(time.DateTime), chat.Title)
		}
	case "history":
		if len(args) != 2 {
			return errUsage
		}
		messages, err := c.Messages(ctx, args[1])
		if err != nil {
			return fmt.Errorf("fetching messages: %w", err)
		}
		r, err := newRenderer()
		if err != nil {
			return err
		}
		for _, m := range messages {
			fmt.Fprintln(out, color.New(color.Bold).Sprint(m.Role))
			fmt.Fprint(out, render(r, m.Content))
		}
	case "ask":
		return ask(ctx, c, args[1:], out)
	default:
		return errUsage
	}
	return nil
}

func ask(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	chatID := fs.String("chat", "", "continue an existing chat")
	providerName := fs.String("provider", "", "provider to ask")
	personaName := fs.String("persona", "Assistant", "persona from the server catalog")
	failover := fs.Bool("failover", true, "retry on the suggested provider")
	if err := fs.Parse(args); err != nil {
		return err
	}

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return errUsage
	}

	req := domain.ChatRequest{
		ChatID:   *chatID,
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: question}},
		Persona:  domain.Persona{Name: *personaName, Provider: *providerName},
	}

	if req.ChatID != "" {
		history, err := c.Messages(ctx, req.ChatID)
		if err != nil {
			return fmt.Errorf("fetching history: %w", err)
		}
		req.Messages = append(history, req.Messages...)
	}

	var printed int
	onUpdate := func(m domain.ChatMessage) {
		fmt.Fprint(out, m.Content[printed:])
		printed = len(m.Content)
	}

	stream := c.StreamChat
	if *failover {
		stream = c.StreamChatWithFailover
	}

	res, err := stream(ctx, req, onUpdate)
	if err != nil {
		return fmt.Errorf("asking: %w", err)
	}
	fmt.Fprintln(out)

	if res.Err != nil {
		return errors.New(res.Err.Message)
	}

	if r, err := newRenderer(); err == nil && res.Message.Content != "" {
		fmt.Fprint(out, color.HiBlackString("---\n"))
		fmt.Fprint(out, render(r, res.Message.Content))
	}
	fmt.Fprintln(out, color.HiBlackString("chat %s", res.ChatID))
	return nil
}

func printSession(out io.Writer, s *client.Session) {
	fmt.Fprintf(out, "user id: %s\n", color.CyanString(s.UserID))
	fmt.Fprintf(out, "export POLYCHAT_TOKEN=%s\n", s.Token)
}

func newRenderer() (*glamour.TermRenderer, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil, fmt.Errorf("creating markdown renderer: %w", err)
	}
	return r, nil
}

func render(r *glamour.TermRenderer, md string) string {
	s, err := r.Render(md)
	if err != nil {
		return md + "\n"
	}
	return s
}
