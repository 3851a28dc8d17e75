// ABOUTME: Terminal chat client: sign in, pick a contact, and chat with live delivery
// ABOUTME: Wires config, persisted session storage, REST client, push channel, and the conversation store

package main

import (
	"bufio"
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

	"github.com/arham771790/Chat-Frontend/internal/api"
	"github.com/arham771790/Chat-Frontend/internal/config"
	"github.com/arham771790/Chat-Frontend/internal/conversation"
	"github.com/arham771790/Chat-Frontend/internal/dedupe"
	"github.com/arham771790/Chat-Frontend/internal/logging"
	"github.com/arham771790/Chat-Frontend/internal/notify"
	"github.com/arham771790/Chat-Frontend/internal/push"
	"github.com/arham771790/Chat-Frontend/internal/session"
	"github.com/arham771790/Chat-Frontend/internal/store"
)

func main() {
	configPath := flag.String("config", config.Path(), "Path to config file (YAML or TOML)")
	server := flag.String("server", "", "REST API base URL, overrides the config file")
	pushURL := flag.String("push", "", "Push websocket URL, overrides the config file")
	dev := flag.Bool("dev", false, "Use the development backend defaults")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *server, *pushURL, *dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

// loadConfig reads the config file if it exists and applies flag overrides.
func loadConfig(path, server, pushURL string, dev bool) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("checking config file: %w", err)
	}

	if dev && server == "" {
		server = config.DefaultDevelopmentAPIURL
	}
	if server != "" {
		cfg.Server.APIURL = strings.TrimRight(server, "/")
		if pushURL == "" {
			derived, err := config.DerivePushURL(cfg.Server.APIURL)
			if err != nil {
				return nil, err
			}
			cfg.Server.PushURL = derived
		}
	}
	if pushURL != "" {
		cfg.Server.PushURL = pushURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer) error {
	storage, err := store.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening session storage: %w", err)
	}
	defer storage.Close()

	client, err := api.New(api.Options{
		BaseURL: cfg.Server.APIURL,
		Timeout: cfg.HTTP.Timeout,
		Tokens:  storage,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	channel, err := push.NewChannel(push.Options{
		URL:              cfg.Server.PushURL,
		HandshakeTimeout: cfg.Push.HandshakeTimeout,
		PingInterval:     cfg.Push.PingInterval,
		Logger:           logger,
	})
	if err != nil {
		return err
	}
	defer channel.Disconnect()

	notifier := notify.NewConsole(out)
	mgr := session.NewManager(session.Options{
		API:      client,
		Socket:   channel,
		Storage:  storage,
		Notifier: notifier,
		Logger:   logger,
	})
	defer mgr.Close()

	conv := conversation.NewStore(conversation.Options{
		API:      client,
		Events:   channel,
		Session:  mgr,
		Seen:     dedupe.New(cfg.Dedupe.TTL, cfg.Dedupe.MaxSize),
		Notifier: notifier,
		Logger:   logger,
	})
	defer conv.Close()

	a := newApp(out, mgr, conv, channel)

	fmt.Fprintf(out, "chat-tui connected to %s\n", cfg.Server.APIURL)
	if err := mgr.CheckAuth(ctx); err == nil {
		a.greet(ctx)
	} else {
		fmt.Fprintln(out, "Not signed in. Use /login <email> <password> or /signup <email> <password> <full name>.")
	}
	fmt.Fprintln(out, "Type /help for commands. Ctrl+C to quit.")
	fmt.Fprintln(out)

	go a.watch(ctx)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			readErr <- err
			return
		}
		readErr <- io.EOF
	}()

	for {
		a.prompt()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-lines:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if quit := a.handle(ctx, input); quit {
			return nil
		}
	}
}
