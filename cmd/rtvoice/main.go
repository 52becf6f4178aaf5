package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ssd39/adbuddy-voice/internal/config"
	"github.com/ssd39/adbuddy-voice/internal/openai"
	"github.com/ssd39/adbuddy-voice/internal/realtime"
	"github.com/ssd39/adbuddy-voice/internal/rtc"
	"github.com/ssd39/adbuddy-voice/internal/voice"
)

type options struct {
	backendURL string
	token      string
	voice      string
	prompt     string
	greeting   string
	campaign   bool
	verbose    bool
}

func main() {
	_ = godotenv.Load()

	opts := parseFlags()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "rtvoice: config error: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts, cfg, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "rtvoice: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.backendURL, "backend-url", os.Getenv("ADBUDDY_BACKEND_URL"), "AdBuddy backend that issues realtime credentials; empty mints directly with OPENAI_API_KEY")
	flag.StringVar(&opts.token, "token", os.Getenv("ADBUDDY_TOKEN"), "bearer token for the backend credential endpoint")
	flag.StringVar(&opts.voice, "voice", "", "realtime voice (default alloy, verse with -campaign)")
	flag.StringVar(&opts.prompt, "prompt", "", "system prompt")
	flag.StringVar(&opts.greeting, "greeting", "", "initial greeting instructions")
	flag.BoolVar(&opts.campaign, "campaign", false, "use the AdBuddy campaign specialist prompt and greeting")
	flag.BoolVar(&opts.verbose, "verbose", false, "log realtime diagnostics to stderr")
	flag.Parse()
	return opts
}

func run(opts options, cfg config.Config, in io.Reader, out io.Writer) error {
	credentials, err := credentialSource(opts, cfg)
	if err != nil {
		return err
	}

	logger := log.New(io.Discard, "", 0)
	if opts.verbose {
		logger = log.New(os.Stderr, "rtvoice: ", log.LstdFlags)
	}

	sessionCfg := realtime.Config{
		SystemPrompt:    opts.prompt,
		Voice:           opts.voice,
		InitialGreeting: opts.greeting,
	}
	if opts.campaign {
		if sessionCfg.SystemPrompt == "" {
			sessionCfg.SystemPrompt = voice.CampaignSpecialistPrompt
		}
		if sessionCfg.InitialGreeting == "" {
			sessionCfg.InitialGreeting = voice.CampaignSpecialistGreeting
		}
		if sessionCfg.Voice == "" {
			sessionCfg.Voice = voice.CampaignSpecialistVoice
		}
	}

	printer := &transcriptPrinter{out: out}
	ready := make(chan struct{})
	var readyOnce sync.Once
	sessionCfg.Callbacks = realtime.Callbacks{
		OnConnecting:     func() { printer.status("connecting") },
		OnConnected:      func() { printer.status("connected") },
		OnSessionReady:   func() { readyOnce.Do(func() { close(ready) }); printer.status("session ready") },
		OnTranscript:     func(text string, final bool) { printer.line("assistant", text, final) },
		OnUserTranscript: func(text string, final bool) { printer.line("you", text, final) },
		OnError:          func(err error) { printer.status("error: " + err.Error()) },
		OnDisconnect:     func() { printer.status("disconnected") },
	}

	peerCfg := rtc.PeerConfig{STUNURL: cfg.STUNURL, GatherTimeout: cfg.ICEGatherTimeout}
	rs := realtime.New(sessionCfg, realtime.Deps{
		NewTransport: func(obs rtc.Observer) rtc.Transport {
			return rtc.NewPeerTransport(peerCfg, obs)
		},
		Negotiator: openai.NewNegotiator(openai.NegotiatorConfig{
			RealtimeURL: cfg.OpenAIRealtimeURL,
			Model:       cfg.OpenAIRealtimeModel,
			Credentials: credentials,
		}),
		Logger: logger,
	})
	defer rs.Disconnect()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 45*time.Second)
	err = rs.Connect(connectCtx)
	connectCancel()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-rs.Done():
			return nil
		case raw, ok := <-lines:
			if !ok {
				return nil
			}
			cmd, text := parseCommand(raw)
			switch cmd {
			case commandQuit:
				return nil
			case commandMute:
				rs.Mute()
				printer.status("muted")
			case commandUnmute:
				rs.Unmute()
				printer.status("unmuted")
			case commandText:
				select {
				case <-ready:
					rs.SendText(text)
				default:
					printer.status("session not ready yet, try again")
				}
			case commandUnknown:
				printer.status("unknown command " + strings.Fields(raw)[0])
			}
		}
	}
}

func credentialSource(opts options, cfg config.Config) (openai.CredentialSource, error) {
	if strings.TrimSpace(opts.backendURL) != "" {
		return openai.NewCredentialClient(opts.backendURL, opts.token), nil
	}
	minter := openai.NewSessionMinter(openai.MinterConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIRealtimeModel,
		MaxRetries: cfg.MintMaxRetries,
	})
	if !minter.Configured() {
		return nil, fmt.Errorf("set -backend-url or OPENAI_API_KEY")
	}
	return minter, nil
}

type command int

const (
	commandNone command = iota
	commandText
	commandMute
	commandUnmute
	commandQuit
	commandUnknown
)

func parseCommand(line string) (command, string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return commandNone, ""
	}
	if !strings.HasPrefix(line, "/") {
		return commandText, line
	}
	switch strings.ToLower(strings.Fields(line)[0]) {
	case "/quit", "/exit":
		return commandQuit, ""
	case "/mute":
		return commandMute, ""
	case "/unmute":
		return commandUnmute, ""
	case "/say":
		text := strings.TrimSpace(strings.TrimPrefix(line, strings.Fields(line)[0]))
		if text == "" {
			return commandNone, ""
		}
		return commandText, text
	default:
		return commandUnknown, ""
	}
}

// transcriptPrinter renders partial transcripts inline and finishes the line
// on the final text.
type transcriptPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	partial string
}

func (p *transcriptPrinter) line(who, text string, final bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !final {
		if p.partial == "" {
			fmt.Fprintf(p.out, "%s: ", who)
		}
		p.partial += text
		fmt.Fprint(p.out, text)
		return
	}
	if p.partial != "" {
		fmt.Fprint(p.out, "\r\033[K")
		p.partial = ""
	}
	fmt.Fprintf(p.out, "%s: %s\n", who, text)
}

func (p *transcriptPrinter) status(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.partial != "" {
		fmt.Fprintln(p.out)
		p.partial = ""
	}
	fmt.Fprintf(p.out, "[%s]\n", msg)
}
