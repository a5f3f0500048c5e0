package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pravochat/cli/internal/config"
	"github.com/pravochat/cli/internal/markdown"
	"github.com/pravochat/cli/internal/service/api"
	"github.com/pravochat/cli/internal/service/auth"
	"github.com/pravochat/cli/internal/service/chat"
	"github.com/pravochat/cli/internal/service/voice"
	"github.com/pravochat/cli/internal/token"
)

const banner = `pravochat - type a message and press Enter, or :help for commands`

const helpText = `commands:
  :login <email> <password>            sign in
  :register <email> <first> <last> <password>
  :forgot <email>                      request a password reset
  :logout                              sign out and clear the transcript
  :attach <path> [message]             send a message with a file
  :record                              start voice capture
  :stop                                stop capture and transcribe
  :send                                send the transcribed draft
  :copy <n>                            copy code block n of the last answer
  :open                                show the transcript preview address
  :quit                                exit`

// app is the interactive shell tying the services together.
type app struct {
	cfg         *config.Config
	session     *chat.Session
	auth        *auth.Service
	renderer    *markdown.Renderer
	copier      *markdown.Copier
	recorder    *voice.Recorder
	transcriber *voice.Transcriber
	tokens      *token.Store

	mu      sync.Mutex
	socket  *chat.Socket
	draft   string
	printed int
}

func newApp(cfg *config.Config, session *chat.Session, authSvc *auth.Service, renderer *markdown.Renderer, recorder *voice.Recorder, transcriber *voice.Transcriber, tokens *token.Store) *app {
	a := &app{
		cfg:         cfg,
		session:     session,
		auth:        authSvc,
		renderer:    renderer,
		copier:      markdown.NewCopier(),
		recorder:    recorder,
		transcriber: transcriber,
		tokens:      tokens,
	}

	session.Transcript().OnChange(a.printNewEntries)
	session.OnThinking(func(content string) {
		fmt.Printf("\r[thinking] %s\n", content)
	})
	return a
}

// run reads lines until EOF, :quit, or interruption.
func (a *app) run(ctx context.Context) {
	fmt.Println(banner)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			a.shutdown()
			return
		case line, ok := <-lines:
			if !ok {
				a.shutdown()
				return
			}
			if !a.handleLine(ctx, line) {
				a.shutdown()
				return
			}
		}
	}
}

// handleLine dispatches one input line. It returns false to exit.
func (a *app) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}

	if !strings.HasPrefix(line, ":") {
		a.send(ctx, line, nil)
		return true
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case ":help":
		fmt.Println(helpText)
	case ":login":
		a.login(ctx, fields[1:])
	case ":register":
		a.register(ctx, fields[1:])
	case ":forgot":
		a.forgot(ctx, fields[1:])
	case ":logout":
		a.logout(ctx)
	case ":attach":
		a.attach(ctx, fields[1:])
	case ":record":
		a.record(ctx)
	case ":stop":
		a.stopRecording(ctx)
	case ":send":
		a.sendDraft(ctx)
	case ":copy":
		a.copyCodeBlock(fields[1:])
	case ":open":
		a.openPreview()
	case ":quit", ":exit":
		return false
	default:
		fmt.Printf("unknown command %s (:help for the list)\n", fields[0])
	}
	return true
}

func (a *app) send(ctx context.Context, text string, attachment *api.FilePart) {
	err := a.session.Send(ctx, text, attachment)
	switch {
	case errors.Is(err, chat.ErrNotAuthenticated):
		fmt.Println("not signed in; use :login first")
	case errors.Is(err, chat.ErrSessionExpired):
		fmt.Println("session expired; please sign in again")
	case err != nil:
		log.Printf("[chat] send failed: %v", err)
	}
}

func (a *app) login(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: :login <email> <password>")
		return
	}
	if err := a.auth.Login(ctx, args[0], args[1]); err != nil {
		fmt.Printf("login failed: %v\n", err)
		return
	}
	fmt.Println("signed in")
}

func (a *app) register(ctx context.Context, args []string) {
	if len(args) != 4 {
		fmt.Println("usage: :register <email> <first> <last> <password>")
		return
	}
	err := a.auth.Register(ctx, auth.RegisterRequest{
		Email:     args[0],
		FirstName: args[1],
		LastName:  args[2],
		Password:  args[3],
	})
	if err != nil {
		fmt.Printf("registration failed: %v\n", err)
		return
	}
	fmt.Println("registered; check your email to confirm the account")
}

func (a *app) forgot(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: :forgot <email>")
		return
	}
	if err := a.auth.ForgotPassword(ctx, args[0]); err != nil {
		fmt.Printf("request failed: %v\n", err)
		return
	}
	fmt.Println("reset instructions sent if the address is registered")
}

func (a *app) logout(ctx context.Context) {
	if err := a.auth.Logout(ctx); err != nil {
		log.Printf("[auth] logout: %v", err)
	}
	fmt.Println("signed out")
}

func (a *app) attach(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: :attach <path> [message]")
		return
	}

	f, err := os.Open(args[0])
	if err != nil {
		fmt.Printf("cannot open %s: %v\n", args[0], err)
		return
	}
	defer f.Close()

	message := strings.Join(args[1:], " ")
	a.send(ctx, message, &api.FilePart{
		FieldName: "file",
		Filename:  filepath.Base(args[0]),
		Reader:    f,
	})
}

func (a *app) record(ctx context.Context) {
	if err := a.recorder.Start(ctx); err != nil {
		if errors.Is(err, voice.ErrAlreadyRecording) {
			fmt.Println("already recording; :stop to finish")
			return
		}
		fmt.Printf("cannot start recording: %v\n", err)
		return
	}
	fmt.Println("recording... :stop to finish")
}

func (a *app) stopRecording(ctx context.Context) {
	rec, err := a.recorder.Stop()
	if err != nil {
		if errors.Is(err, voice.ErrNotRecording) {
			fmt.Println("not recording")
			return
		}
		fmt.Printf("recording failed: %v\n", err)
		return
	}

	text, err := a.transcriber.Transcribe(ctx, rec)
	if err != nil {
		fmt.Printf("transcription failed: %v\n", err)
		return
	}

	a.mu.Lock()
	a.draft = text
	a.mu.Unlock()
	fmt.Printf("transcribed: %s\n(:send to send it)\n", text)
}

func (a *app) sendDraft(ctx context.Context) {
	a.mu.Lock()
	draft := a.draft
	a.draft = ""
	a.mu.Unlock()

	if draft == "" {
		fmt.Println("nothing to send")
		return
	}
	a.send(ctx, draft, nil)
}

// copyCodeBlock copies block n of the most recent assistant message.
func (a *app) copyCodeBlock(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: :copy <n>")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		fmt.Println("usage: :copy <n>")
		return
	}

	entries := a.session.Transcript().Entries()
	var last *chat.Entry
	for i := len(entries) - 1; i >= 0; i-- {
		if !entries[i].Message.FromUser && entries[i].State != chat.EntryFailed {
			last = &entries[i]
			break
		}
	}
	if last == nil {
		fmt.Println("no assistant message yet")
		return
	}

	blocks := a.renderer.Render(last.Message.Content).CodeBlocks
	if n >= len(blocks) {
		fmt.Printf("message has %d code block(s)\n", len(blocks))
		return
	}

	if err := a.copier.Copy(blocks[n]); err != nil {
		fmt.Printf("copy failed: %v\n", err)
		return
	}
	fmt.Println(a.copier.State().String())
}

func (a *app) openPreview() {
	if !a.cfg.Preview.Enabled {
		fmt.Println("preview disabled; set PRAVOCHAT_PREVIEW_ENABLED=true and restart")
		return
	}
	fmt.Printf("transcript preview: http://%s/\n", a.cfg.Preview.Addr)
}

// printNewEntries prints entries appended since the last call.
func (a *app) printNewEntries() {
	entries := a.session.Transcript().Entries()

	a.mu.Lock()
	start := a.printed
	if start > len(entries) {
		// Transcript was reset.
		start = 0
	}
	a.printed = len(entries)
	a.mu.Unlock()

	for _, entry := range entries[start:] {
		switch {
		case entry.Message.FromUser:
			fmt.Printf("you> %s\n", entry.Message.Content)
		case entry.State == chat.EntryFailed:
			fmt.Printf("error> %s\n", entry.Message.Content)
		default:
			fmt.Printf("assistant> %s\n", entry.Message.Content)
			if entry.Message.Reasoning != "" {
				fmt.Printf("  (reasoning available; see preview)\n")
			}
		}
	}
}

// handleAuthChange reacts to token store transitions: sign-in brings the
// socket up, sign-out tears it down and wipes the session.
func (a *app) handleAuthChange(ctx context.Context, authenticated bool) {
	if authenticated {
		a.connectSocket(ctx)
		return
	}
	a.closeSocket()
	a.session.Reset()
}

// connectSocket dials the streaming transport when enabled.
func (a *app) connectSocket(ctx context.Context) {
	if !a.cfg.Socket.Enabled {
		return
	}

	a.mu.Lock()
	if a.socket != nil {
		a.mu.Unlock()
		return
	}
	sock := chat.NewSocket(a.cfg.Socket, a.tokens, a.session.Apply)
	a.socket = sock
	a.mu.Unlock()

	if err := sock.Connect(ctx); err != nil {
		log.Printf("[ws] connect failed: %v", err)
	}
}

// closeSocket shuts the socket down; a pending reconnect dies with it.
func (a *app) closeSocket() {
	a.mu.Lock()
	sock := a.socket
	a.socket = nil
	a.mu.Unlock()

	if sock != nil {
		if err := sock.Close(); err != nil {
			log.Printf("[ws] close: %v", err)
		}
	}
}

func (a *app) shutdown() {
	a.closeSocket()
	if a.recorder.Recording() {
		if _, err := a.recorder.Stop(); err != nil {
			log.Printf("[voice] stop on shutdown: %v", err)
		}
	}
	fmt.Println("bye")
}
