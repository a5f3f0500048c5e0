package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pravochat/cli/internal/config"
	"github.com/pravochat/cli/internal/handler"
	"github.com/pravochat/cli/internal/markdown"
	"github.com/pravochat/cli/internal/service/api"
	"github.com/pravochat/cli/internal/service/auth"
	"github.com/pravochat/cli/internal/service/chat"
	"github.com/pravochat/cli/internal/service/voice"
	"github.com/pravochat/cli/internal/token"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store, err := token.NewStore(cfg.Token.Path)
	if err != nil {
		log.Fatalf("failed to open token store: %v", err)
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.API.CSRFToken, cfg.API.RequestTimeout)
	authSvc := auth.NewService(client, store)
	session := chat.NewSession(client, store)
	renderer := markdown.New("github")

	source := voice.NewCommandSource(cfg.Voice.CaptureCommand, cfg.Voice.Format)
	recorder := voice.NewRecorder(source, cfg.Voice.Format)
	transcriber := voice.NewTranscriber(client, store)

	app := newApp(cfg, session, authSvc, renderer, recorder, transcriber, store)
	store.OnChange(func(authenticated bool) { app.handleAuthChange(ctx, authenticated) })

	if cfg.Preview.Enabled {
		router := handler.NewRouter(session, renderer)
		go startPreviewServer(ctx, cfg.Preview, router)
		log.Printf("transcript preview on http://%s/", cfg.Preview.Addr)
	}

	// Restore a previous session if the stored token still works.
	if ok, err := authSvc.Probe(ctx); err != nil {
		log.Printf("warning: session probe failed: %v", err)
	} else if ok {
		log.Println("session restored")
		app.connectSocket(ctx)
	}

	app.run(ctx)
}

func startPreviewServer(ctx context.Context, previewCfg config.PreviewConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              previewCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if err := runServer(ctx, srv); err != nil {
		log.Printf("preview server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
