// voicecheck exercises the voice path end to end without the interactive
// shell: capture from the microphone (or read a file) and run it through the
// backend transcription endpoint.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/pravochat/cli/internal/config"
	voicemodel "github.com/pravochat/cli/internal/model/voice"
	"github.com/pravochat/cli/internal/service/api"
	"github.com/pravochat/cli/internal/service/voice"
	"github.com/pravochat/cli/internal/token"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	audioPath := flag.String("audio", "", "transcribe this file instead of recording")
	duration := flag.Duration("duration", 5*time.Second, "capture length when recording")
	format := flag.String("format", "", "audio format (default: config, or file extension)")
	timeout := flag.Duration("timeout", 45*time.Second, "request timeout")
	flag.Parse()

	store, err := token.NewStore(cfg.Token.Path)
	if err != nil {
		log.Fatalf("failed to open token store: %v", err)
	}
	if _, ok := store.Get(); !ok {
		log.Fatal("no stored session token; sign in with pravochat first")
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.API.CSRFToken, cfg.API.RequestTimeout)
	transcriber := voice.NewTranscriber(client, store)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var rec voicemodel.Recording
	if *audioPath != "" {
		rec = loadRecording(*audioPath, *format)
	} else {
		rec = capture(ctx, cfg, *duration)
	}

	log.Printf("uploading %d bytes (%s)", len(rec.Data), rec.Format)

	text, err := transcriber.Transcribe(ctx, rec)
	if err != nil {
		log.Fatalf("transcription failed: %v", err)
	}
	log.Printf("transcribed: %q", text)
}

func loadRecording(path, format string) voicemodel.Recording {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read audio file: %v", err)
	}

	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if format == "" {
			format = "wav"
		}
	}

	return voicemodel.Recording{Data: data, Format: format}
}

func capture(ctx context.Context, cfg *config.Config, duration time.Duration) voicemodel.Recording {
	source := voice.NewCommandSource(cfg.Voice.CaptureCommand, cfg.Voice.Format)
	recorder := voice.NewRecorder(source, cfg.Voice.Format)

	log.Printf("recording for %s...", duration)
	if err := recorder.Start(ctx); err != nil {
		log.Fatalf("failed to start capture: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(duration):
	}

	rec, err := recorder.Stop()
	if err != nil {
		log.Fatalf("failed to stop capture: %v", err)
	}
	if rec.Empty() {
		log.Fatal("capture produced no audio; check the capture command")
	}
	return rec
}
