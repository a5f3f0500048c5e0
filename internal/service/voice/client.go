package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	model "github.com/pravochat/cli/internal/model/voice"
	"github.com/pravochat/cli/internal/service/api"
	"github.com/pravochat/cli/internal/token"
)

var (
	// ErrEmptyRecording means the capture produced no audio to transcribe.
	ErrEmptyRecording = errors.New("empty recording")
	// ErrNoSpeech means the backend recognized nothing in the audio.
	ErrNoSpeech = errors.New("no speech recognized")
	// ErrNotAuthenticated means transcription was attempted without a token.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Transcriber uploads finished recordings for speech-to-text.
type Transcriber struct {
	client *api.Client
	tokens *token.Store
}

// NewTranscriber builds the transcription client.
func NewTranscriber(client *api.Client, tokens *token.Store) *Transcriber {
	return &Transcriber{client: client, tokens: tokens}
}

// Transcribe uploads the recording and returns the recognized text. An empty
// transcription result is an error so the caller never inserts blank text
// into the input line.
func (t *Transcriber) Transcribe(ctx context.Context, rec model.Recording) (string, error) {
	if rec.Empty() {
		return "", ErrEmptyRecording
	}

	tok, ok := t.tokens.Get()
	if !ok {
		return "", ErrNotAuthenticated
	}

	body, contentType, err := api.MultipartBody(nil, &api.FilePart{
		FieldName: "file",
		Filename:  "recording." + rec.Format,
		Reader:    bytes.NewReader(rec.Data),
	})
	if err != nil {
		return "", err
	}

	req, err := t.client.NewRequest(ctx, http.MethodPost, "/api/voice/transcribe", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	api.WithBearer(req, tok)
	t.client.WithCSRF(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload recording: %w", err)
	}

	var result model.TranscriptionResponse
	if err := api.DecodeJSON(resp, &result); err != nil {
		return "", err
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
