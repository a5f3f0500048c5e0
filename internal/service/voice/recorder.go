package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	model "github.com/pravochat/cli/internal/model/voice"
)

var (
	// ErrAlreadyRecording means Start was called while a capture is active.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNotRecording means Stop was called with no capture active.
	ErrNotRecording = errors.New("not recording")
)

// Recorder is the strict start/stop toggle in front of an audio source.
type Recorder struct {
	mu        sync.Mutex
	source    Source
	format    string
	recording bool
	startedAt time.Time
}

// NewRecorder builds a recorder over the given source.
func NewRecorder(source Source, format string) *Recorder {
	return &Recorder{source: source, format: format}
}

// Recording reports whether a capture is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start begins a capture. Starting while one is active is an error; the
// active capture keeps running.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return ErrAlreadyRecording
	}
	if err := r.source.Start(ctx); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	r.recording = true
	r.startedAt = time.Now()
	return nil
}

// Stop ends the capture and returns the recording.
func (r *Recorder) Stop() (model.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return model.Recording{}, ErrNotRecording
	}

	data, err := r.source.Stop()
	r.recording = false
	if err != nil {
		return model.Recording{}, fmt.Errorf("stop capture: %w", err)
	}

	return model.Recording{
		Data:      data,
		Format:    r.format,
		StartedAt: r.startedAt,
		StoppedAt: time.Now(),
	}, nil
}
