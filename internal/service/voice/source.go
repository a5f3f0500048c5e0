// Package voice captures microphone audio and ships it to the backend
// transcription endpoint. Recording is a strict toggle: one active capture
// at a time, started and stopped explicitly.
package voice

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
)

// Source supplies captured audio. Start begins capture; Stop ends it and
// returns everything captured since Start.
type Source interface {
	Start(ctx context.Context) error
	Stop() ([]byte, error)
}

// CommandSource captures audio by running an external recorder process that
// writes the encoded stream to stdout.
type CommandSource struct {
	command []string

	mu     sync.Mutex
	cancel context.CancelFunc
	cmd    *exec.Cmd
	buf    *bytes.Buffer
}

// NewCommandSource builds a source around the given command line. An empty
// command selects the platform default recorder.
func NewCommandSource(command []string, format string) *CommandSource {
	if len(command) == 0 {
		command = defaultCaptureCommand(format)
	}
	return &CommandSource{command: command}
}

// defaultCaptureCommand is an ALSA capture writing the stream to stdout.
func defaultCaptureCommand(format string) []string {
	return []string{"arecord", "-q", "-f", "cd", "-t", format, "-"}
}

// Start launches the capture process.
func (s *CommandSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return fmt.Errorf("capture already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, s.command[0], s.command[1:]...)

	buf := &bytes.Buffer{}
	cmd.Stdout = buf

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start capture command %q: %w", s.command[0], err)
	}

	s.cancel = cancel
	s.cmd = cmd
	s.buf = buf
	return nil
}

// Stop terminates the capture process and returns the captured bytes.
func (s *CommandSource) Stop() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return nil, fmt.Errorf("capture not running")
	}

	s.cancel()
	// The process dies on context cancellation; Wait reports that as an
	// error, which is expected here.
	s.cmd.Wait()

	data := s.buf.Bytes()
	s.cancel = nil
	s.cmd = nil
	s.buf = nil
	return data, nil
}
