package markdown

import (
	"fmt"
	"sync"
	"time"

	"github.com/atotto/clipboard"
)

// revertDelay is how long the copy control shows its transient state before
// falling back to idle.
const revertDelay = 2 * time.Second

// CopyState is the visual state of a copy control.
type CopyState int

const (
	CopyIdle CopyState = iota
	CopySucceeded
	CopyFailed
)

func (s CopyState) String() string {
	switch s {
	case CopySucceeded:
		return "copied"
	case CopyFailed:
		return "copy failed"
	default:
		return "copy"
	}
}

// Copier writes code block text to the system clipboard and tracks the
// transient feedback state shown next to the control.
type Copier struct {
	mu     sync.Mutex
	state  CopyState
	timer  *time.Timer
	delay  time.Duration
	write  func(string) error
	notify func(CopyState)
}

// NewCopier builds a copier backed by the system clipboard.
func NewCopier() *Copier {
	return &Copier{
		delay: revertDelay,
		write: clipboard.WriteAll,
	}
}

// OnStateChange registers a callback fired whenever the visual state moves,
// including the delayed revert to idle.
func (c *Copier) OnStateChange(fn func(CopyState)) {
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

// Copy puts text on the clipboard and flips the control into a success or
// failure state. Either way the state reverts to idle after the delay; a copy
// issued during the window restarts it.
func (c *Copier) Copy(text string) error {
	err := c.write(text)

	c.mu.Lock()
	if err != nil {
		c.state = CopyFailed
	} else {
		c.state = CopySucceeded
	}
	fn := c.notify
	state := c.state

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.delay, c.revert)
	c.mu.Unlock()

	if fn != nil {
		fn(state)
	}
	if err != nil {
		return fmt.Errorf("clipboard write: %w", err)
	}
	return nil
}

// State returns the current visual state.
func (c *Copier) State() CopyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Copier) revert() {
	c.mu.Lock()
	c.state = CopyIdle
	fn := c.notify
	c.mu.Unlock()

	if fn != nil {
		fn(CopyIdle)
	}
}
