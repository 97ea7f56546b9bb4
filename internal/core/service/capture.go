package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ptdat4/stocktalk/internal/port"
)

type CaptureState string

const (
	CaptureIdle      CaptureState = "idle"
	CaptureListening CaptureState = "listening"
	CaptureCompleted CaptureState = "completed"
	CaptureErrored   CaptureState = "errored"
)

var (
	ErrCaptureBusy        = errors.New("a listening session is already active")
	ErrCaptureUnavailable = errors.New("speech recognition is not available")
)

// Capture runs single-shot listening sessions over a Recognizer. One
// session yields exactly one final transcript; a new session must be
// started per utterance. The recognizer is released on every exit path:
// final result, recognizer error, explicit stop, or context cancellation.
type Capture struct {
	rec port.Recognizer

	mu        sync.Mutex
	state     CaptureState
	sessionID string
	cancel    context.CancelFunc
}

func NewCapture(rec port.Recognizer) *Capture {
	return &Capture{rec: rec, state: CaptureIdle}
}

// Listen starts a session and blocks until its final transcript. Only one
// session may be active at a time; a completed or errored capture can be
// reused for the next utterance.
func (c *Capture) Listen(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.rec == nil {
		c.mu.Unlock()
		return "", ErrCaptureUnavailable
	}
	if c.state == CaptureListening {
		c.mu.Unlock()
		return "", ErrCaptureBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	c.state = CaptureListening
	c.sessionID = uuid.NewString()
	c.cancel = cancel
	c.mu.Unlock()

	transcript, err := c.rec.Listen(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel = nil
	cancel()
	c.rec.Stop()

	if err != nil {
		c.state = CaptureErrored
		return "", fmt.Errorf("recognition failed: %w", err)
	}
	c.state = CaptureCompleted
	return transcript, nil
}

// Stop aborts the active session, if any. The blocked Listen call returns
// with the recognizer's cancellation error.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Capture) State() CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID identifies the most recent session.
func (c *Capture) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}
