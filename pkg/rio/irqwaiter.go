package rio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// IrqWaiter blocks on interrupt lines through a reserved IRQ context. A
// context serves one wait at a time; concurrent Wait calls on the same waiter
// are serialized. Use one waiter per goroutine to wait in parallel.
type IrqWaiter struct {
	session *Session
	ictx    IrqContext

	mu     sync.Mutex
	closed bool
}

// Wait blocks until any line in mask is asserted or timeout elapses. A timeout
// is reported through timedOut with an empty fired set, never as an error.
func (w *IrqWaiter) Wait(mask IrqSet, timeout time.Duration) (fired IrqSet, timedOut bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, false, fmt.Errorf("%w: irq waiter closed", ErrInvalidState)
	}

	s := w.session
	if err := s.acquire(); err != nil {
		return 0, false, err
	}
	defer s.release()

	start := time.Now()
	fired, timedOut, st := s.driver.WaitOnIrqs(s.ctx, s.handle, w.ictx, mask, timeout)
	err = s.check("wait "+mask.String(), st)
	if errors.Is(err, ErrTimeoutExceeded) {
		err = nil
		timedOut = true
	}
	s.trace(TraceEvent{Op: "irq.wait", Resource: mask.String(), Start: start, Err: err})
	if err != nil {
		return 0, false, err
	}
	if timedOut {
		return 0, true, nil
	}
	return fired & mask, false, nil
}

// Acknowledge clears the lines in mask on the target. Lines that are not
// acknowledged fire again on the next Wait.
func (w *IrqWaiter) Acknowledge(mask IrqSet) error {
	return w.session.AcknowledgeIrqs(mask)
}

// Close releases the IRQ context. It is idempotent.
func (w *IrqWaiter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	s := w.session
	if err := s.acquire(); err != nil {
		// The driver releases every context with the session handle.
		return nil
	}
	defer s.release()
	return s.check("unreserve irq context", s.driver.UnreserveIrqContext(s.handle, w.ictx))
}
