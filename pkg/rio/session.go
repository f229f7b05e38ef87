package rio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/OpenTraceLab/OpenTraceRIO/internal/logging"
	"github.com/OpenTraceLab/OpenTraceRIO/pkg/codec"
)

// Session owns the connection to one bitfile loaded on one target. It is safe
// for concurrent use; the driver keeps individual transfers atomic but no
// ordering is guaranteed between calls issued concurrently.
type Session struct {
	id      string
	driver  Driver
	handle  Handle
	cfg     Config
	log     *slog.Logger
	tracer  Tracer
	catalog *Catalog

	// ctx is cancelled by Close to abandon blocking FIFO and IRQ waits.
	ctx    context.Context
	cancel context.CancelFunc

	// Operations hold mu for reading while they use the handle; Close takes
	// it for writing so the handle is never released mid-transfer.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// Open loads cfg.Bitfile on cfg.Target through driver and returns a session
// bound to it.
func Open(driver Driver, cfg Config) (*Session, error) {
	if driver == nil {
		return nil, fmt.Errorf("rio: open: nil driver")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id := xid.New().String()
	log := cfg.Logger
	if log == nil {
		log = logging.For(logging.ComponentSession)
	}
	log = log.With("session", id, "target", cfg.Target)

	h, st := driver.Open(cfg.Bitfile, cfg.Signature, cfg.Target, cfg.Options.openAttribute())
	if err := st.Err(); err != nil {
		log.Debug("open failed", "bitfile", cfg.Bitfile, "status", int32(st))
		return nil, fmt.Errorf("rio: open %s on %s: %w", cfg.Bitfile, cfg.Target, err)
	}
	if st.IsWarning() {
		log.Warn("open", "bitfile", cfg.Bitfile, "status", int32(st), "warning", st.Description())
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:      id,
		driver:  driver,
		handle:  h,
		cfg:     cfg,
		log:     log,
		tracer:  cfg.Tracer,
		catalog: cfg.Catalog,
		ctx:     ctx,
		cancel:  cancel,
	}
	log.Info("session opened", "bitfile", cfg.Bitfile, "signature", cfg.Signature)
	s.trace(TraceEvent{Op: "open", Start: time.Now()})
	return s, nil
}

// ID returns the unique identifier assigned when the session opened.
func (s *Session) ID() string { return s.id }

// Signature returns the bitfile signature the session was opened with.
func (s *Session) Signature() string { return s.cfg.Signature }

// Target returns the target resource name.
func (s *Session) Target() string { return s.cfg.Target }

// Bitfile returns the bitfile path the session was opened with.
func (s *Session) Bitfile() string { return s.cfg.Bitfile }

// Catalog returns the resource catalog supplied at open, or nil.
func (s *Session) Catalog() *Catalog { return s.catalog }

// Close releases the connection. It cancels blocking FIFO and IRQ waits,
// waits for running operations to return and then closes the driver handle.
// Close is idempotent and always returns nil; driver failures are logged.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()

		s.mu.Lock()
		s.closed = true
		start := time.Now()
		st := s.driver.Close(s.handle, s.cfg.Options.closeAttribute())
		s.mu.Unlock()

		if st.IsError() {
			s.log.Error("close", "status", int32(st), "error", st.Description())
		} else {
			s.log.Info("session closed")
		}
		s.trace(TraceEvent{Op: "close", Start: start, Duration: time.Since(start)})
	})
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// acquire pins the handle for one operation. The caller must call s.release
// when acquire returns nil.
func (s *Session) acquire() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) release() { s.mu.RUnlock() }

// check converts a driver status into an error, logging warnings.
func (s *Session) check(op string, st Status) error {
	switch {
	case st.IsWarning():
		s.log.Warn(op, "status", int32(st), "warning", st.Description())
		return nil
	case !st.IsError():
		return nil
	case st == StatusTransferAborted && s.ctx.Err() != nil:
		return fmt.Errorf("rio: %s: %w", op, ErrSessionClosed)
	}
	return fmt.Errorf("rio: %s: %w", op, st)
}

func (s *Session) trace(ev TraceEvent) {
	if s.tracer == nil {
		return
	}
	ev.Session = s.id
	if ev.Duration == 0 && !ev.Start.IsZero() {
		ev.Duration = time.Since(ev.Start)
	}
	s.tracer.Trace(ev)
}

func (s *Session) checkRegister(res *Resource) error {
	if res == nil {
		return fmt.Errorf("%w: nil resource", ErrResourceNotFound)
	}
	if res.kind != KindRegister {
		return fmt.Errorf("%w: %s is a fifo, not a register", ErrResourceNotFound, res.name)
	}
	if res.desc == nil {
		return fmt.Errorf("%w: %s has no type", ErrShapeMismatch, res.name)
	}
	if s.catalog == nil {
		return nil
	}
	known, ok := s.catalog.ByAddress(res.address)
	if !ok {
		return fmt.Errorf("%w: no register at 0x%X in %s", ErrResourceNotFound, res.address, s.catalog.Name)
	}
	if known.desc.PackedSize() != res.desc.PackedSize() {
		return fmt.Errorf("%w: register 0x%X is %d bytes in %s, not %d",
			ErrResourceNotFound, res.address, known.desc.PackedSize(), s.catalog.Name, res.desc.PackedSize())
	}
	return nil
}

// Read transfers the register res and decodes it.
func (s *Session) Read(res *Resource) (codec.Value, error) {
	if err := s.acquire(); err != nil {
		return codec.Value{}, err
	}
	defer s.release()
	if err := s.checkRegister(res); err != nil {
		return codec.Value{}, err
	}

	buf := make([]byte, res.desc.PackedSize())
	start := time.Now()
	err := s.check("read "+res.name, s.driver.ReadRegister(s.handle, res.address, buf))
	s.trace(TraceEvent{Op: "read", Resource: res.name, Address: res.address, Bytes: len(buf), Start: start, Err: err})
	if err != nil {
		return codec.Value{}, err
	}
	return codec.Unpack(buf, res.desc)
}

// Write encodes v and transfers it to the control res.
func (s *Session) Write(res *Resource, v codec.Value) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	if err := s.checkRegister(res); err != nil {
		return err
	}
	if res.direction == Indicator {
		return fmt.Errorf("%w: %s", ErrReadOnlyResource, res.name)
	}

	buf, err := codec.Pack(res.desc, v)
	if err != nil {
		return fmt.Errorf("rio: write %s: %w", res.name, err)
	}
	start := time.Now()
	err = s.check("write "+res.name, s.driver.WriteRegister(s.handle, res.address, buf))
	s.trace(TraceEvent{Op: "write", Resource: res.name, Address: res.address, Bytes: len(buf), Start: start, Err: err})
	return err
}

// ReadRaw transfers n raw bytes from the register at addr without decoding.
func (s *Session) ReadRaw(addr uint32, n int) ([]byte, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	buf := make([]byte, n)
	if err := s.check(fmt.Sprintf("read 0x%X", addr), s.driver.ReadRegister(s.handle, addr, buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Session) control(op string, call func(Handle) Status) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	start := time.Now()
	err := s.check(op, call(s.handle))
	s.trace(TraceEvent{Op: op, Start: start, Err: err})
	if err == nil {
		s.log.Debug(op)
	}
	return err
}

// Run starts the loaded image. Running an image that is already running is
// reported as a warning, not an error.
func (s *Session) Run() error { return s.control("run", s.driver.Run) }

// Abort stops the image without resetting it.
func (s *Session) Abort() error { return s.control("abort", s.driver.Abort) }

// Reset returns the image to its default state and stops it.
func (s *Session) Reset() error { return s.control("reset", s.driver.Reset) }

// Download reloads the bitfile onto the target.
func (s *Session) Download() error { return s.control("download", s.driver.Download) }

// AcknowledgeIrqs clears the given interrupt lines on the target.
func (s *Session) AcknowledgeIrqs(irqs IrqSet) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	start := time.Now()
	err := s.check("acknowledge "+irqs.String(), s.driver.AcknowledgeIrqs(s.handle, irqs))
	s.trace(TraceEvent{Op: "irq.ack", Resource: irqs.String(), Start: start, Err: err})
	return err
}

// Fifo binds the FIFO res to the session.
func (s *Session) Fifo(res *Resource) (*FifoChannel, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	if res == nil || res.kind != KindFifo {
		return nil, fmt.Errorf("%w: not a fifo", ErrResourceNotFound)
	}
	if res.desc == nil {
		return nil, fmt.Errorf("%w: fifo %s has no type", ErrShapeMismatch, res.name)
	}
	if s.catalog != nil {
		if _, ok := s.catalog.Fifo(res.address); !ok {
			return nil, fmt.Errorf("%w: no fifo %d in %s", ErrResourceNotFound, res.address, s.catalog.Name)
		}
	}
	return &FifoChannel{
		session:  s,
		res:      res,
		elemSize: res.desc.PackedSize(),
		log:      s.log.With("fifo", res.name),
	}, nil
}

// IrqWaiter reserves an interrupt wait context on the session.
func (s *Session) IrqWaiter() (*IrqWaiter, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	ictx, st := s.driver.ReserveIrqContext(s.handle)
	if err := s.check("reserve irq context", st); err != nil {
		return nil, err
	}
	return &IrqWaiter{session: s, ictx: ictx}, nil
}
