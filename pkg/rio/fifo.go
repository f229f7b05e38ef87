package rio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/codec"
)

// FifoChannel streams elements of one FIFO resource. It is bound to the
// session that created it and fails with ErrSessionClosed once that session
// closes.
type FifoChannel struct {
	session  *Session
	res      *Resource
	elemSize int
	log      *slog.Logger

	mu          sync.Mutex
	depth       int
	transferred bool
	stopped     bool
}

// Resource returns the FIFO resource.
func (f *FifoChannel) Resource() *Resource { return f.res }

// Depth returns the host buffer depth set by Configure, or zero when the
// driver default is in use.
func (f *FifoChannel) Depth() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.depth
}

// Configure sets the host buffer depth in elements and returns the depth the
// driver actually allocated. It must be called before the first transfer.
func (f *FifoChannel) Configure(depth int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return 0, fmt.Errorf("%w: fifo %s is stopped", ErrInvalidState, f.res.name)
	}
	if f.transferred {
		return 0, fmt.Errorf("%w: fifo %s already transferred data", ErrInvalidState, f.res.name)
	}
	if depth <= 0 {
		return 0, fmt.Errorf("%w: fifo %s depth %d", ErrInvalidState, f.res.name, depth)
	}

	s := f.session
	if err := s.acquire(); err != nil {
		return 0, err
	}
	defer s.release()
	actual, st := s.driver.ConfigureFifo(s.handle, f.res.address, depth)
	if err := s.check("configure "+f.res.name, st); err != nil {
		return 0, err
	}
	f.depth = actual
	f.log.Debug("configured", "requested", depth, "actual", actual)
	return actual, nil
}

// Stop releases the host buffers. Transfers fail with ErrInvalidState until
// Start is called.
func (f *FifoChannel) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return nil
	}
	s := f.session
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	if err := s.check("stop "+f.res.name, s.driver.StopFifo(s.handle, f.res.address)); err != nil {
		return err
	}
	f.stopped = true
	return nil
}

// Start restarts a stopped FIFO with fresh host buffers. Starting a FIFO that
// has not been stopped is a no-op for the driver.
func (f *FifoChannel) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.session
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	if err := s.check("start "+f.res.name, s.driver.StartFifo(s.handle, f.res.address)); err != nil {
		return err
	}
	if f.stopped {
		f.stopped = false
		f.transferred = false
	}
	return nil
}

func (f *FifoChannel) ready() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return fmt.Errorf("%w: fifo %s is stopped", ErrInvalidState, f.res.name)
	}
	return nil
}

func (f *FifoChannel) markTransferred() {
	f.mu.Lock()
	f.transferred = true
	f.mu.Unlock()
}

// Write enqueues elements, waiting up to timeout for space. It returns how
// many elements were not accepted; a partial transfer is not an error.
// ErrTimeoutExceeded is returned only when no element could be written.
func (f *FifoChannel) Write(elements []codec.Value, timeout time.Duration) (int, error) {
	if f.res.direction == Indicator {
		return len(elements), fmt.Errorf("%w: fifo %s is target-to-host", ErrReadOnlyResource, f.res.name)
	}
	if err := f.ready(); err != nil {
		return len(elements), err
	}

	buf := make([]byte, len(elements)*f.elemSize)
	for i, v := range elements {
		if err := codec.PackInto(buf[i*f.elemSize:(i+1)*f.elemSize], f.res.desc, v); err != nil {
			return len(elements), fmt.Errorf("rio: fifo %s element %d: %w", f.res.name, i, err)
		}
	}

	s := f.session
	if err := s.acquire(); err != nil {
		return len(elements), err
	}
	defer s.release()

	start := time.Now()
	n, _, st := s.driver.WriteFifo(s.ctx, s.handle, f.res.address, buf, f.elemSize, timeout)
	remaining := len(elements) - n
	if n > 0 {
		f.markTransferred()
	}
	err := f.transferError("write", st, n, len(elements))
	s.trace(TraceEvent{
		Op: "fifo.write", Resource: f.res.name, Address: f.res.address,
		Bytes: n * f.elemSize, Elements: n, Start: start, Err: err,
	})
	if err != nil {
		return remaining, err
	}
	if remaining > 0 {
		f.log.Debug("partial write", "accepted", n, "remaining", remaining)
	}
	return remaining, nil
}

// Read dequeues up to max elements, waiting up to timeout for them to arrive.
// It returns the elements read and the number still waiting on the target.
// ErrTimeoutExceeded is returned only when no element could be read.
func (f *FifoChannel) Read(max int, timeout time.Duration) ([]codec.Value, int, error) {
	if f.res.direction == Control {
		return nil, 0, fmt.Errorf("%w: fifo %s is host-to-target", ErrInvalidState, f.res.name)
	}
	if max < 0 {
		return nil, 0, fmt.Errorf("rio: fifo %s: negative element count %d", f.res.name, max)
	}
	if err := f.ready(); err != nil {
		return nil, 0, err
	}

	s := f.session
	if err := s.acquire(); err != nil {
		return nil, 0, err
	}
	defer s.release()

	buf := make([]byte, max*f.elemSize)
	start := time.Now()
	n, remaining, st := s.driver.ReadFifo(s.ctx, s.handle, f.res.address, buf, f.elemSize, timeout)
	if n > 0 {
		f.markTransferred()
	}
	err := f.transferError("read", st, n, max)
	s.trace(TraceEvent{
		Op: "fifo.read", Resource: f.res.name, Address: f.res.address,
		Bytes: n * f.elemSize, Elements: n, Start: start, Err: err,
	})
	if err != nil {
		return nil, remaining, err
	}

	out := make([]codec.Value, n)
	for i := range out {
		v, err := codec.Unpack(buf[i*f.elemSize:(i+1)*f.elemSize], f.res.desc)
		if err != nil {
			return nil, remaining, fmt.Errorf("rio: fifo %s element %d: %w", f.res.name, i, err)
		}
		out[i] = v
	}
	return out, remaining, nil
}

// transferError keeps a timeout with progress as a successful partial
// transfer.
func (f *FifoChannel) transferError(op string, st Status, moved, requested int) error {
	err := f.session.check(op+" "+f.res.name, st)
	if err == nil || !errors.Is(err, ErrTimeoutExceeded) {
		return err
	}
	if moved > 0 || requested == 0 {
		return nil
	}
	return err
}

// ElementsAvailable reports how many elements the target has queued for a
// target-to-host FIFO without reading any.
func (f *FifoChannel) ElementsAvailable() (int, error) {
	_, remaining, err := f.Read(0, 0)
	return remaining, err
}

// SpaceAvailable reports how many elements a host-to-target FIFO can accept
// without blocking.
func (f *FifoChannel) SpaceAvailable() (int, error) {
	if f.res.direction == Indicator {
		return 0, fmt.Errorf("%w: fifo %s is target-to-host", ErrReadOnlyResource, f.res.name)
	}
	if err := f.ready(); err != nil {
		return 0, err
	}
	s := f.session
	if err := s.acquire(); err != nil {
		return 0, err
	}
	defer s.release()
	_, space, st := s.driver.WriteFifo(s.ctx, s.handle, f.res.address, nil, f.elemSize, 0)
	if err := s.check("space "+f.res.name, st); err != nil {
		return 0, err
	}
	return space, nil
}

// FifoRegion is a block of FIFO elements held by the host. The target cannot
// use held elements, so every region must be released.
//
// For a target-to-host FIFO Elements holds the acquired data and Release
// removes it from the FIFO. For a host-to-target FIFO Elements starts zeroed;
// the caller fills it in place and Release commits it.
type FifoRegion struct {
	Elements []codec.Value

	fifo  *FifoChannel
	count int

	mu       sync.Mutex
	released bool
}

// Released reports whether Release has succeeded.
func (r *FifoRegion) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// Release hands the elements back to the FIFO. A region can be released
// once; later calls fail with ErrInvalidState.
func (r *FifoRegion) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.fifo
	if r.released {
		return fmt.Errorf("%w: fifo %s region already released", ErrInvalidState, f.res.name)
	}

	var data []byte
	if f.res.direction == Control {
		if len(r.Elements) != r.count {
			return fmt.Errorf("rio: fifo %s: %w: region holds %d elements, got %d",
				f.res.name, ErrShapeMismatch, r.count, len(r.Elements))
		}
		data = make([]byte, r.count*f.elemSize)
		for i, v := range r.Elements {
			if err := codec.PackInto(data[i*f.elemSize:(i+1)*f.elemSize], f.res.desc, v); err != nil {
				return fmt.Errorf("rio: fifo %s element %d: %w", f.res.name, i, err)
			}
		}
	}

	if r.count > 0 {
		s := f.session
		if err := s.acquire(); err != nil {
			return err
		}
		defer s.release()
		start := time.Now()
		err := s.check("release "+f.res.name, s.driver.ReleaseFifoElements(s.handle, f.res.address, r.count, data))
		s.trace(TraceEvent{
			Op: "fifo.release", Resource: f.res.name, Address: f.res.address,
			Bytes: len(data), Elements: r.count, Start: start, Err: err,
		})
		if err != nil {
			return err
		}
		f.markTransferred()
	}
	r.released = true
	return nil
}

// AcquireRead waits up to timeout for exactly n elements and holds them in a
// region without removing them from the FIFO. It returns the region and the
// number of elements queued behind it. While the region is held Configure,
// Stop and the copying transfers fail with ErrInvalidState.
func (f *FifoChannel) AcquireRead(n int, timeout time.Duration) (*FifoRegion, int, error) {
	if f.res.direction == Control {
		return nil, 0, fmt.Errorf("%w: fifo %s is host-to-target", ErrInvalidState, f.res.name)
	}
	if n < 0 {
		return nil, 0, fmt.Errorf("rio: fifo %s: negative element count %d", f.res.name, n)
	}
	if err := f.ready(); err != nil {
		return nil, 0, err
	}

	s := f.session
	if err := s.acquire(); err != nil {
		return nil, 0, err
	}
	defer s.release()

	buf := make([]byte, n*f.elemSize)
	start := time.Now()
	remaining, st := s.driver.AcquireFifoRead(s.ctx, s.handle, f.res.address, buf, f.elemSize, timeout)
	err := s.check("acquire "+f.res.name, st)
	s.trace(TraceEvent{
		Op: "fifo.acquire", Resource: f.res.name, Address: f.res.address,
		Bytes: len(buf), Elements: n, Start: start, Err: err,
	})
	if err != nil {
		return nil, remaining, err
	}

	region := &FifoRegion{Elements: make([]codec.Value, n), fifo: f, count: n}
	for i := range region.Elements {
		v, err := codec.Unpack(buf[i*f.elemSize:(i+1)*f.elemSize], f.res.desc)
		if err != nil {
			if st := s.driver.ReleaseFifoElements(s.handle, f.res.address, n, nil); st.IsError() {
				f.log.Warn("release after decode failure", "status", st)
			}
			return nil, remaining, fmt.Errorf("rio: fifo %s element %d: %w", f.res.name, i, err)
		}
		region.Elements[i] = v
	}
	return region, remaining, nil
}

// AcquireWrite waits up to timeout for space for exactly n elements and
// reserves it. It returns the region and the free space left behind it.
func (f *FifoChannel) AcquireWrite(n int, timeout time.Duration) (*FifoRegion, int, error) {
	if f.res.direction == Indicator {
		return nil, 0, fmt.Errorf("%w: fifo %s is target-to-host", ErrReadOnlyResource, f.res.name)
	}
	if n < 0 {
		return nil, 0, fmt.Errorf("rio: fifo %s: negative element count %d", f.res.name, n)
	}
	if err := f.ready(); err != nil {
		return nil, 0, err
	}

	s := f.session
	if err := s.acquire(); err != nil {
		return nil, 0, err
	}
	defer s.release()

	start := time.Now()
	space, st := s.driver.AcquireFifoWrite(s.ctx, s.handle, f.res.address, n, f.elemSize, timeout)
	err := s.check("acquire "+f.res.name, st)
	s.trace(TraceEvent{
		Op: "fifo.acquire", Resource: f.res.name, Address: f.res.address,
		Bytes: n * f.elemSize, Elements: n, Start: start, Err: err,
	})
	if err != nil {
		return nil, space, err
	}

	zero := make([]byte, f.elemSize)
	region := &FifoRegion{Elements: make([]codec.Value, n), fifo: f, count: n}
	for i := range region.Elements {
		v, err := codec.Unpack(zero, f.res.desc)
		if err != nil {
			return nil, space, fmt.Errorf("rio: fifo %s: %w", f.res.name, err)
		}
		region.Elements[i] = v
	}
	return region, space, nil
}
