package rio

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/OpenTraceLab/OpenTraceRIO/internal/logging"
	"github.com/OpenTraceLab/OpenTraceRIO/pkg/codec"
)

// DefaultSimFifoDepth is the host depth of a simulated FIFO that was never
// configured.
const DefaultSimFifoDepth = 1024

// RegisterWriteHook observes every register write accepted by SimDriver. It
// runs without the simulator lock held so it may call Poke or RaiseIrq.
type RegisterWriteHook func(target string, addr uint32, data []byte)

// RegisterWrite captures the last register write for inspection within tests.
type RegisterWrite struct {
	Target  string
	Address uint32
	Data    []byte
}

// SimDriver is an in-memory Driver. Images are catalogs registered with
// AddImage; each target runs at most one image at a time. Register memory,
// FIFOs and interrupt lines behave like the hardware as seen from the host,
// and the target side is driven through Poke, Peek, TargetRead, TargetWrite
// and RaiseIrq.
type SimDriver struct {
	OnRegisterWrite RegisterWriteHook

	log *slog.Logger

	mu          sync.Mutex
	changed     chan struct{}
	images      map[string]*Catalog
	targets     map[string]*simTarget
	sessions    map[Handle]*simSession
	unreachable map[string]bool
	nextHandle  Handle
	nextIrq     IrqContext
	failNext    Status
	lastWrite   RegisterWrite
}

type simTarget struct {
	name     string
	image    *Catalog
	running  bool
	sessions int
	regs     map[uint32][]byte
	fifos    map[uint32]*simFifo
	pending  IrqSet
}

type simFifo struct {
	res   *Resource
	size  int
	depth int
	data  []byte

	// acquired counts elements held by an outstanding region: the head of
	// data for target-to-host FIFOs, reserved space for host-to-target.
	acquired int
}

func (f *simFifo) elements() int { return len(f.data) / f.size }

type simSession struct {
	target *simTarget
	irqs   map[IrqContext]bool
}

// NewSimDriver returns a simulator holding the given images.
func NewSimDriver(images ...*Catalog) *SimDriver {
	d := &SimDriver{
		log:         logging.For(logging.ComponentSim),
		changed:     make(chan struct{}),
		images:      make(map[string]*Catalog),
		targets:     make(map[string]*simTarget),
		sessions:    make(map[Handle]*simSession),
		unreachable: make(map[string]bool),
	}
	for _, c := range images {
		d.AddImage(c)
	}
	return d
}

// AddImage makes the bitfile described by c loadable. Images are matched by
// the base name of their bitfile path.
func (d *SimDriver) AddImage(c *Catalog) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.images[path.Base(c.Bitfile)] = c
}

// SetUnreachable makes Open on target fail with a connection error.
func (d *SimDriver) SetUnreachable(target string, unreachable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unreachable[target] = unreachable
}

// FailNext makes the next register, FIFO or IRQ call return st.
func (d *SimDriver) FailNext(st Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = st
}

// LastRegisterWrite returns a copy of the most recent register write.
func (d *SimDriver) LastRegisterWrite() RegisterWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	return RegisterWrite{
		Target:  d.lastWrite.Target,
		Address: d.lastWrite.Address,
		Data:    append([]byte(nil), d.lastWrite.Data...),
	}
}

// Running reports whether target runs an image, and which one.
func (d *SimDriver) Running(target string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.targets[target]
	if !ok || t.image == nil {
		return "", false
	}
	return t.image.Bitfile, t.running
}

// Preload loads bitfile on target and starts it, as if another host had done
// so before any session opened.
func (d *SimDriver) Preload(target, bitfile string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.images[path.Base(bitfile)]
	if !ok {
		return fmt.Errorf("rio: sim: unknown bitfile %s", bitfile)
	}
	t := d.target(target)
	t.load(img)
	t.running = true
	d.notify()
	return nil
}

// notify wakes every blocked FIFO and IRQ wait. Callers hold d.mu.
func (d *SimDriver) notify() {
	close(d.changed)
	d.changed = make(chan struct{})
}

func (d *SimDriver) target(name string) *simTarget {
	t, ok := d.targets[name]
	if !ok {
		t = &simTarget{name: name}
		d.targets[name] = t
	}
	return t
}

func (t *simTarget) load(img *Catalog) {
	t.image = img
	t.running = false
	t.reset()
}

// reset restores registers to zero and drains every FIFO.
func (t *simTarget) reset() {
	t.regs = make(map[uint32][]byte)
	t.fifos = make(map[uint32]*simFifo)
	t.pending = 0
	if t.image == nil {
		return
	}
	for _, r := range t.image.Registers() {
		t.regs[r.address] = make([]byte, r.desc.PackedSize())
	}
	for _, r := range t.image.Fifos() {
		t.fifos[r.address] = &simFifo{res: r, size: r.desc.PackedSize(), depth: DefaultSimFifoDepth}
	}
}

// session resolves h and consumes a pending FailNext. Callers hold d.mu.
func (d *SimDriver) session(h Handle) (*simSession, Status) {
	s, ok := d.sessions[h]
	if !ok {
		return nil, StatusInvalidSession
	}
	if st := d.failNext; st != StatusSuccess {
		d.failNext = StatusSuccess
		return nil, st
	}
	return s, StatusSuccess
}

// current reports whether f is still the live FIFO behind h after a wait.
func (d *SimDriver) current(h Handle, number uint32, f *simFifo) bool {
	s, ok := d.sessions[h]
	return ok && s.target.fifos[number] == f
}

func (d *SimDriver) Open(bitfile, signature, target string, attr OpenAttribute) (Handle, Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.unreachable[target] {
		return 0, StatusRpcConnectionError
	}
	img, ok := d.images[path.Base(bitfile)]
	if !ok {
		return 0, StatusBitfileReadError
	}
	if img.Signature != signature {
		return 0, StatusSignatureMismatch
	}

	t := d.target(target)
	switch {
	case t.image == nil, attr&OpenForceDownload != 0:
		t.load(img)
	case t.image.Signature != img.Signature:
		if t.running {
			return 0, StatusFpgaAlreadyRunning
		}
		t.load(img)
	}
	if attr&OpenNoRun == 0 {
		t.running = true
	}

	d.nextHandle++
	h := d.nextHandle
	d.sessions[h] = &simSession{target: t, irqs: make(map[IrqContext]bool)}
	t.sessions++
	d.log.Debug("open", "target", target, "bitfile", img.Bitfile, "handle", h)
	return h, StatusSuccess
}

func (d *SimDriver) Close(h Handle, attr CloseAttribute) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[h]
	if !ok {
		return StatusInvalidSession
	}
	delete(d.sessions, h)
	t := s.target
	t.sessions--
	if t.sessions == 0 && attr&CloseNoReset == 0 {
		t.reset()
		t.running = false
	}
	d.notify()
	return StatusSuccess
}

func (d *SimDriver) Run(h Handle) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, st := d.session(h)
	if st != StatusSuccess {
		return st
	}
	if s.target.running {
		return WarningFpgaAlreadyRunning
	}
	s.target.running = true
	return StatusSuccess
}

func (d *SimDriver) Abort(h Handle) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, st := d.session(h)
	if st != StatusSuccess {
		return st
	}
	s.target.running = false
	d.notify()
	return StatusSuccess
}

func (d *SimDriver) Reset(h Handle) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, st := d.session(h)
	if st != StatusSuccess {
		return st
	}
	s.target.reset()
	s.target.running = false
	d.notify()
	return StatusSuccess
}

func (d *SimDriver) Download(h Handle) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, st := d.session(h)
	if st != StatusSuccess {
		return st
	}
	s.target.load(s.target.image)
	d.notify()
	return StatusSuccess
}

func (d *SimDriver) ReadRegister(h Handle, addr uint32, buf []byte) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, st := d.session(h)
	if st != StatusSuccess {
		return st
	}
	reg, ok := s.target.regs[addr]
	if !ok {
		return StatusResourceNotFound
	}
	if len(buf) != len(reg) {
		return StatusInvalidParameter
	}
	copy(buf, reg)
	return StatusSuccess
}

func (d *SimDriver) WriteRegister(h Handle, addr uint32, buf []byte) Status {
	d.mu.Lock()
	s, st := d.session(h)
	if st != StatusSuccess {
		d.mu.Unlock()
		return st
	}
	reg, ok := s.target.regs[addr]
	if !ok {
		d.mu.Unlock()
		return StatusResourceNotFound
	}
	if len(buf) != len(reg) {
		d.mu.Unlock()
		return StatusInvalidParameter
	}
	copy(reg, buf)
	d.lastWrite = RegisterWrite{Target: s.target.name, Address: addr, Data: append([]byte(nil), buf...)}
	hook, name := d.OnRegisterWrite, s.target.name
	d.notify()
	d.mu.Unlock()

	if hook != nil {
		hook(name, addr, append([]byte(nil), buf...))
	}
	return StatusSuccess
}

// fifo resolves a FIFO of the session's target. Callers hold d.mu.
func (d *SimDriver) fifo(h Handle, number uint32) (*simFifo, Status) {
	s, st := d.session(h)
	if st != StatusSuccess {
		return nil, st
	}
	f, ok := s.target.fifos[number]
	if !ok {
		return nil, StatusResourceNotFound
	}
	return f, StatusSuccess
}

func (d *SimDriver) ConfigureFifo(h Handle, fifo uint32, depth int) (int, Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, st := d.fifo(h, fifo)
	if st != StatusSuccess {
		return 0, st
	}
	if depth <= 0 {
		return 0, StatusBadDepth
	}
	if f.acquired > 0 {
		return 0, StatusFifoElementsAcquired
	}
	f.depth = depth
	f.data = nil
	d.notify()
	return depth, StatusSuccess
}

func (d *SimDriver) StartFifo(h Handle, fifo uint32) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, st := d.fifo(h, fifo)
	return st
}

func (d *SimDriver) StopFifo(h Handle, fifo uint32) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, st := d.fifo(h, fifo)
	if st != StatusSuccess {
		return st
	}
	if f.acquired > 0 {
		return StatusFifoElementsAcquired
	}
	f.data = nil
	d.notify()
	return StatusSuccess
}

type waitResult int

const (
	waitChanged waitResult = iota
	waitTimedOut
	waitAborted
)

// block releases d.mu until the simulator state changes, the deadline passes
// or ctx is cancelled, then reacquires it. A zero deadline means no timeout.
func (d *SimDriver) block(ctx context.Context, deadline time.Time) waitResult {
	changed := d.changed
	d.mu.Unlock()
	defer d.mu.Lock()

	var expired <-chan time.Time
	if !deadline.IsZero() {
		wait := time.Until(deadline)
		if wait <= 0 {
			return waitTimedOut
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-changed:
		return waitChanged
	case <-expired:
		return waitTimedOut
	case <-ctx.Done():
		return waitAborted
	}
}

func deadlineFor(timeout time.Duration) time.Time {
	if timeout < 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

func (d *SimDriver) ReadFifo(ctx context.Context, h Handle, fifo uint32, dst []byte, elemSize int, timeout time.Duration) (int, int, Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, st := d.fifo(h, fifo)
	if st != StatusSuccess {
		return 0, 0, st
	}
	if f.res.direction != Indicator || elemSize != f.size {
		return 0, 0, StatusInvalidParameter
	}
	want := len(dst) / elemSize
	if f.acquired > 0 {
		if want == 0 {
			return 0, f.elements() - f.acquired, StatusSuccess
		}
		return 0, 0, StatusFifoElementsAcquired
	}

	deadline := deadlineFor(timeout)
	for f.elements() < want {
		switch d.block(ctx, deadline) {
		case waitTimedOut:
			n := f.elements()
			copy(dst, f.data[:n*elemSize])
			f.data = f.data[n*elemSize:]
			if n > 0 {
				d.notify()
			}
			return n, 0, StatusFifoTimeout
		case waitAborted:
			return 0, 0, StatusTransferAborted
		}
		if !d.current(h, fifo, f) {
			return 0, 0, StatusTransferAborted
		}
		if f.acquired > 0 {
			return 0, 0, StatusFifoElementsAcquired
		}
	}
	n := want * elemSize
	copy(dst, f.data[:n])
	f.data = f.data[n:]
	if want > 0 {
		d.notify()
	}
	return want, f.elements(), StatusSuccess
}

func (d *SimDriver) WriteFifo(ctx context.Context, h Handle, fifo uint32, src []byte, elemSize int, timeout time.Duration) (int, int, Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, st := d.fifo(h, fifo)
	if st != StatusSuccess {
		return 0, 0, st
	}
	if f.res.direction != Control || elemSize != f.size {
		return 0, 0, StatusInvalidParameter
	}
	want := len(src) / elemSize
	if f.acquired > 0 {
		if want == 0 {
			return 0, f.depth - f.elements() - f.acquired, StatusSuccess
		}
		return 0, 0, StatusFifoElementsAcquired
	}

	deadline := deadlineFor(timeout)
	accepted := 0
	for {
		if n := min(f.depth-f.elements(), want-accepted); n > 0 {
			f.data = append(f.data, src[accepted*elemSize:(accepted+n)*elemSize]...)
			accepted += n
			d.notify()
		}
		if accepted == want {
			return accepted, f.depth - f.elements(), StatusSuccess
		}
		switch d.block(ctx, deadline) {
		case waitTimedOut:
			return accepted, f.depth - f.elements(), StatusFifoTimeout
		case waitAborted:
			return accepted, f.depth - f.elements(), StatusTransferAborted
		}
		if !d.current(h, fifo, f) {
			return accepted, 0, StatusTransferAborted
		}
		if f.acquired > 0 {
			return accepted, 0, StatusFifoElementsAcquired
		}
	}
}

// AcquireFifoRead waits until len(dst)/elemSize elements are queued and
// copies them into dst. They stay on the FIFO until ReleaseFifoElements.
func (d *SimDriver) AcquireFifoRead(ctx context.Context, h Handle, fifo uint32, dst []byte, elemSize int, timeout time.Duration) (int, Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, st := d.fifo(h, fifo)
	if st != StatusSuccess {
		return 0, st
	}
	want := len(dst) / max(elemSize, 1)
	if f.res.direction != Indicator || elemSize != f.size || want > f.depth {
		return 0, StatusInvalidParameter
	}
	if f.acquired > 0 {
		return 0, StatusFifoElementsAcquired
	}

	deadline := deadlineFor(timeout)
	for f.elements() < want {
		switch d.block(ctx, deadline) {
		case waitTimedOut:
			return f.elements(), StatusFifoTimeout
		case waitAborted:
			return 0, StatusTransferAborted
		}
		if !d.current(h, fifo, f) {
			return 0, StatusTransferAborted
		}
		if f.acquired > 0 {
			return 0, StatusFifoElementsAcquired
		}
	}
	copy(dst, f.data[:want*elemSize])
	f.acquired = want
	return f.elements() - want, StatusSuccess
}

// AcquireFifoWrite waits until count elements of space are free and reserves
// them. The space fills when ReleaseFifoElements commits the data.
func (d *SimDriver) AcquireFifoWrite(ctx context.Context, h Handle, fifo uint32, count, elemSize int, timeout time.Duration) (int, Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, st := d.fifo(h, fifo)
	if st != StatusSuccess {
		return 0, st
	}
	if f.res.direction != Control || elemSize != f.size || count < 0 || count > f.depth {
		return 0, StatusInvalidParameter
	}
	if f.acquired > 0 {
		return 0, StatusFifoElementsAcquired
	}

	deadline := deadlineFor(timeout)
	for f.depth-f.elements() < count {
		switch d.block(ctx, deadline) {
		case waitTimedOut:
			return f.depth - f.elements(), StatusFifoTimeout
		case waitAborted:
			return 0, StatusTransferAborted
		}
		if !d.current(h, fifo, f) {
			return 0, StatusTransferAborted
		}
		if f.acquired > 0 {
			return 0, StatusFifoElementsAcquired
		}
	}
	f.acquired = count
	return f.depth - f.elements() - count, StatusSuccess
}

// ReleaseFifoElements gives count acquired elements back. Read elements leave
// the FIFO; for host-to-target FIFOs data holds the elements to commit.
func (d *SimDriver) ReleaseFifoElements(h Handle, fifo uint32, count int, data []byte) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, st := d.fifo(h, fifo)
	if st != StatusSuccess {
		return st
	}
	if count <= 0 || count > f.acquired {
		return StatusBadReadWriteCount
	}
	if f.res.direction == Indicator {
		f.data = f.data[count*f.size:]
	} else {
		if len(data) != count*f.size {
			return StatusInvalidParameter
		}
		f.data = append(f.data, data...)
	}
	f.acquired -= count
	d.notify()
	return StatusSuccess
}

func (d *SimDriver) ReserveIrqContext(h Handle) (IrqContext, Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, st := d.session(h)
	if st != StatusSuccess {
		return 0, st
	}
	d.nextIrq++
	s.irqs[d.nextIrq] = true
	return d.nextIrq, StatusSuccess
}

func (d *SimDriver) UnreserveIrqContext(h Handle, ictx IrqContext) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, st := d.session(h)
	if st != StatusSuccess {
		return st
	}
	if !s.irqs[ictx] {
		return StatusResourceNotInitialized
	}
	delete(s.irqs, ictx)
	return StatusSuccess
}

func (d *SimDriver) WaitOnIrqs(ctx context.Context, h Handle, ictx IrqContext, irqs IrqSet, timeout time.Duration) (IrqSet, bool, Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, st := d.session(h)
	if st != StatusSuccess {
		return 0, false, st
	}
	if !s.irqs[ictx] {
		return 0, false, StatusResourceNotInitialized
	}

	deadline := deadlineFor(timeout)
	for {
		if fired := s.target.pending & irqs; fired != 0 {
			return fired, false, StatusSuccess
		}
		switch d.block(ctx, deadline) {
		case waitTimedOut:
			return 0, true, StatusSuccess
		case waitAborted:
			return 0, false, StatusTransferAborted
		}
		if _, ok := d.sessions[h]; !ok {
			return 0, false, StatusTransferAborted
		}
	}
}

func (d *SimDriver) AcknowledgeIrqs(h Handle, irqs IrqSet) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, st := d.session(h)
	if st != StatusSuccess {
		return st
	}
	s.target.pending &^= irqs
	return StatusSuccess
}

// Target-side access.

func (d *SimDriver) loaded(target, name string) (*simTarget, *Resource, error) {
	t, ok := d.targets[target]
	if !ok || t.image == nil {
		return nil, nil, fmt.Errorf("rio: sim: no image loaded on %s", target)
	}
	r, err := t.image.Lookup(name)
	if err != nil {
		return nil, nil, err
	}
	return t, r, nil
}

// Poke sets a register from the target side, as the FPGA logic would.
func (d *SimDriver) Poke(target, name string, v codec.Value) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, r, err := d.loaded(target, name)
	if err != nil {
		return err
	}
	if r.kind != KindRegister {
		return fmt.Errorf("%w: %s is a fifo", ErrResourceNotFound, name)
	}
	return codec.PackInto(t.regs[r.address], r.desc, v)
}

// Peek returns the current value of a register.
func (d *SimDriver) Peek(target, name string) (codec.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, r, err := d.loaded(target, name)
	if err != nil {
		return codec.Value{}, err
	}
	if r.kind != KindRegister {
		return codec.Value{}, fmt.Errorf("%w: %s is a fifo", ErrResourceNotFound, name)
	}
	return codec.Unpack(t.regs[r.address], r.desc)
}

// RaiseIrq asserts interrupt lines on target.
func (d *SimDriver) RaiseIrq(target string, irqs IrqSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.target(target).pending |= irqs
	d.notify()
}

// Pending returns the asserted, unacknowledged lines of target.
func (d *SimDriver) Pending(target string) IrqSet {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.targets[target]; ok {
		return t.pending
	}
	return 0
}

// TargetWrite queues values on a target-to-host FIFO. It returns how many fit
// within the FIFO depth.
func (d *SimDriver) TargetWrite(target, name string, values ...codec.Value) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, err := d.targetFifo(target, name, Indicator)
	if err != nil {
		return 0, err
	}
	n := min(len(values), f.depth-f.elements())
	for _, v := range values[:n] {
		buf, err := codec.Pack(f.res.desc, v)
		if err != nil {
			return 0, err
		}
		f.data = append(f.data, buf...)
	}
	if n > 0 {
		d.notify()
	}
	return n, nil
}

// TargetRead consumes up to max values from a host-to-target FIFO.
func (d *SimDriver) TargetRead(target, name string, max int) ([]codec.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, err := d.targetFifo(target, name, Control)
	if err != nil {
		return nil, err
	}
	n := min(max, f.elements())
	out := make([]codec.Value, n)
	for i := range out {
		v, err := codec.Unpack(f.data[i*f.size:(i+1)*f.size], f.res.desc)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	f.data = f.data[n*f.size:]
	if n > 0 {
		d.notify()
	}
	return out, nil
}

func (d *SimDriver) targetFifo(target, name string, dir Direction) (*simFifo, error) {
	t, r, err := d.loaded(target, name)
	if err != nil {
		return nil, err
	}
	if r.kind != KindFifo || r.direction != dir {
		return nil, fmt.Errorf("%w: %s is not a %s fifo", ErrResourceNotFound, name, dir)
	}
	return t.fifos[r.address], nil
}
