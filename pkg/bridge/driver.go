package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/OpenTraceLab/OpenTraceRIO/internal/logging"
	"github.com/OpenTraceLab/OpenTraceRIO/pkg/rio"
)

const (
	// PollSlice bounds how long one FIFO or IRQ request may hold the bridge.
	// Longer waits are issued as a series of requests so register traffic from
	// other goroutines can interleave.
	PollSlice = 50 * time.Millisecond

	// maxStale is how many out-of-sequence responses are dropped while
	// looking for the answer to a request.
	maxStale = 8
)

// Driver implements rio.Driver over a bridge Transport. Requests are
// serialized; each one is a single frame exchange.
type Driver struct {
	transport Transport
	proto     Protocol
	log       *slog.Logger

	mu sync.Mutex
}

var _ rio.Driver = (*Driver)(nil)

// New returns a driver speaking over t.
func New(t Transport) *Driver {
	return &Driver{transport: t, log: logging.For(logging.ComponentBridge)}
}

// OpenUSB opens the USB bridge with the given serial, or the first one found.
func OpenUSB(serial string) (*Driver, error) {
	t, err := NewUSBTransport(serial)
	if err != nil {
		return nil, err
	}
	return New(t), nil
}

// Shutdown closes the transport.
func (d *Driver) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transport.Close()
}

// Info queries the bridge firmware.
func (d *Driver) Info(ctx context.Context) (Info, error) {
	resp, st := d.roundTrip(ctx, d.proto.EncodeInfo())
	if err := st.Err(); err != nil {
		return Info{}, err
	}
	return DecodeInfo(resp)
}

// roundTrip sends req and waits for its response. Transport and framing
// failures come back as StatusHardwareFault, cancellation as
// StatusTransferAborted.
func (d *Driver) roundTrip(ctx context.Context, req Frame) (Frame, rio.Status) {
	raw, err := EncodeRequest(req.Seq, req.Op, req.Payload)
	if err != nil {
		d.log.Error("encode", "op", req.Op, "error", err)
		return Frame{}, rio.StatusInvalidParameter
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.transport.Write(ctx, raw); err != nil {
		return Frame{}, d.transportStatus(ctx, req, err)
	}
	for i := 0; i < maxStale; i++ {
		raw, err := d.transport.Read(ctx)
		if err != nil {
			return Frame{}, d.transportStatus(ctx, req, err)
		}
		resp, err := DecodeResponse(raw)
		if err != nil {
			d.log.Error("decode", "op", req.Op, "error", err)
			return Frame{}, rio.StatusHardwareFault
		}
		if resp.Seq != req.Seq {
			d.log.Debug("dropping stale response", "want", req.Seq, "got", resp.Seq, "op", resp.Op)
			continue
		}
		if err := ValidateResponse(req, resp); err != nil {
			d.log.Error("response", "error", err)
			return Frame{}, rio.StatusHardwareFault
		}
		return resp, resp.Status
	}
	d.log.Error("no response", "op", req.Op, "seq", req.Seq)
	return Frame{}, rio.StatusHardwareFault
}

func (d *Driver) transportStatus(ctx context.Context, req Frame, err error) rio.Status {
	if ctx.Err() != nil {
		return rio.StatusTransferAborted
	}
	d.log.Error("transport", "op", req.Op, "error", err)
	return rio.StatusHardwareFault
}

// call runs a command whose response carries no payload of interest.
func (d *Driver) call(req Frame) rio.Status {
	_, st := d.roundTrip(context.Background(), req)
	return st
}

// decoded turns a payload decode failure into a hardware fault.
func (d *Driver) decoded(op Op, st rio.Status, err error) rio.Status {
	if err != nil {
		d.log.Error("decode", "op", op, "error", err)
		return rio.StatusHardwareFault
	}
	return st
}

func (d *Driver) Open(bitfile, signature, target string, attr rio.OpenAttribute) (rio.Handle, rio.Status) {
	resp, st := d.roundTrip(context.Background(), d.proto.EncodeOpen(bitfile, signature, target, attr))
	if st.IsError() {
		return 0, st
	}
	h, err := DecodeOpen(resp)
	return h, d.decoded(OpOpen, st, err)
}

func (d *Driver) Close(h rio.Handle, attr rio.CloseAttribute) rio.Status {
	return d.call(d.proto.EncodeClose(h, attr))
}

func (d *Driver) Run(h rio.Handle) rio.Status {
	return d.call(d.proto.EncodeHandle(OpRun, h))
}

func (d *Driver) Abort(h rio.Handle) rio.Status {
	return d.call(d.proto.EncodeHandle(OpAbort, h))
}

func (d *Driver) Reset(h rio.Handle) rio.Status {
	return d.call(d.proto.EncodeHandle(OpReset, h))
}

func (d *Driver) Download(h rio.Handle) rio.Status {
	return d.call(d.proto.EncodeHandle(OpDownload, h))
}

func (d *Driver) ReadRegister(h rio.Handle, addr uint32, buf []byte) rio.Status {
	resp, st := d.roundTrip(context.Background(), d.proto.EncodeReadRegister(h, addr, len(buf)))
	if st.IsError() {
		return st
	}
	return d.decoded(OpReadRegister, st, DecodeReadRegister(resp, buf))
}

func (d *Driver) WriteRegister(h rio.Handle, addr uint32, buf []byte) rio.Status {
	return d.call(d.proto.EncodeWriteRegister(h, addr, buf))
}

func (d *Driver) ConfigureFifo(h rio.Handle, fifo uint32, depth int) (int, rio.Status) {
	resp, st := d.roundTrip(context.Background(), d.proto.EncodeConfigureFifo(h, fifo, depth))
	if st.IsError() {
		return 0, st
	}
	actual, err := DecodeConfigureFifo(resp)
	return actual, d.decoded(OpConfigureFifo, st, err)
}

func (d *Driver) StartFifo(h rio.Handle, fifo uint32) rio.Status {
	return d.call(d.proto.EncodeFifo(OpStartFifo, h, fifo))
}

func (d *Driver) StopFifo(h rio.Handle, fifo uint32) rio.Status {
	return d.call(d.proto.EncodeFifo(OpStopFifo, h, fifo))
}

// slicer splits a timeout into PollSlice sized requests.
type slicer struct {
	deadline time.Time
	infinite bool
}

func newSlicer(timeout time.Duration) slicer {
	if timeout < 0 {
		return slicer{infinite: true}
	}
	return slicer{deadline: time.Now().Add(timeout)}
}

// next returns the timeout for the next request and whether it is the last.
func (s slicer) next() (time.Duration, bool) {
	if s.infinite {
		return PollSlice, false
	}
	left := time.Until(s.deadline)
	if left <= PollSlice {
		return max(left, 0), true
	}
	return PollSlice, false
}

func (d *Driver) ReadFifo(ctx context.Context, h rio.Handle, fifo uint32, dst []byte, elemSize int, timeout time.Duration) (int, int, rio.Status) {
	if elemSize <= 0 {
		return 0, 0, rio.StatusInvalidParameter
	}
	want := len(dst) / elemSize
	maxPerFrame := (MaxPayload - 8) / elemSize
	if maxPerFrame == 0 {
		return 0, 0, rio.StatusInvalidParameter
	}
	s := newSlicer(timeout)
	got := 0
	for {
		if ctx.Err() != nil {
			return got, 0, rio.StatusTransferAborted
		}
		slice, last := s.next()
		count := min(want-got, maxPerFrame)
		resp, st := d.roundTrip(ctx, d.proto.EncodeReadFifo(h, fifo, elemSize, count, slice))
		if st.IsError() && st != rio.StatusFifoTimeout {
			return got, 0, st
		}
		n, remaining, err := DecodeReadFifo(resp, dst[got*elemSize:], elemSize)
		if err != nil {
			return got, 0, d.decoded(OpReadFifo, st, err)
		}
		got += n
		switch {
		case got == want:
			return got, remaining, rio.StatusSuccess
		case st != rio.StatusFifoTimeout && n > 0:
			// A full frame; ask for the rest without waiting for a slice.
			continue
		case last:
			return got, remaining, rio.StatusFifoTimeout
		}
	}
}

func (d *Driver) WriteFifo(ctx context.Context, h rio.Handle, fifo uint32, src []byte, elemSize int, timeout time.Duration) (int, int, rio.Status) {
	if elemSize <= 0 {
		return 0, 0, rio.StatusInvalidParameter
	}
	want := len(src) / elemSize
	maxPerFrame := (MaxPayload - 14) / elemSize
	if maxPerFrame == 0 {
		return 0, 0, rio.StatusInvalidParameter
	}
	s := newSlicer(timeout)
	sent := 0
	for {
		if ctx.Err() != nil {
			return sent, 0, rio.StatusTransferAborted
		}
		slice, last := s.next()
		count := min(want-sent, maxPerFrame)
		chunk := src[sent*elemSize : (sent+count)*elemSize]
		resp, st := d.roundTrip(ctx, d.proto.EncodeWriteFifo(h, fifo, elemSize, slice, chunk))
		if st.IsError() && st != rio.StatusFifoTimeout {
			return sent, 0, st
		}
		accepted, space, err := DecodeWriteFifo(resp)
		if err != nil {
			return sent, 0, d.decoded(OpWriteFifo, st, err)
		}
		sent += accepted
		switch {
		case sent == want:
			return sent, space, rio.StatusSuccess
		case st != rio.StatusFifoTimeout && accepted > 0:
			continue
		case last:
			return sent, space, rio.StatusFifoTimeout
		}
	}
}

// AcquireFifoRead retries the acquisition in PollSlice steps until it
// succeeds or the timeout passes. The acquired elements must fit one
// response frame.
func (d *Driver) AcquireFifoRead(ctx context.Context, h rio.Handle, fifo uint32, dst []byte, elemSize int, timeout time.Duration) (int, rio.Status) {
	if elemSize <= 0 || len(dst) > MaxPayload-4 {
		return 0, rio.StatusInvalidParameter
	}
	count := len(dst) / elemSize
	s := newSlicer(timeout)
	for {
		if ctx.Err() != nil {
			return 0, rio.StatusTransferAborted
		}
		slice, last := s.next()
		resp, st := d.roundTrip(ctx, d.proto.EncodeAcquireFifo(OpAcquireRead, h, fifo, elemSize, count, slice))
		if st == rio.StatusFifoTimeout && !last {
			continue
		}
		if st.IsError() {
			return 0, st
		}
		remaining, err := DecodeAcquireRead(resp, dst[:count*elemSize])
		return remaining, d.decoded(OpAcquireRead, st, err)
	}
}

func (d *Driver) AcquireFifoWrite(ctx context.Context, h rio.Handle, fifo uint32, count, elemSize int, timeout time.Duration) (int, rio.Status) {
	if elemSize <= 0 || count < 0 || count*elemSize > MaxPayload-12 {
		return 0, rio.StatusInvalidParameter
	}
	s := newSlicer(timeout)
	for {
		if ctx.Err() != nil {
			return 0, rio.StatusTransferAborted
		}
		slice, last := s.next()
		resp, st := d.roundTrip(ctx, d.proto.EncodeAcquireFifo(OpAcquireWrite, h, fifo, elemSize, count, slice))
		if st == rio.StatusFifoTimeout && !last {
			continue
		}
		if st.IsError() {
			return 0, st
		}
		space, err := DecodeAcquireWrite(resp)
		return space, d.decoded(OpAcquireWrite, st, err)
	}
}

// ReleaseFifoElements carries a write region's data in the release frame, so
// a region is limited to what one request can hold.
func (d *Driver) ReleaseFifoElements(h rio.Handle, fifo uint32, count int, data []byte) rio.Status {
	return d.call(d.proto.EncodeReleaseFifo(h, fifo, count, data))
}

func (d *Driver) ReserveIrqContext(h rio.Handle) (rio.IrqContext, rio.Status) {
	resp, st := d.roundTrip(context.Background(), d.proto.EncodeReserveIrq(h))
	if st.IsError() {
		return 0, st
	}
	ictx, err := DecodeReserveIrq(resp)
	return ictx, d.decoded(OpReserveIrq, st, err)
}

func (d *Driver) UnreserveIrqContext(h rio.Handle, ictx rio.IrqContext) rio.Status {
	return d.call(d.proto.EncodeUnreserveIrq(h, ictx))
}

func (d *Driver) WaitOnIrqs(ctx context.Context, h rio.Handle, ictx rio.IrqContext, irqs rio.IrqSet, timeout time.Duration) (rio.IrqSet, bool, rio.Status) {
	s := newSlicer(timeout)
	for {
		if ctx.Err() != nil {
			return 0, false, rio.StatusTransferAborted
		}
		slice, last := s.next()
		resp, st := d.roundTrip(ctx, d.proto.EncodeWaitIrq(h, ictx, irqs, slice))
		if st.IsError() && st != rio.StatusIrqTimeout {
			return 0, false, st
		}
		fired, timedOut, err := DecodeWaitIrq(resp)
		if st == rio.StatusIrqTimeout {
			fired, timedOut, err = 0, true, nil
		}
		if err != nil {
			return 0, false, d.decoded(OpWaitIrq, st, err)
		}
		if !timedOut {
			return fired, false, rio.StatusSuccess
		}
		if last {
			return 0, true, rio.StatusSuccess
		}
	}
}

func (d *Driver) AcknowledgeIrqs(h rio.Handle, irqs rio.IrqSet) rio.Status {
	return d.call(d.proto.EncodeAcknowledgeIrq(h, irqs))
}
