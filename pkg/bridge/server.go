package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/rio"
)

// Server answers bridge requests by forwarding them to a rio.Driver. It is
// the host-side model of the bridge firmware and backs the Loopback
// transport.
type Server struct {
	driver rio.Driver
	info   Info
}

// NewServer serves requests against d. Info requests report info.
func NewServer(d rio.Driver, info Info) *Server {
	return &Server{driver: d, info: info}
}

func fromMillis(ms int32) time.Duration {
	if ms < 0 {
		return rio.Infinite
	}
	return time.Duration(ms) * time.Millisecond
}

// Serve handles one request frame and returns the response frame.
func (s *Server) Serve(ctx context.Context, raw []byte) ([]byte, error) {
	req, err := DecodeRequest(raw)
	if err != nil {
		return nil, err
	}
	resp := s.handle(ctx, req)
	resp.Seq, resp.Op = req.Seq, req.Op
	return EncodeResponse(resp)
}

func (s *Server) handle(ctx context.Context, req Frame) Frame {
	r := &reader{buf: req.Payload}
	var out payload
	var st rio.Status

	switch req.Op {
	case OpInfo:
		out = out.str(s.info.Firmware).str(s.info.Serial).u8(uint8(len(s.info.Targets)))
		for _, t := range s.info.Targets {
			out = out.str(t)
		}
	case OpOpen:
		attr := rio.OpenAttribute(r.u32())
		bitfile, signature, target := r.str(), r.str(), r.str()
		if r.err != nil {
			break
		}
		var h rio.Handle
		h, st = s.driver.Open(bitfile, signature, target, attr)
		out = out.u32(uint32(h))
	case OpClose:
		h, attr := rio.Handle(r.u32()), rio.CloseAttribute(r.u32())
		if r.err == nil {
			st = s.driver.Close(h, attr)
		}
	case OpRun, OpAbort, OpReset, OpDownload:
		h := rio.Handle(r.u32())
		if r.err != nil {
			break
		}
		switch req.Op {
		case OpRun:
			st = s.driver.Run(h)
		case OpAbort:
			st = s.driver.Abort(h)
		case OpReset:
			st = s.driver.Reset(h)
		default:
			st = s.driver.Download(h)
		}
	case OpReadRegister:
		h, addr, size := rio.Handle(r.u32()), r.u32(), int(r.u16())
		if r.err != nil {
			break
		}
		buf := make([]byte, size)
		if st = s.driver.ReadRegister(h, addr, buf); !st.IsError() {
			out = out.bytes(buf)
		}
	case OpWriteRegister:
		h, addr := rio.Handle(r.u32()), r.u32()
		if r.err == nil {
			st = s.driver.WriteRegister(h, addr, r.rest())
		}
	case OpConfigureFifo:
		h, fifo, depth := rio.Handle(r.u32()), r.u32(), int(r.u32())
		if r.err != nil {
			break
		}
		var actual int
		actual, st = s.driver.ConfigureFifo(h, fifo, depth)
		out = out.u32(uint32(actual))
	case OpStartFifo, OpStopFifo:
		h, fifo := rio.Handle(r.u32()), r.u32()
		if r.err != nil {
			break
		}
		if req.Op == OpStartFifo {
			st = s.driver.StartFifo(h, fifo)
		} else {
			st = s.driver.StopFifo(h, fifo)
		}
	case OpReadFifo:
		h, fifo, elemSize := rio.Handle(r.u32()), r.u32(), int(r.u16())
		count, timeout := int(r.u32()), fromMillis(r.i32())
		if r.err != nil || elemSize == 0 {
			st = rio.StatusInvalidParameter
			break
		}
		buf := make([]byte, count*elemSize)
		var n, remaining int
		n, remaining, st = s.driver.ReadFifo(ctx, h, fifo, buf, elemSize, timeout)
		out = out.u32(uint32(n)).u32(uint32(remaining)).bytes(buf[:n*elemSize])
	case OpWriteFifo:
		h, fifo, elemSize := rio.Handle(r.u32()), r.u32(), int(r.u16())
		timeout := fromMillis(r.i32())
		if r.err != nil || elemSize == 0 {
			st = rio.StatusInvalidParameter
			break
		}
		var accepted, space int
		accepted, space, st = s.driver.WriteFifo(ctx, h, fifo, r.rest(), elemSize, timeout)
		out = out.u32(uint32(accepted)).u32(uint32(space))
	case OpAcquireRead, OpAcquireWrite:
		h, fifo, elemSize := rio.Handle(r.u32()), r.u32(), int(r.u16())
		count, timeout := int(r.u32()), fromMillis(r.i32())
		if r.err != nil || elemSize == 0 || count*elemSize > MaxPayload-4 {
			st = rio.StatusInvalidParameter
			break
		}
		if req.Op == OpAcquireRead {
			buf := make([]byte, count*elemSize)
			var remaining int
			remaining, st = s.driver.AcquireFifoRead(ctx, h, fifo, buf, elemSize, timeout)
			out = out.u32(uint32(remaining))
			if !st.IsError() {
				out = out.bytes(buf)
			}
		} else {
			var space int
			space, st = s.driver.AcquireFifoWrite(ctx, h, fifo, count, elemSize, timeout)
			out = out.u32(uint32(space))
		}
	case OpReleaseFifo:
		h, fifo, count := rio.Handle(r.u32()), r.u32(), int(r.u32())
		if r.err == nil {
			st = s.driver.ReleaseFifoElements(h, fifo, count, r.rest())
		}
	case OpReserveIrq:
		h := rio.Handle(r.u32())
		if r.err != nil {
			break
		}
		var ictx rio.IrqContext
		ictx, st = s.driver.ReserveIrqContext(h)
		out = out.u32(uint32(ictx))
	case OpUnreserveIrq:
		h, ictx := rio.Handle(r.u32()), rio.IrqContext(r.u32())
		if r.err == nil {
			st = s.driver.UnreserveIrqContext(h, ictx)
		}
	case OpWaitIrq:
		h, ictx := rio.Handle(r.u32()), rio.IrqContext(r.u32())
		irqs, timeout := rio.IrqSet(r.u32()), fromMillis(r.i32())
		if r.err != nil {
			break
		}
		var fired rio.IrqSet
		var timedOut bool
		fired, timedOut, st = s.driver.WaitOnIrqs(ctx, h, ictx, irqs, timeout)
		flag := uint8(0)
		if timedOut {
			flag = 1
		}
		out = out.u32(uint32(fired)).u8(flag)
	case OpAcknowledgeIrq:
		h, irqs := rio.Handle(r.u32()), rio.IrqSet(r.u32())
		if r.err == nil {
			st = s.driver.AcknowledgeIrqs(h, irqs)
		}
	default:
		st = rio.StatusFeatureNotSupported
	}
	if r.err != nil {
		return Frame{Status: rio.StatusInvalidParameter}
	}
	return Frame{Status: st, Payload: out}
}

// ErrTransportClosed is returned by Loopback after Close.
var ErrTransportClosed = errors.New("bridge: transport closed")

// Loopback is a Transport that hands every request to a Server in-process.
// It lets the bridge driver run against rio.SimDriver without hardware.
type Loopback struct {
	server *Server
	queue  chan []byte
	closed chan struct{}
}

// NewLoopback returns a transport backed by server.
func NewLoopback(server *Server) *Loopback {
	return &Loopback{server: server, queue: make(chan []byte, 16), closed: make(chan struct{})}
}

func (l *Loopback) Write(ctx context.Context, frame []byte) error {
	select {
	case <-l.closed:
		return ErrTransportClosed
	default:
	}
	resp, err := l.server.Serve(ctx, frame)
	if err != nil {
		return fmt.Errorf("bridge: loopback: %w", err)
	}
	select {
	case l.queue <- resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loopback) Read(ctx context.Context) ([]byte, error) {
	select {
	case resp := <-l.queue:
		return resp, nil
	case <-l.closed:
		return nil, ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loopback) Close() error {
	select {
	case <-l.closed:
	default:
		close(l.closed)
	}
	return nil
}
