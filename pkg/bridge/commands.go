package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/rio"
)

// Protocol numbers outgoing requests and builds and parses the payload of
// each command.
type Protocol struct {
	mu  sync.Mutex
	seq uint8
}

func (p *Protocol) request(op Op, pl payload) Frame {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()
	return Frame{Seq: seq, Op: op, Payload: pl}
}

// Info describes the bridge firmware.
type Info struct {
	Firmware string
	Serial   string
	Targets  []string
}

func (p *Protocol) EncodeInfo() Frame { return p.request(OpInfo, nil) }

func DecodeInfo(resp Frame) (Info, error) {
	r := &reader{buf: resp.Payload}
	info := Info{Firmware: r.str(), Serial: r.str()}
	for n := r.u8(); n > 0 && r.err == nil; n-- {
		info.Targets = append(info.Targets, r.str())
	}
	return info, r.err
}

func (p *Protocol) EncodeOpen(bitfile, signature, target string, attr rio.OpenAttribute) Frame {
	return p.request(OpOpen, payload(nil).u32(uint32(attr)).str(bitfile).str(signature).str(target))
}

func DecodeOpen(resp Frame) (rio.Handle, error) {
	r := &reader{buf: resp.Payload}
	h := rio.Handle(r.u32())
	return h, r.err
}

func (p *Protocol) EncodeClose(h rio.Handle, attr rio.CloseAttribute) Frame {
	return p.request(OpClose, payload(nil).u32(uint32(h)).u32(uint32(attr)))
}

// EncodeHandle builds the run, abort, reset and download commands, which
// carry only the session handle.
func (p *Protocol) EncodeHandle(op Op, h rio.Handle) Frame {
	return p.request(op, payload(nil).u32(uint32(h)))
}

func (p *Protocol) EncodeReadRegister(h rio.Handle, addr uint32, size int) Frame {
	return p.request(OpReadRegister, payload(nil).u32(uint32(h)).u32(addr).u16(uint16(size)))
}

// DecodeReadRegister copies the register contents into buf, which must be
// exactly as long as the returned data.
func DecodeReadRegister(resp Frame, buf []byte) error {
	if len(resp.Payload) != len(buf) {
		return fmt.Errorf("%w: register data is %d bytes, want %d", ErrLengthMismatch, len(resp.Payload), len(buf))
	}
	copy(buf, resp.Payload)
	return nil
}

func (p *Protocol) EncodeWriteRegister(h rio.Handle, addr uint32, data []byte) Frame {
	return p.request(OpWriteRegister, payload(nil).u32(uint32(h)).u32(addr).bytes(data))
}

func (p *Protocol) EncodeConfigureFifo(h rio.Handle, fifo uint32, depth int) Frame {
	return p.request(OpConfigureFifo, payload(nil).u32(uint32(h)).u32(fifo).u32(uint32(depth)))
}

func DecodeConfigureFifo(resp Frame) (int, error) {
	r := &reader{buf: resp.Payload}
	depth := int(r.u32())
	return depth, r.err
}

// EncodeFifo builds the start and stop commands.
func (p *Protocol) EncodeFifo(op Op, h rio.Handle, fifo uint32) Frame {
	return p.request(op, payload(nil).u32(uint32(h)).u32(fifo))
}

func (p *Protocol) EncodeReadFifo(h rio.Handle, fifo uint32, elemSize, count int, timeout time.Duration) Frame {
	return p.request(OpReadFifo, payload(nil).
		u32(uint32(h)).u32(fifo).u16(uint16(elemSize)).u32(uint32(count)).i32(TimeoutMillis(timeout)))
}

// DecodeReadFifo copies the received elements into dst and returns the
// element count read and the count still queued on the target.
func DecodeReadFifo(resp Frame, dst []byte, elemSize int) (int, int, error) {
	r := &reader{buf: resp.Payload}
	n := int(r.u32())
	remaining := int(r.u32())
	data := r.rest()
	if r.err != nil {
		return 0, 0, r.err
	}
	if len(data) != n*elemSize || len(data) > len(dst) {
		return 0, 0, fmt.Errorf("%w: %d elements in %d bytes", ErrLengthMismatch, n, len(data))
	}
	copy(dst, data)
	return n, remaining, nil
}

func (p *Protocol) EncodeWriteFifo(h rio.Handle, fifo uint32, elemSize int, timeout time.Duration, src []byte) Frame {
	return p.request(OpWriteFifo, payload(nil).
		u32(uint32(h)).u32(fifo).u16(uint16(elemSize)).i32(TimeoutMillis(timeout)).bytes(src))
}

func DecodeWriteFifo(resp Frame) (int, int, error) {
	r := &reader{buf: resp.Payload}
	accepted := int(r.u32())
	space := int(r.u32())
	return accepted, space, r.err
}

// EncodeAcquireFifo builds the acquire-read and acquire-write commands. Both
// ask for exactly count elements.
func (p *Protocol) EncodeAcquireFifo(op Op, h rio.Handle, fifo uint32, elemSize, count int, timeout time.Duration) Frame {
	return p.request(op, payload(nil).
		u32(uint32(h)).u32(fifo).u16(uint16(elemSize)).u32(uint32(count)).i32(TimeoutMillis(timeout)))
}

// DecodeAcquireRead copies the acquired elements into dst, which must be
// exactly as long as the returned data, and returns the count queued behind
// them.
func DecodeAcquireRead(resp Frame, dst []byte) (int, error) {
	r := &reader{buf: resp.Payload}
	remaining := int(r.u32())
	data := r.rest()
	if r.err != nil {
		return 0, r.err
	}
	if len(data) != len(dst) {
		return 0, fmt.Errorf("%w: acquired %d bytes, want %d", ErrLengthMismatch, len(data), len(dst))
	}
	copy(dst, data)
	return remaining, nil
}

func DecodeAcquireWrite(resp Frame) (int, error) {
	r := &reader{buf: resp.Payload}
	space := int(r.u32())
	return space, r.err
}

func (p *Protocol) EncodeReleaseFifo(h rio.Handle, fifo uint32, count int, data []byte) Frame {
	return p.request(OpReleaseFifo, payload(nil).u32(uint32(h)).u32(fifo).u32(uint32(count)).bytes(data))
}

func (p *Protocol) EncodeReserveIrq(h rio.Handle) Frame {
	return p.request(OpReserveIrq, payload(nil).u32(uint32(h)))
}

func DecodeReserveIrq(resp Frame) (rio.IrqContext, error) {
	r := &reader{buf: resp.Payload}
	ictx := rio.IrqContext(r.u32())
	return ictx, r.err
}

func (p *Protocol) EncodeUnreserveIrq(h rio.Handle, ictx rio.IrqContext) Frame {
	return p.request(OpUnreserveIrq, payload(nil).u32(uint32(h)).u32(uint32(ictx)))
}

func (p *Protocol) EncodeWaitIrq(h rio.Handle, ictx rio.IrqContext, irqs rio.IrqSet, timeout time.Duration) Frame {
	return p.request(OpWaitIrq, payload(nil).
		u32(uint32(h)).u32(uint32(ictx)).u32(uint32(irqs)).i32(TimeoutMillis(timeout)))
}

func DecodeWaitIrq(resp Frame) (rio.IrqSet, bool, error) {
	r := &reader{buf: resp.Payload}
	fired := rio.IrqSet(r.u32())
	timedOut := r.u8() != 0
	return fired, timedOut, r.err
}

func (p *Protocol) EncodeAcknowledgeIrq(h rio.Handle, irqs rio.IrqSet) Frame {
	return p.request(OpAcknowledgeIrq, payload(nil).u32(uint32(h)).u32(uint32(irqs)))
}
