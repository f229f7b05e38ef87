package bridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/rio"
)

// Op identifies a bridge command.
type Op uint8

const (
	OpInfo           Op = 0x00
	OpOpen           Op = 0x01
	OpClose          Op = 0x02
	OpRun            Op = 0x03
	OpAbort          Op = 0x04
	OpReset          Op = 0x05
	OpDownload       Op = 0x06
	OpReadRegister   Op = 0x10
	OpWriteRegister  Op = 0x11
	OpConfigureFifo  Op = 0x20
	OpStartFifo      Op = 0x21
	OpStopFifo       Op = 0x22
	OpReadFifo       Op = 0x23
	OpWriteFifo      Op = 0x24
	OpAcquireRead    Op = 0x25
	OpAcquireWrite   Op = 0x26
	OpReleaseFifo    Op = 0x27
	OpReserveIrq     Op = 0x30
	OpUnreserveIrq   Op = 0x31
	OpWaitIrq        Op = 0x32
	OpAcknowledgeIrq Op = 0x33
)

var opNames = map[Op]string{
	OpInfo:           "info",
	OpOpen:           "open",
	OpClose:          "close",
	OpRun:            "run",
	OpAbort:          "abort",
	OpReset:          "reset",
	OpDownload:       "download",
	OpReadRegister:   "read-register",
	OpWriteRegister:  "write-register",
	OpConfigureFifo:  "configure-fifo",
	OpStartFifo:      "start-fifo",
	OpStopFifo:       "stop-fifo",
	OpReadFifo:       "read-fifo",
	OpWriteFifo:      "write-fifo",
	OpAcquireRead:    "acquire-read",
	OpAcquireWrite:   "acquire-write",
	OpReleaseFifo:    "release-fifo",
	OpReserveIrq:     "reserve-irq",
	OpUnreserveIrq:   "unreserve-irq",
	OpWaitIrq:        "wait-irq",
	OpAcknowledgeIrq: "acknowledge-irq",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(0x%02X)", uint8(o))
}

// Frame layout. All multi-byte fields are little-endian.
//
//	request:  [seq u8][op u8][len u16][payload]
//	response: [seq u8][op u8][status i32][len u16][payload]
const (
	RequestHeaderSize  = 4
	ResponseHeaderSize = 8
	MaxPayload         = 0xFFFF
)

var (
	ErrShortFrame       = errors.New("bridge: frame too short")
	ErrLengthMismatch   = errors.New("bridge: payload length mismatch")
	ErrPayloadTooLarge  = errors.New("bridge: payload too large")
	ErrUnexpectedOp     = errors.New("bridge: unexpected opcode")
	ErrSequenceMismatch = errors.New("bridge: sequence mismatch")
)

// Frame is one decoded request or response.
type Frame struct {
	Seq     uint8
	Op      Op
	Status  rio.Status
	Payload []byte
}

// EncodeRequest builds a request frame.
func EncodeRequest(seq uint8, op Op, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes for %s", ErrPayloadTooLarge, len(payload), op)
	}
	buf := make([]byte, RequestHeaderSize+len(payload))
	buf[0] = seq
	buf[1] = byte(op)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(payload)))
	copy(buf[RequestHeaderSize:], payload)
	return buf, nil
}

// DecodeRequest parses a request frame, as the bridge firmware does.
func DecodeRequest(frame []byte) (Frame, error) {
	if len(frame) < RequestHeaderSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(frame))
	}
	n := int(binary.LittleEndian.Uint16(frame[2:4]))
	if len(frame)-RequestHeaderSize != n {
		return Frame{}, fmt.Errorf("%w: header says %d, got %d", ErrLengthMismatch, n, len(frame)-RequestHeaderSize)
	}
	return Frame{Seq: frame[0], Op: Op(frame[1]), Payload: frame[RequestHeaderSize:]}, nil
}

// EncodeResponse builds a response frame.
func EncodeResponse(f Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes for %s", ErrPayloadTooLarge, len(f.Payload), f.Op)
	}
	buf := make([]byte, ResponseHeaderSize+len(f.Payload))
	buf[0] = f.Seq
	buf[1] = byte(f.Op)
	binary.LittleEndian.PutUint32(buf[2:6], uint32(int32(f.Status)))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(f.Payload)))
	copy(buf[ResponseHeaderSize:], f.Payload)
	return buf, nil
}

// DecodeResponse parses a response frame. Bytes after the declared payload
// are USB padding and ignored.
func DecodeResponse(frame []byte) (Frame, error) {
	if len(frame) < ResponseHeaderSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(frame))
	}
	n := int(binary.LittleEndian.Uint16(frame[6:8]))
	if len(frame)-ResponseHeaderSize < n {
		return Frame{}, fmt.Errorf("%w: header says %d, got %d", ErrLengthMismatch, n, len(frame)-ResponseHeaderSize)
	}
	return Frame{
		Seq:     frame[0],
		Op:      Op(frame[1]),
		Status:  rio.Status(int32(binary.LittleEndian.Uint32(frame[2:6]))),
		Payload: frame[ResponseHeaderSize : ResponseHeaderSize+n],
	}, nil
}

// ValidateResponse checks that resp answers req.
func ValidateResponse(req, resp Frame) error {
	if resp.Seq != req.Seq {
		return fmt.Errorf("%w: sent %d, got %d", ErrSequenceMismatch, req.Seq, resp.Seq)
	}
	if resp.Op != req.Op {
		return fmt.Errorf("%w: sent %s, got %s", ErrUnexpectedOp, req.Op, resp.Op)
	}
	return nil
}

// TimeoutMillis converts a timeout to the wire form: milliseconds rounded
// up, -1 for rio.Infinite.
func TimeoutMillis(d time.Duration) int32 {
	if d < 0 {
		return -1
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > 1<<31-1 {
		return 1<<31 - 1
	}
	return int32(ms)
}

// payload accumulates little-endian request fields.
type payload []byte

func (p payload) u8(v uint8) payload   { return append(p, v) }
func (p payload) u16(v uint16) payload { return binary.LittleEndian.AppendUint16(p, v) }
func (p payload) u32(v uint32) payload { return binary.LittleEndian.AppendUint32(p, v) }
func (p payload) i32(v int32) payload  { return p.u32(uint32(v)) }
func (p payload) bytes(b []byte) payload {
	return append(p, b...)
}

func (p payload) str(s string) payload {
	return append(p.u16(uint16(len(s))), s...)
}

// reader consumes little-endian response fields. The first short read
// sticks in err.
type reader struct {
	buf []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf) < n {
		r.err = fmt.Errorf("%w: need %d bytes, have %d", ErrShortFrame, n, len(r.buf))
		return nil
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out
}

func (r *reader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *reader) i32() int32 { return int32(r.u32()) }

func (r *reader) str() string {
	n := int(r.u16())
	return string(r.take(n))
}

func (r *reader) rest() []byte {
	out := r.buf
	r.buf = nil
	return out
}
