package rio

import (
	"context"
	"time"
)

// Handle identifies an open connection inside a Driver.
type Handle uint32

// IrqContext identifies a reserved interrupt wait context inside a Driver.
type IrqContext uint32

// OpenAttribute modifies Driver.Open.
type OpenAttribute uint32

const (
	// OpenNoRun leaves the image stopped after it is loaded.
	OpenNoRun OpenAttribute = 1 << iota
	// OpenForceDownload replaces whatever image the target is running.
	OpenForceDownload
)

// CloseAttribute modifies Driver.Close.
type CloseAttribute uint32

const (
	// CloseNoReset keeps the image running after the last session closes.
	CloseNoReset CloseAttribute = 1
)

// Infinite disables the timeout on FIFO and IRQ waits.
const Infinite time.Duration = -1

//go:generate mockgen -source=driver.go -destination=mock_driver_test.go -package=rio

// Driver is the raw, handle-based interface to an FPGA target. Every call
// reports a Status; Session converts them into errors. Implementations must be
// safe for concurrent use and keep each individual transfer atomic.
//
// The context passed to blocking calls is cancelled when the owning session
// closes; drivers should return StatusTransferAborted when that happens.
type Driver interface {
	Open(bitfile, signature, target string, attr OpenAttribute) (Handle, Status)
	Close(h Handle, attr CloseAttribute) Status

	Run(h Handle) Status
	Abort(h Handle) Status
	Reset(h Handle) Status
	Download(h Handle) Status

	ReadRegister(h Handle, addr uint32, buf []byte) Status
	WriteRegister(h Handle, addr uint32, buf []byte) Status

	ConfigureFifo(h Handle, fifo uint32, depth int) (int, Status)
	StartFifo(h Handle, fifo uint32) Status
	StopFifo(h Handle, fifo uint32) Status
	// ReadFifo moves up to len(dst)/elemSize elements into dst. It returns the
	// number of elements moved and the number still waiting in the FIFO.
	ReadFifo(ctx context.Context, h Handle, fifo uint32, dst []byte, elemSize int, timeout time.Duration) (int, int, Status)
	// WriteFifo moves up to len(src)/elemSize elements from src. It returns
	// the number of elements accepted and the free space left in the FIFO.
	WriteFifo(ctx context.Context, h Handle, fifo uint32, src []byte, elemSize int, timeout time.Duration) (int, int, Status)
	// AcquireFifoRead waits for exactly len(dst)/elemSize elements and copies
	// them into dst without consuming them. It returns the number of elements
	// queued behind the acquired ones.
	AcquireFifoRead(ctx context.Context, h Handle, fifo uint32, dst []byte, elemSize int, timeout time.Duration) (int, Status)
	// AcquireFifoWrite waits for space for count elements and reserves it. It
	// returns the free space left after the reservation.
	AcquireFifoWrite(ctx context.Context, h Handle, fifo uint32, count, elemSize int, timeout time.Duration) (int, Status)
	// ReleaseFifoElements returns count acquired elements to the FIFO. On a
	// host-to-target FIFO data carries the packed elements to commit.
	ReleaseFifoElements(h Handle, fifo uint32, count int, data []byte) Status

	ReserveIrqContext(h Handle) (IrqContext, Status)
	UnreserveIrqContext(h Handle, ictx IrqContext) Status
	WaitOnIrqs(ctx context.Context, h Handle, ictx IrqContext, irqs IrqSet, timeout time.Duration) (IrqSet, bool, Status)
	AcknowledgeIrqs(h Handle, irqs IrqSet) Status
}
