package rio

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/codec"
)

var (
	// ErrShapeMismatch is returned when a buffer or value does not match its
	// descriptor.
	ErrShapeMismatch = codec.ErrShapeMismatch

	ErrBitfileMismatch            = errors.New("rio: bitfile signature mismatch")
	ErrConnection                 = errors.New("rio: target unreachable")
	ErrAlreadyRunningIncompatible = errors.New("rio: a different bitfile is already running")
	ErrResourceNotFound           = errors.New("rio: resource not found")
	ErrReadOnlyResource           = errors.New("rio: resource is read-only")
	ErrIO                         = errors.New("rio: i/o error")
	ErrTimeoutExceeded            = errors.New("rio: timeout exceeded")
	ErrSessionClosed              = errors.New("rio: session closed")
	ErrInvalidState               = errors.New("rio: invalid state")
)

// Status is the raw status code returned by a Driver. Zero is success,
// negative values are errors and positive values are warnings.
type Status int32

const (
	StatusSuccess                    Status = 0
	StatusFifoTimeout                Status = -50400
	StatusTransferAborted            Status = -50405
	StatusMemoryFull                 Status = -52000
	StatusSoftwareFault              Status = -52003
	StatusInvalidParameter           Status = -52005
	StatusResourceNotFound           Status = -52006
	StatusResourceNotInitialized     Status = -52010
	StatusFpgaAlreadyRunning         Status = -61003
	StatusDownloadError              Status = -61018
	StatusDeviceTypeMismatch         Status = -61024
	StatusCommunicationTimeout       Status = -61046
	StatusIrqTimeout                 Status = -61060
	StatusCorruptBitfile             Status = -61070
	StatusBadDepth                   Status = -61072
	StatusBadReadWriteCount          Status = -61073
	StatusClockLostLock              Status = -61083
	StatusFpgaBusy                   Status = -61141
	StatusElementsNotPermissible     Status = -61219
	StatusFpgaBusyConfiguration      Status = -61252
	StatusInternalError              Status = -61499
	StatusTotalDmaFifoDepthExceeded  Status = -63003
	StatusAccessDenied               Status = -63033
	StatusHostVersionMismatch        Status = -63038
	StatusRpcConnectionError         Status = -63040
	StatusRpcSessionError            Status = -63043
	StatusFifoReserved               Status = -63082
	StatusFifoElementsAcquired       Status = -63083
	StatusMisalignedAccess           Status = -63084
	StatusControlOrIndicatorTooLarge Status = -63085
	StatusBitfileReadError           Status = -63101
	StatusSignatureMismatch          Status = -63106
	StatusIncompatibleBitfile        Status = -63107
	StatusHardwareFault              Status = -63150
	StatusInvalidResourceName        Status = -63192
	StatusFeatureNotSupported        Status = -63193
	StatusVersionMismatch            Status = -63194
	StatusInvalidSession             Status = -63195
	StatusOutOfHandles               Status = -63198
)

// WarningFpgaAlreadyRunning is reported by Run when the image is running.
const WarningFpgaAlreadyRunning Status = 61003

var statusText = map[Status]string{
	StatusSuccess:                    "no errors or warnings",
	StatusFifoTimeout:                "timeout expired before the FIFO operation completed",
	StatusTransferAborted:            "transfer aborted by the client",
	StatusMemoryFull:                 "memory allocation failed",
	StatusSoftwareFault:              "unexpected software error",
	StatusInvalidParameter:           "invalid parameter",
	StatusResourceNotFound:           "required resource not found",
	StatusResourceNotInitialized:     "required resource not initialized",
	StatusFpgaAlreadyRunning:         "FPGA already running",
	StatusDownloadError:              "error downloading the VI to the FPGA",
	StatusDeviceTypeMismatch:         "bitfile not compiled for this device type",
	StatusCommunicationTimeout:       "communication error between host and FPGA target",
	StatusIrqTimeout:                 "timeout expired before any IRQ was asserted",
	StatusCorruptBitfile:             "bitfile invalid or corrupt",
	StatusBadDepth:                   "invalid FIFO depth",
	StatusBadReadWriteCount:          "invalid number of FIFO elements",
	StatusClockLostLock:              "derived clock lost lock with its base clock",
	StatusFpgaBusy:                   "FPGA busy",
	StatusElementsNotPermissible:     "more elements requested than are unacquired",
	StatusFpgaBusyConfiguration:      "FPGA in configuration or discovery mode",
	StatusInternalError:              "unexpected internal error",
	StatusTotalDmaFifoDepthExceeded:  "unable to allocate memory for a FIFO",
	StatusAccessDenied:               "access to the remote system denied",
	StatusHostVersionMismatch:        "host software incompatible with target",
	StatusRpcConnectionError:         "connection to the remote device could not be established",
	StatusRpcSessionError:            "RPC session invalid",
	StatusFifoReserved:               "FIFO reserved by another session",
	StatusFifoElementsAcquired:       "FIFO elements still acquired",
	StatusMisalignedAccess:           "misaligned address",
	StatusControlOrIndicatorTooLarge: "control or indicator too large for target",
	StatusBitfileReadError:           "valid .lvbitx bitfile required",
	StatusSignatureMismatch:          "signature does not match the bitfile",
	StatusIncompatibleBitfile:        "bitfile incompatible with installed NI-RIO",
	StatusHardwareFault:              "unspecified hardware failure",
	StatusInvalidResourceName:        "invalid resource name or device not found",
	StatusFeatureNotSupported:        "feature not supported",
	StatusVersionMismatch:            "target software incompatible",
	StatusInvalidSession:             "session invalid or closed",
	StatusOutOfHandles:               "maximum number of sessions reached",
	WarningFpgaAlreadyRunning:        "FPGA already running",
}

// IsError reports whether s is a failure.
func (s Status) IsError() bool { return s < 0 }

// IsWarning reports whether s is a warning.
func (s Status) IsWarning() bool { return s > 0 }

// Description returns the text registered for s.
func (s Status) Description() string {
	if text, ok := statusText[s]; ok {
		return text
	}
	if s.IsWarning() {
		return "unknown warning"
	}
	return "unknown error"
}

func (s Status) Error() string {
	return fmt.Sprintf("NiFpga status %d: %s", int32(s), s.Description())
}

// Unwrap maps s onto the error taxonomy so callers can use errors.Is with the
// package sentinels.
func (s Status) Unwrap() error {
	switch s {
	case StatusSuccess:
		return nil
	case StatusSignatureMismatch, StatusCorruptBitfile, StatusBitfileReadError,
		StatusIncompatibleBitfile, StatusDeviceTypeMismatch:
		return ErrBitfileMismatch
	case StatusRpcConnectionError, StatusInvalidResourceName, StatusAccessDenied,
		StatusHostVersionMismatch, StatusVersionMismatch, StatusRpcSessionError:
		return ErrConnection
	case StatusFpgaAlreadyRunning:
		return ErrAlreadyRunningIncompatible
	case StatusResourceNotFound, StatusMisalignedAccess:
		return ErrResourceNotFound
	case StatusFifoTimeout, StatusIrqTimeout:
		return ErrTimeoutExceeded
	case StatusInvalidSession:
		return ErrSessionClosed
	case StatusResourceNotInitialized, StatusFifoElementsAcquired, StatusFifoReserved,
		StatusBadDepth, StatusBadReadWriteCount, StatusFpgaBusy, StatusFpgaBusyConfiguration:
		return ErrInvalidState
	}
	if s.IsWarning() {
		return nil
	}
	return ErrIO
}

// Err returns nil for success and warnings, s otherwise.
func (s Status) Err() error {
	if s.IsError() {
		return s
	}
	return nil
}
