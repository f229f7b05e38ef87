package cmd

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tebeka/atexit"

	"github.com/OpenTraceLab/OpenTraceRIO/internal/logging"
	"github.com/OpenTraceLab/OpenTraceRIO/pkg/bridge"
	"github.com/OpenTraceLab/OpenTraceRIO/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceRIO/pkg/header"
	"github.com/OpenTraceLab/OpenTraceRIO/pkg/rio"
	"github.com/OpenTraceLab/OpenTraceRIO/pkg/trace"
)

// autoTrace is the --trace value used when the flag is given without a name.
const autoTrace = "auto"

// simReady is called with every simulator the CLI creates, before the
// session opens.
var simReady func(*rio.SimDriver) error

// demoCatalog describes the bitfile the simulator runs when no header is
// given.
func demoCatalog() *rio.Catalog {
	point := codec.Cluster(
		codec.Field{Name: "X", Type: codec.Signed(16)},
		codec.Field{Name: "Y", Type: codec.Signed(16)},
	)
	c, err := rio.NewCatalog("Main", "NiFpga_Main.lvbitx", "728411ED7A6557687BCF28DB1D70ACF2",
		rio.NewRegister("U8Control", 0x18002, codec.Unsigned(8), rio.Control),
		rio.NewRegister("U8Sum", 0x18006, codec.Unsigned(8), rio.Control),
		rio.NewRegister("U8Result", 0x1800A, codec.Unsigned(8), rio.Indicator),
		rio.NewRegister("Gain", 0x18010, codec.FixedPoint(true, 16, 8), rio.Control),
		rio.NewRegister("Points", 0x18014, codec.Array(point, 2), rio.Control),
		rio.NewFifo("Samples", 0, codec.Signed(16), rio.Indicator),
		rio.NewFifo("Commands", 1, codec.Unsigned(32), rio.Control),
	)
	if err != nil {
		panic(err)
	}
	return c
}

// loadCatalog returns the catalog named by --header, or the demo catalog.
func loadCatalog() (*rio.Catalog, error) {
	if headerPath == "" {
		if driverName == "usb" {
			return nil, fmt.Errorf("--header is required with the usb driver")
		}
		return demoCatalog(), nil
	}
	return header.Load(headerPath)
}

// openDriver creates the driver selected by --driver. The returned function
// releases it.
func openDriver(c *rio.Catalog) (rio.Driver, func() error, error) {
	nop := func() error { return nil }
	newSim := func() (*rio.SimDriver, error) {
		sim := rio.NewSimDriver(c)
		if simReady != nil {
			if err := simReady(sim); err != nil {
				return nil, err
			}
		}
		return sim, nil
	}

	switch strings.ToLower(driverName) {
	case "sim":
		sim, err := newSim()
		if err != nil {
			return nil, nil, err
		}
		return sim, nop, nil
	case "loopback":
		sim, err := newSim()
		if err != nil {
			return nil, nil, err
		}
		server := bridge.NewServer(sim, bridge.Info{
			Firmware: "loopback",
			Serial:   "LOOPBACK",
			Targets:  []string{target},
		})
		d := bridge.New(bridge.NewLoopback(server))
		return d, d.Shutdown, nil
	case "usb":
		d, err := bridge.OpenUSB(serial)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Shutdown, nil
	default:
		return nil, nil, fmt.Errorf("unknown driver %q (want sim, usb or loopback)", driverName)
	}
}

// openSession opens a session configured from the global flags. The cleanup
// function is safe to call more than once and also runs on atexit.
func openSession() (*rio.Session, func(), error) {
	log := logging.For(logging.ComponentCLI)

	c, err := loadCatalog()
	if err != nil {
		return nil, nil, err
	}
	cfg := rio.ConfigFor(c, target)
	if bitfile != "" {
		cfg.Bitfile = bitfile
	}
	cfg.Options.RunOnOpen = !noRun
	cfg.Options.ForceReload = force
	cfg.Logger = log

	var rec *trace.Recorder
	if tracePath != "" {
		name := tracePath
		if name == autoTrace {
			name = ""
		}
		if rec, err = trace.New(name); err != nil {
			return nil, nil, err
		}
		cfg.Tracer = rec
	}

	driver, release, err := openDriver(c)
	if err != nil {
		closeRecorder(rec)
		return nil, nil, err
	}

	s, err := rio.Open(driver, cfg)
	if err != nil {
		release()
		closeRecorder(rec)
		return nil, nil, err
	}
	log.Debug("session open", "id", s.ID(), "target", target, "bitfile", cfg.Bitfile)

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.Close()
			if err := release(); err != nil {
				log.Warn("release driver", "error", err)
			}
			closeRecorder(rec)
		})
	}
	atexit.Register(cleanup)
	return s, cleanup, nil
}

func closeRecorder(rec *trace.Recorder) {
	if rec == nil {
		return
	}
	if err := rec.Close(); err != nil {
		logging.For(logging.ComponentCLI).Warn("close trace", "error", err)
	}
}

// lookup resolves name in the session's catalog.
func lookup(s *rio.Session, name string) (*rio.Resource, error) {
	return s.Catalog().Lookup(name)
}

// waitTimeout maps a negative duration to rio.Infinite.
func waitTimeout(d time.Duration) time.Duration {
	if d < 0 {
		return rio.Infinite
	}
	return d
}
