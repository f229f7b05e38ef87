package rio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/codec"
)

const (
	testBitfile   = "NiFpga_Main.lvbitx"
	testSignature = "728411ED7A6557687BCF28DB1D70ACF2"
	testTarget    = "RIO0"

	otherBitfile   = "NiFpga_Other.lvbitx"
	otherSignature = "0123456789ABCDEF0123456789ABCDEF"
)

var (
	point = codec.Cluster(
		codec.Field{Name: "X", Type: codec.Signed(16)},
		codec.Field{Name: "Y", Type: codec.Signed(16)},
	)

	u8Control = NewRegister("U8Control", 0x18002, codec.Unsigned(8), Control)
	u8Sum     = NewRegister("U8Sum", 0x18006, codec.Unsigned(8), Control)
	u8Result  = NewRegister("U8Result", 0x1800A, codec.Unsigned(8), Indicator)
	points    = NewRegister("Points", 0x18010, codec.Array(point, 2), Control)
	i16Array  = NewRegister("I16Array", 0x18018, codec.Array(codec.Signed(16), 3), Control)
	fxpArray  = NewRegister("FxpArray", 0x18020, codec.Array(codec.FixedPoint(true, 33, 17), 4), Indicator)
	samples   = NewFifo("Samples", 0, codec.Signed(16), Indicator)
	commands  = NewFifo("Commands", 1, codec.Unsigned(32), Control)
)

func mainCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog("Main", testBitfile, testSignature,
		u8Control, u8Sum, u8Result, points, i16Array, fxpArray, samples, commands)
	require.NoError(t, err)
	return c
}

func otherCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog("Other", otherBitfile, otherSignature,
		NewRegister("Flag", 0x10000, codec.Bool(), Control))
	require.NoError(t, err)
	return c
}

// openSim returns a simulator with both images and a session on the main one.
func openSim(t *testing.T) (*SimDriver, *Session) {
	t.Helper()
	c := mainCatalog(t)
	sim := NewSimDriver(c, otherCatalog(t))
	s, err := Open(sim, ConfigFor(c, testTarget))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return sim, s
}

type recordingTracer struct {
	mu     sync.Mutex
	events []TraceEvent
}

func (r *recordingTracer) Trace(ev TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingTracer) ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Op
	}
	return out
}
