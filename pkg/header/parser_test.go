package header

import (
	"errors"
	"strings"
	"testing"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/rio"
)

// mainHeader is the generated header for the adder example image.
const mainHeader = `/*
 * Generated with the FPGA Interface C API Generator 19.0
 * for NI-RIO 19.0 or later.
 */
#ifndef __NiFpga_Main_h__
#define __NiFpga_Main_h__

#ifndef NiFpga_Version
   #define NiFpga_Version 190
#endif

#include "NiFpga.h"

/**
 * The filename of the FPGA bitfile.
 *
 * This is a #define to allow for string literal concatenation. For example:
 *
 *    static const char* const Bitfile = "C:\\" NiFpga_Main_Bitfile;
 */
#define NiFpga_Main_Bitfile "NiFpga_Main.lvbitx"

/**
 * The signature of the FPGA bitfile.
 */
static const char* const NiFpga_Main_Signature = "728411ED7A6557687BCF28DB1D70ACF2";

#if NiFpga_Cpp
extern "C"
{
#endif

typedef enum
{
   NiFpga_Main_IndicatorU8_U8Result = 0x1800A,
} NiFpga_Main_IndicatorU8;

typedef enum
{
   NiFpga_Main_ControlU8_U8Control = 0x18002,
   NiFpga_Main_ControlU8_U8Sum = 0x18006,
} NiFpga_Main_ControlU8;


#if NiFpga_Cpp
}
#endif

#endif
`

// customHeader exercises arrays, FIFOs, fixed-point and cluster resources.
const customHeader = `
#define NiFpga_Custom_Bitfile "NiFpga_Custom.lvbitx"
static const char* const NiFpga_Custom_Signature = "0123456789ABCDEF0123456789ABCDEF";

typedef enum
{
   NiFpga_Custom_ControlArrayU8_Coefficients = 0x18014,
   NiFpga_Custom_ControlArrayU8_Offsets = 0x18010
} NiFpga_Custom_ControlArrayU8;

typedef enum
{
   NiFpga_Custom_ControlArrayU8Size_Coefficients = 4,
   NiFpga_Custom_ControlArrayU8Size_Offsets = 2,
} NiFpga_Custom_ControlArrayU8Size;

typedef enum
{
   NiFpga_Custom_IndicatorSgl_Temperature = 0x18018,
} NiFpga_Custom_IndicatorSgl;

typedef enum
{
   NiFpga_Custom_IndicatorBool_Done_Flag = 0x1801E,
} NiFpga_Custom_IndicatorBool;

typedef enum
{
   NiFpga_Custom_TargetToHostFifoI16_Samples = 0,
} NiFpga_Custom_TargetToHostFifoI16;

typedef enum
{
   NiFpga_Custom_HostToTargetFifoU32_Commands = 1,
} NiFpga_Custom_HostToTargetFifoU32;

/* Indicator: Gain */
const NiFpga_FxpTypeInfo NiFpga_Custom_IndicatorFxp_Gain_TypeInfo =
{
   1,
   33,
   17
};
const uint32_t NiFpga_Custom_IndicatorFxp_Gain_Resource = 0x1803C;

const NiFpga_FxpTypeInfo NiFpga_Custom_ControlFxpArray_Taps_TypeInfo = {0, 16, 4};
const uint32_t NiFpga_Custom_ControlFxpArray_Taps_Resource = 0x18040u;
const uint32_t NiFpga_Custom_ControlFxpArray_Taps_Size = 4;

typedef struct NiFpga_Custom_IndicatorCluster_Position_Type{
   int16_t X;
   int16_t Y;
}NiFpga_Custom_IndicatorCluster_Position_Type;

const uint32_t NiFpga_Custom_IndicatorCluster_Position_Resource = 0x18048;
const uint32_t NiFpga_Custom_IndicatorCluster_Position_PackedSizeInBytes = 4;

void NiFpga_Custom_IndicatorCluster_Position_UnpackCluster(
   const uint8_t* const packedData,
   NiFpga_Custom_IndicatorCluster_Position_Type* const destination);

typedef struct NiFpga_Custom_ControlClusterArray_Route_Type{
   NiFpga_Bool Valid;
   uint8_t Raw[3];
   NiFpga_Custom_IndicatorCluster_Position_Type Where;
}NiFpga_Custom_ControlClusterArray_Route_Type;

const uint32_t NiFpga_Custom_ControlClusterArray_Route_Resource = 0x18050;
const uint32_t NiFpga_Custom_ControlClusterArray_Route_Size = 2;
const uint32_t NiFpga_Custom_ControlClusterArray_Route_PackedSizeInBytes = 8;
`

func TestParseMainHeader(t *testing.T) {
	f, err := ParseString("NiFpga_Main.h", mainHeader)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if f.Interface != "Main" {
		t.Errorf("Expected interface 'Main', got '%s'", f.Interface)
	}

	enums := f.Enums()
	if len(enums) != 2 {
		t.Fatalf("Expected 2 enums, got %d", len(enums))
	}
	if enums[1].Name != "NiFpga_Main_ControlU8" || len(enums[1].Members) != 2 {
		t.Errorf("Unexpected second enum %s with %d members", enums[1].Name, len(enums[1].Members))
	}

	consts := f.Consts()
	if len(consts) != 1 {
		t.Fatalf("Expected 1 constant, got %d", len(consts))
	}
	if !consts[0].Static || !consts[0].Pointer || consts[0].Type != "char" {
		t.Errorf("Signature declaration parsed as %+v", consts[0])
	}

	defines := f.Defines()
	if defines["NiFpga_Main_Bitfile"] != `"NiFpga_Main.lvbitx"` {
		t.Errorf("Bitfile define = %q", defines["NiFpga_Main_Bitfile"])
	}
	if defines["NiFpga_Version"] != "190" {
		t.Errorf("Version define = %q", defines["NiFpga_Version"])
	}
}

func TestBuildMainCatalog(t *testing.T) {
	f, err := ParseString("NiFpga_Main.h", mainHeader)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	c, err := Build(f, "")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if c.Name != "Main" || c.Bitfile != "NiFpga_Main.lvbitx" || c.Signature != "728411ED7A6557687BCF28DB1D70ACF2" {
		t.Errorf("Unexpected identity %s %s %s", c.Name, c.Bitfile, c.Signature)
	}

	tests := []struct {
		name    string
		address uint32
		dir     rio.Direction
	}{
		{"U8Control", 0x18002, rio.Control},
		{"U8Sum", 0x18006, rio.Control},
		{"U8Result", 0x1800A, rio.Indicator},
	}
	for _, tt := range tests {
		r, err := c.Lookup(tt.name)
		if err != nil {
			t.Errorf("Lookup(%s): %v", tt.name, err)
			continue
		}
		if r.Address() != tt.address || r.Direction() != tt.dir || r.Descriptor().String() != "u8" {
			t.Errorf("%s = 0x%X %s %s", tt.name, r.Address(), r.Direction(), r.Descriptor())
		}
	}
	if got := len(c.Resources()); got != 3 {
		t.Errorf("Expected 3 resources, got %d", got)
	}
}

func TestBuildCustomTypes(t *testing.T) {
	f, err := ParseString("custom.h", customHeader)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if f.Interface != "" {
		t.Errorf("Expected no interface from file name, got %q", f.Interface)
	}
	// Interface comes from the signature constant.
	c, err := Build(f, "")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if c.Name != "Custom" {
		t.Errorf("Expected catalog 'Custom', got %q", c.Name)
	}

	tests := []struct {
		name    string
		address uint32
		kind    rio.ResourceKind
		dir     rio.Direction
		desc    string
	}{
		{"Coefficients", 0x18014, rio.KindRegister, rio.Control, "u8[4]"},
		{"Offsets", 0x18010, rio.KindRegister, rio.Control, "u8[2]"},
		{"Temperature", 0x18018, rio.KindRegister, rio.Indicator, "sgl"},
		{"Samples", 0, rio.KindFifo, rio.Indicator, "i16"},
		{"Commands", 1, rio.KindFifo, rio.Control, "u32"},
		{"Gain", 0x1803C, rio.KindRegister, rio.Indicator, "fxp<s33,17>"},
		{"Taps", 0x18040, rio.KindRegister, rio.Control, "fxp<u16,4>[4]"},
		{"Position", 0x18048, rio.KindRegister, rio.Indicator, "{i16,i16}"},
		{"Route", 0x18050, rio.KindRegister, rio.Control, "{bool,u8[3],{i16,i16}}[2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := c.Lookup(tt.name)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if r.Address() != tt.address {
				t.Errorf("Address = 0x%X, want 0x%X", r.Address(), tt.address)
			}
			if r.Kind() != tt.kind || r.Direction() != tt.dir {
				t.Errorf("Kind/Direction = %s/%s", r.Kind(), r.Direction())
			}
			if r.Descriptor().String() != tt.desc {
				t.Errorf("Descriptor = %s, want %s", r.Descriptor(), tt.desc)
			}
		})
	}

	// Member names keep their underscores.
	if d := mustLookup(t, c, "Done_Flag").Descriptor().String(); d != "bool" {
		t.Errorf("Done_Flag descriptor = %s", d)
	}
	if field := mustLookup(t, c, "Position").Descriptor().Fields[1].Name; field != "Y" {
		t.Errorf("Second cluster field = %s", field)
	}
}

func mustLookup(t *testing.T, c *rio.Catalog, name string) *rio.Resource {
	t.Helper()
	r, err := c.Lookup(name)
	if err != nil {
		t.Fatalf("Lookup(%s): %v", name, err)
	}
	return r
}

func TestBuildErrors(t *testing.T) {
	const identity = `
#define NiFpga_Bad_Bitfile "NiFpga_Bad.lvbitx"
static const char* const NiFpga_Bad_Signature = "AA";
`
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{
			name:  "no signature",
			input: `#define NiFpga_Bad_Bitfile "NiFpga_Bad.lvbitx"`,
			want:  ErrNoSignature,
		},
		{
			name:  "no bitfile",
			input: `static const char* const NiFpga_Bad_Signature = "AA";`,
			want:  ErrNoBitfile,
		},
		{
			name: "array without size",
			input: identity + `
typedef enum { NiFpga_Bad_IndicatorArrayU16_Data = 0x18000, } NiFpga_Bad_IndicatorArrayU16;`,
			want: ErrIncomplete,
		},
		{
			name: "unknown scalar",
			input: identity + `
typedef enum { NiFpga_Bad_ControlU128_Wide = 0x18000, } NiFpga_Bad_ControlU128;`,
			want: ErrUnknownType,
		},
		{
			name: "fxp without type info",
			input: identity + `
const uint32_t NiFpga_Bad_ControlFxp_Gain_Resource = 0x18000;`,
			want: ErrIncomplete,
		},
		{
			name: "packed size mismatch",
			input: identity + `
typedef struct NiFpga_Bad_ControlCluster_Pair_Type { uint8_t A; uint16_t B; } NiFpga_Bad_ControlCluster_Pair_Type;
const uint32_t NiFpga_Bad_ControlCluster_Pair_Resource = 0x18000;
const uint32_t NiFpga_Bad_ControlCluster_Pair_PackedSizeInBytes = 4;`,
			want: ErrPackedSize,
		},
		{
			name: "unknown member type",
			input: identity + `
typedef struct NiFpga_Bad_ControlCluster_Pair_Type { bool A; } NiFpga_Bad_ControlCluster_Pair_Type;
const uint32_t NiFpga_Bad_ControlCluster_Pair_Resource = 0x18000;`,
			want: ErrUnknownType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseString("NiFpga_Bad.h", tt.input)
			if err != nil {
				t.Fatalf("Failed to parse: %v", err)
			}
			if _, err := Build(f, ""); !errors.Is(err, tt.want) {
				t.Errorf("Build error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuildWithoutInterface(t *testing.T) {
	f, err := ParseString("", "typedef enum { A = 1 } Other;")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if _, err := Build(f, ""); !errors.Is(err, ErrNoInterface) {
		t.Errorf("Build error = %v", err)
	}
}

func TestParseSkipsUnknownSyntax(t *testing.T) {
	input := `
typedef uint8_t NiFpga_Bool;
NiFpga_Status NiFpga_Open(const char* bitfile, const char* signature, uint32_t attribute);
#define MULTI \
   LINE
static const uint32_t NiFpga_Main_Count = 3;
`
	f, err := ParseString("NiFpga_Main.h", input)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	consts := f.Consts()
	if len(consts) != 1 || consts[0].Name != "NiFpga_Main_Count" {
		t.Fatalf("Unexpected constants %+v", consts)
	}
	if n, err := consts[0].Value.NumberValue(); err != nil || n != 3 {
		t.Errorf("NumberValue = %d, %v", n, err)
	}
	if got := f.Defines()["MULTI"]; got != "LINE" {
		t.Errorf("Continued define = %q", got)
	}
}

func TestParseUnterminatedString(t *testing.T) {
	_, err := ParseString("NiFpga_Main.h", `static const char* const NiFpga_Main_Signature = "7284;`)
	if err == nil {
		t.Fatal("Expected parse error for unterminated string")
	}
	if !strings.Contains(err.Error(), "parse error") {
		t.Errorf("Unexpected error text: %v", err)
	}
}

func TestInterfaceFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"NiFpga_Main.h", "Main", true},
		{"/opt/fpga/NiFpga_Adder_Loop.h", "Adder_Loop", true},
		{"NiFpga.h", "", false},
		{"NiFpga_Main.c", "", false},
	}
	for _, tt := range tests {
		got, ok := InterfaceFromPath(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("InterfaceFromPath(%q) = %q, %v", tt.path, got, ok)
		}
	}
}
