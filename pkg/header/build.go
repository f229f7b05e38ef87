package header

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceRIO/internal/logging"
	"github.com/OpenTraceLab/OpenTraceRIO/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceRIO/pkg/rio"
)

var (
	ErrNoInterface = errors.New("header: interface name unknown")
	ErrNoSignature = errors.New("header: signature not found")
	ErrNoBitfile   = errors.New("header: bitfile name not found")
	ErrUnknownType = errors.New("header: unknown type")
	ErrIncomplete  = errors.New("header: incomplete resource definition")
	ErrPackedSize  = errors.New("header: packed size disagrees with type")
)

// resourceKind is the Control/Indicator/FIFO part of a generated type name.
type resourceKind struct {
	prefix string
	dir    rio.Direction
	fifo   bool
	array  bool
}

// Ordered so that longer prefixes win.
var resourceKinds = []resourceKind{
	{"ControlArray", rio.Control, false, true},
	{"IndicatorArray", rio.Indicator, false, true},
	{"Control", rio.Control, false, false},
	{"Indicator", rio.Indicator, false, false},
	{"TargetToHostFifo", rio.Indicator, true, false},
	{"HostToTargetFifo", rio.Control, true, false},
}

func splitKind(name string) (resourceKind, string, bool) {
	for _, k := range resourceKinds {
		if rest, ok := strings.CutPrefix(name, k.prefix); ok {
			return k, rest, true
		}
	}
	return resourceKind{}, "", false
}

// scalarTypes maps the type part of enum names (ControlU8, IndicatorSgl).
var scalarTypes = map[string]func() *codec.Descriptor{
	"Bool": codec.Bool,
	"I8":   func() *codec.Descriptor { return codec.Signed(8) },
	"U8":   func() *codec.Descriptor { return codec.Unsigned(8) },
	"I16":  func() *codec.Descriptor { return codec.Signed(16) },
	"U16":  func() *codec.Descriptor { return codec.Unsigned(16) },
	"I32":  func() *codec.Descriptor { return codec.Signed(32) },
	"U32":  func() *codec.Descriptor { return codec.Unsigned(32) },
	"I64":  func() *codec.Descriptor { return codec.Signed(64) },
	"U64":  func() *codec.Descriptor { return codec.Unsigned(64) },
	"Sgl":  codec.Float32,
	"Dbl":  codec.Float64,
}

// cTypes maps C member types of cluster structs.
var cTypes = map[string]string{
	"NiFpga_Bool": "Bool",
	"int8_t":      "I8",
	"uint8_t":     "U8",
	"int16_t":     "I16",
	"uint16_t":    "U16",
	"int32_t":     "I32",
	"uint32_t":    "U32",
	"int64_t":     "I64",
	"uint64_t":    "U64",
	"float":       "Sgl",
	"double":      "Dbl",
}

func scalar(typ string) (*codec.Descriptor, error) {
	if mk, ok := scalarTypes[typ]; ok {
		return mk(), nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownType, typ)
}

// custom gathers the constants that together define one FXP or cluster
// resource.
type custom struct {
	kind     resourceKind
	flavor   string // "Fxp" or "Cluster"
	name     string
	address  *uint32
	typeInfo []int64
	size     *int
	packed   *int
}

type builder struct {
	prefix  string
	log     *slog.Logger
	structs map[string]*StructDecl

	resources []*rio.Resource
	arrays    []pendingArray
	sizes     map[string]int
	customs   map[string]*custom
	order     []string
}

type pendingArray struct {
	kind    resourceKind
	name    string
	typ     string
	address uint32
}

// Build turns a parsed header into a catalog. name is the interface name
// (the Main in NiFpga_Main.h); when empty it falls back to f.Interface and
// then to the NiFpga_<Name>_Signature constant.
func Build(f *File, name string) (*rio.Catalog, error) {
	if name == "" {
		name = f.Interface
	}
	if name == "" {
		name = detectInterface(f)
	}
	if name == "" {
		return nil, ErrNoInterface
	}
	b := &builder{
		prefix:  "NiFpga_" + name + "_",
		log:     logging.For(logging.ComponentHeader).With("interface", name),
		structs: make(map[string]*StructDecl),
		sizes:   make(map[string]int),
		customs: make(map[string]*custom),
	}

	signature, bitfile := b.identity(f)
	if signature == "" {
		return nil, fmt.Errorf("%w: %sSignature", ErrNoSignature, b.prefix)
	}
	if bitfile == "" {
		return nil, fmt.Errorf("%w: %sBitfile", ErrNoBitfile, b.prefix)
	}

	for _, s := range f.Structs() {
		b.structs[s.Name] = s
	}
	for _, e := range f.Enums() {
		if err := b.enum(e); err != nil {
			return nil, err
		}
	}
	if err := b.resolveArrays(); err != nil {
		return nil, err
	}
	for _, c := range f.Consts() {
		if err := b.constant(c); err != nil {
			return nil, err
		}
	}
	for _, key := range b.order {
		if err := b.finishCustom(b.customs[key]); err != nil {
			return nil, err
		}
	}

	b.log.Debug("built catalog", "resources", len(b.resources), "signature", signature)
	return rio.NewCatalog(name, bitfile, signature, b.resources...)
}

func detectInterface(f *File) string {
	for _, c := range f.Consts() {
		if rest, ok := strings.CutPrefix(c.Name, "NiFpga_"); ok {
			if name, ok := strings.CutSuffix(rest, "_Signature"); ok && name != "" {
				return name
			}
		}
	}
	return ""
}

// identity finds the signature constant and the bitfile #define.
func (b *builder) identity(f *File) (signature, bitfile string) {
	for _, c := range f.Consts() {
		switch c.Name {
		case b.prefix + "Signature":
			signature, _ = c.Value.StringValue()
		case b.prefix + "Bitfile":
			bitfile, _ = c.Value.StringValue()
		}
	}
	defines := f.Defines()
	if v, ok := defines[b.prefix+"Bitfile"]; ok && bitfile == "" {
		bitfile, _ = strconv.Unquote(v)
	}
	if v, ok := defines[b.prefix+"Signature"]; ok && signature == "" {
		signature, _ = strconv.Unquote(v)
	}
	return signature, bitfile
}

func (b *builder) enum(e *EnumDecl) error {
	rest, ok := strings.CutPrefix(e.Name, b.prefix)
	if !ok {
		return nil
	}
	kind, typ, ok := splitKind(rest)
	if !ok {
		b.log.Debug("skipping enum", "name", e.Name)
		return nil
	}
	sizeTable := false
	if kind.array {
		typ, sizeTable = strings.CutSuffix(typ, "Size")
	}

	for _, m := range e.Members {
		if m.Value == nil {
			return fmt.Errorf("%w: %s has no value (%s)", ErrIncomplete, m.Name, e.Pos)
		}
		v, err := parseNumber(*m.Value)
		if err != nil {
			return fmt.Errorf("header: %s: %w", m.Name, err)
		}
		name := memberName(e.Name, m.Name)

		switch {
		case sizeTable:
			b.sizes[name] = int(v)
		case kind.array:
			b.arrays = append(b.arrays, pendingArray{kind: kind, name: name, typ: typ, address: uint32(v)})
		default:
			desc, err := scalar(typ)
			if err != nil {
				return fmt.Errorf("%s: %w", e.Name, err)
			}
			b.add(kind, name, uint32(v), desc)
		}
	}
	return nil
}

// memberName strips the enum type name from a member: the member
// NiFpga_Main_ControlU8_U8Sum of NiFpga_Main_ControlU8 is U8Sum.
func memberName(enum, member string) string {
	if name, ok := strings.CutPrefix(member, enum+"_"); ok {
		return name
	}
	if i := strings.LastIndexByte(member, '_'); i >= 0 {
		return member[i+1:]
	}
	return member
}

func (b *builder) add(kind resourceKind, name string, address uint32, desc *codec.Descriptor) {
	if kind.fifo {
		b.resources = append(b.resources, rio.NewFifo(name, address, desc, kind.dir))
		return
	}
	b.resources = append(b.resources, rio.NewRegister(name, address, desc, kind.dir))
}

func (b *builder) resolveArrays() error {
	for _, a := range b.arrays {
		count, ok := b.sizes[a.name]
		if !ok {
			return fmt.Errorf("%w: array %s has no size", ErrIncomplete, a.name)
		}
		elem, err := scalar(a.typ)
		if err != nil {
			return fmt.Errorf("%s: %w", a.name, err)
		}
		desc := &codec.Descriptor{Kind: codec.KindArray, Elem: elem, Count: count}
		if err := desc.Validate(); err != nil {
			return fmt.Errorf("header: %s: %w", a.name, err)
		}
		b.add(a.kind, a.name, a.address, desc)
	}
	return nil
}

// constant records one NiFpga_<Name>_<Kind><Flavor>[Array]_<Control>_<Suffix>
// constant.
func (b *builder) constant(c *ConstDecl) error {
	rest, ok := strings.CutPrefix(c.Name, b.prefix)
	if !ok {
		return nil
	}
	first := strings.IndexByte(rest, '_')
	last := strings.LastIndexByte(rest, '_')
	if first < 0 || first == last {
		return nil
	}
	kindName, control, suffix := rest[:first], rest[first+1:last], rest[last+1:]

	kind, flavor, ok := splitCustomKind(kindName)
	if !ok {
		b.log.Debug("skipping constant", "name", c.Name)
		return nil
	}
	key := kindName + "_" + control
	cu, seen := b.customs[key]
	if !seen {
		cu = &custom{kind: kind, flavor: flavor, name: control}
		b.customs[key] = cu
		b.order = append(b.order, key)
	}

	switch suffix {
	case "Resource":
		v, err := c.Value.NumberValue()
		if err != nil {
			return fmt.Errorf("header: %s: %w", c.Name, err)
		}
		addr := uint32(v)
		cu.address = &addr
	case "TypeInfo":
		vals, err := c.Value.ListValues()
		if err != nil {
			return fmt.Errorf("header: %s: %w", c.Name, err)
		}
		if len(vals) < 3 {
			return fmt.Errorf("%w: %s needs {signed, wordLength, integerWordLength}", ErrIncomplete, c.Name)
		}
		cu.typeInfo = vals
	case "Size", "PackedSizeInBytes":
		v, err := c.Value.NumberValue()
		if err != nil {
			return fmt.Errorf("header: %s: %w", c.Name, err)
		}
		n := int(v)
		if suffix == "Size" {
			cu.size = &n
		} else {
			cu.packed = &n
		}
	default:
		b.log.Debug("ignoring constant", "name", c.Name)
	}
	return nil
}

// splitCustomKind parses IndicatorFxp, ControlClusterArray,
// TargetToHostFifoFxp and the like.
func splitCustomKind(name string) (resourceKind, string, bool) {
	array := false
	if trimmed, ok := strings.CutSuffix(name, "Array"); ok {
		name, array = trimmed, true
	}
	for _, flavor := range []string{"Fxp", "Cluster"} {
		base, ok := strings.CutSuffix(name, flavor)
		if !ok {
			continue
		}
		for _, k := range resourceKinds {
			if k.prefix == base && !k.array {
				if array && k.fifo {
					return resourceKind{}, "", false
				}
				k.array = array
				return k, flavor, true
			}
		}
	}
	return resourceKind{}, "", false
}

func (b *builder) finishCustom(cu *custom) error {
	if cu.address == nil {
		return fmt.Errorf("%w: %s has no _Resource constant", ErrIncomplete, cu.name)
	}

	var elem *codec.Descriptor
	switch cu.flavor {
	case "Fxp":
		if cu.typeInfo == nil {
			return fmt.Errorf("%w: %s has no _TypeInfo constant", ErrIncomplete, cu.name)
		}
		elem = &codec.Descriptor{
			Kind:         codec.KindFixedPoint,
			Signed:       cu.typeInfo[0] != 0,
			Width:        int(cu.typeInfo[1]),
			FractionBits: int(cu.typeInfo[1] - cu.typeInfo[2]),
		}
	default:
		typeName := b.prefix + cu.kindName() + "_" + cu.name + "_Type"
		s, ok := b.structs[typeName]
		if !ok {
			return fmt.Errorf("%w: %s has no %s struct", ErrIncomplete, cu.name, typeName)
		}
		var err error
		if elem, err = b.cluster(s, 0); err != nil {
			return fmt.Errorf("header: %s: %w", cu.name, err)
		}
		if cu.packed != nil && *cu.packed != elem.PackedSize() {
			return fmt.Errorf("%w: %s declares %d bytes, %s packs to %d",
				ErrPackedSize, cu.name, *cu.packed, elem, elem.PackedSize())
		}
	}

	desc := elem
	if cu.kind.array {
		if cu.size == nil {
			return fmt.Errorf("%w: %s has no _Size constant", ErrIncomplete, cu.name)
		}
		desc = &codec.Descriptor{Kind: codec.KindArray, Elem: elem, Count: *cu.size}
	}
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("header: %s: %w", cu.name, err)
	}
	b.add(cu.kind, cu.name, *cu.address, desc)
	return nil
}

func (cu *custom) kindName() string {
	name := cu.kind.prefix + cu.flavor
	if cu.kind.array {
		name += "Array"
	}
	return name
}

// cluster converts a struct typedef. Members may be scalars, fixed size
// arrays or other cluster structs.
func (b *builder) cluster(s *StructDecl, depth int) (*codec.Descriptor, error) {
	if depth > 8 {
		return nil, fmt.Errorf("%w: %s nests too deeply", ErrUnknownType, s.Name)
	}
	fields := make([]codec.Field, 0, len(s.Fields))
	for _, m := range s.Fields {
		var t *codec.Descriptor
		if name, ok := cTypes[m.Type]; ok {
			t, _ = scalar(name)
		} else if nested, ok := b.structs[m.Type]; ok {
			var err error
			if t, err = b.cluster(nested, depth+1); err != nil {
				return nil, err
			}
		} else {
			return nil, fmt.Errorf("%w %q in %s", ErrUnknownType, m.Type, s.Name)
		}
		if m.Count != nil {
			n, err := parseNumber(*m.Count)
			if err != nil {
				return nil, err
			}
			t = &codec.Descriptor{Kind: codec.KindArray, Elem: t, Count: int(n)}
		}
		fields = append(fields, codec.Field{Name: m.Name, Type: t})
	}
	d := &codec.Descriptor{Kind: codec.KindCluster, Fields: fields}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}
