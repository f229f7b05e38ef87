package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// literalLexer tokenizes the textual value syntax used on the command line:
// numbers, bare words (true/false, field names) and the [ ] { } , : punctuation.
var literalLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Number", Pattern: `[-+]?(0[xX][0-9a-fA-F_]+|0[bB][01_]+|(\d[\d_]*\.?\d*|\.\d+)([eE][-+]?\d+)?)`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[\[\]{},:]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type literal struct {
	Array   *arrayLiteral   `  @@`
	Cluster *clusterLiteral `| @@`
	Number  *string         `| @Number`
	Word    *string         `| @Ident`
}

type arrayLiteral struct {
	Items []*literal `"[" ( @@ ( "," @@ )* )? "]"`
}

type clusterLiteral struct {
	Fields []*fieldLiteral `"{" ( @@ ( "," @@ )* )? "}"`
}

type fieldLiteral struct {
	Name  string   `( @Ident ":" )?`
	Value *literal `@@`
}

var literalParser = participle.MustBuild[literal](
	participle.Lexer(literalLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// ParseValue parses text such as "0x2A", "-1.5", "[1, 2, 3]" or
// "{X: 1, Y: 2}" into a Value shaped by d.
func ParseValue(d *Descriptor, text string) (Value, error) {
	lit, err := literalParser.ParseString("", text)
	if err != nil {
		return Value{}, fmt.Errorf("parse error: %w", err)
	}
	return lit.value(d)
}

func (l *literal) value(d *Descriptor) (Value, error) {
	switch d.Kind {
	case KindArray:
		if l.Array == nil {
			return Value{}, fmt.Errorf("%w: %s expects [...]", ErrShapeMismatch, d)
		}
		if len(l.Array.Items) != d.Count {
			return Value{}, fmt.Errorf("%w: %s expects %d elements, got %d", ErrShapeMismatch, d, d.Count, len(l.Array.Items))
		}
		items := make([]Value, d.Count)
		for i, item := range l.Array.Items {
			v, err := item.value(d.Elem)
			if err != nil {
				return Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			items[i] = v
		}
		return List(items...), nil
	case KindCluster:
		if l.Cluster == nil {
			return Value{}, fmt.Errorf("%w: %s expects {...}", ErrShapeMismatch, d)
		}
		return l.Cluster.value(d)
	}

	var text string
	switch {
	case l.Number != nil:
		text = *l.Number
	case l.Word != nil:
		text = *l.Word
	default:
		return Value{}, fmt.Errorf("%w: %s expects a scalar", ErrShapeMismatch, d)
	}

	switch {
	case d.Kind == KindFixedPoint:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, err
		}
		return FloatToFixed(d, f), nil
	case d.Boolean:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(b), nil
	case d.Float && d.Width == 32:
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return Value{}, err
		}
		return Float32Value(float32(f)), nil
	case d.Float:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, err
		}
		return Float64Value(f), nil
	case strings.HasPrefix(text, "-"):
		n, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return Value{}, err
		}
		return Int(n), nil
	default:
		n, err := strconv.ParseUint(strings.TrimPrefix(text, "+"), 0, 64)
		if err != nil {
			return Value{}, err
		}
		return Uint(n), nil
	}
}

func (c *clusterLiteral) value(d *Descriptor) (Value, error) {
	if len(c.Fields) != len(d.Fields) {
		return Value{}, fmt.Errorf("%w: %s expects %d fields, got %d", ErrShapeMismatch, d, len(d.Fields), len(c.Fields))
	}
	items := make([]Value, len(d.Fields))
	set := make([]bool, len(d.Fields))
	for i, f := range c.Fields {
		idx := i
		if f.Name != "" {
			idx = fieldIndex(d, f.Name)
			if idx < 0 {
				return Value{}, fmt.Errorf("%w: %s has no field %q", ErrShapeMismatch, d, f.Name)
			}
		}
		if set[idx] {
			return Value{}, fmt.Errorf("field %q given twice", d.Fields[idx].Name)
		}
		v, err := f.Value.value(d.Fields[idx].Type)
		if err != nil {
			return Value{}, fmt.Errorf("field %q: %w", d.Fields[idx].Name, err)
		}
		items[idx] = v
		set[idx] = true
	}
	return List(items...), nil
}

func fieldIndex(d *Descriptor, name string) int {
	for i, f := range d.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// FormatValue renders v in the syntax accepted by ParseValue.
func FormatValue(d *Descriptor, v Value) string {
	var sb strings.Builder
	formatInto(&sb, d, v)
	return sb.String()
}

func formatInto(sb *strings.Builder, d *Descriptor, v Value) {
	switch d.Kind {
	case KindArray:
		sb.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatInto(sb, d.Elem, v.Index(i))
		}
		sb.WriteByte(']')
	case KindCluster:
		sb.WriteByte('{')
		for i := 0; i < v.Len() && i < len(d.Fields); i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			if d.Fields[i].Name != "" {
				sb.WriteString(d.Fields[i].Name)
				sb.WriteString(": ")
			}
			formatInto(sb, d.Fields[i].Type, v.Index(i))
		}
		sb.WriteByte('}')
	case KindFixedPoint:
		sb.WriteString(strconv.FormatFloat(FixedToFloat(d, v), 'g', -1, 64))
	default:
		switch {
		case d.Boolean:
			sb.WriteString(strconv.FormatBool(v.Bool()))
		case d.Float && d.Width == 32:
			sb.WriteString(strconv.FormatFloat(float64(v.Float32()), 'g', -1, 32))
		case d.Float:
			sb.WriteString(strconv.FormatFloat(v.Float64(), 'g', -1, 64))
		case d.Signed:
			sb.WriteString(strconv.FormatInt(v.Int(), 10))
		default:
			sb.WriteString(strconv.FormatUint(v.Uint(), 10))
		}
	}
}
