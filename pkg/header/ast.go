package header

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// File is a parsed NiFpga_<Name>.h header.
type File struct {
	// Interface is the <Name> part of the identifiers, when known.
	Interface string
	Decls     []*Decl
}

// translationUnit is the grammar root.
type translationUnit struct {
	Decls []*Decl `@@*`
}

// Decl is one top level item. Anything the grammar does not model is kept
// as a single skipped token.
type Decl struct {
	Directive *Directive  `  @@`
	Enum      *EnumDecl   `| @@`
	Struct    *StructDecl `| @@`
	Const     *ConstDecl  `| @@`
	Skipped   string      `| @( Ident | Number | String | Punct )`
}

// Directive is a preprocessor line such as
// #define NiFpga_Main_Bitfile "NiFpga_Main.lvbitx".
type Directive struct {
	Pos     lexer.Position
	Keyword string   `"#" @Ident`
	Args    []string `@( Ident | Number | String | Punct )* EOL?`
}

// EnumDecl is typedef enum { A = 1, B = 2, } Name;
type EnumDecl struct {
	Pos     lexer.Position
	Tag     string        `"typedef" "enum" @Ident? "{"`
	Members []*Enumerator `( @@ ","? )* "}"`
	Name    string        `@Ident ";"`
}

// Enumerator is one enum member.
type Enumerator struct {
	Name  string  `@Ident`
	Value *string `( "=" @Number )?`
}

// StructDecl is typedef struct Tag { fields } Name;
type StructDecl struct {
	Pos    lexer.Position
	Tag    string         `"typedef" "struct" @Ident? "{"`
	Fields []*StructField `@@* "}"`
	Name   string         `@Ident ";"`
}

// StructField is a struct member, optionally a fixed size array.
type StructField struct {
	Type  string  `@Ident`
	Name  string  `@Ident`
	Count *string `( "[" @Number "]" )? ";"`
}

// ConstDecl covers the constant forms used by the generator:
//
//	const uint32_t NiFpga_Main_IndicatorFxp_Gain_Resource = 0x18008;
//	const NiFpga_FxpTypeInfo NiFpga_Main_IndicatorFxp_Gain_TypeInfo = {1, 32, 16};
//	static const char* const NiFpga_Main_Signature = "...";
type ConstDecl struct {
	Pos     lexer.Position
	Static  bool         `@"static"?`
	Type    string       `"const" @Ident`
	Pointer bool         `( @"*" "const"? )?`
	Name    string       `@Ident "="`
	Value   *Initializer `@@ ";"`
}

// Initializer is a string, a number or a flat brace list of numbers.
type Initializer struct {
	Strings []string `  @String+`
	Number  *string  `| @Number`
	List    []string `| "{" ( @Number ","? )* "}"`
}

// Define returns the value of a #define directive as (name, value).
func (d *Directive) Define() (string, string, bool) {
	if d.Keyword != "define" || len(d.Args) == 0 {
		return "", "", false
	}
	return d.Args[0], strings.Join(d.Args[1:], " "), true
}

// StringValue returns the concatenated, unquoted string literal.
func (i *Initializer) StringValue() (string, bool) {
	if len(i.Strings) == 0 {
		return "", false
	}
	var sb strings.Builder
	for _, s := range i.Strings {
		u, err := strconv.Unquote(s)
		if err != nil {
			return "", false
		}
		sb.WriteString(u)
	}
	return sb.String(), true
}

// NumberValue returns the numeric value of a scalar initializer.
func (i *Initializer) NumberValue() (int64, error) {
	if i.Number == nil {
		return 0, fmt.Errorf("not a number")
	}
	return parseNumber(*i.Number)
}

// ListValues returns the numbers of a brace initializer.
func (i *Initializer) ListValues() ([]int64, error) {
	out := make([]int64, len(i.List))
	for n, s := range i.List {
		v, err := parseNumber(s)
		if err != nil {
			return nil, err
		}
		out[n] = v
	}
	return out, nil
}

// parseNumber accepts C integer literals, dropping u/l suffixes.
func parseNumber(s string) (int64, error) {
	s = strings.TrimRight(s, "uUlL")
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		u, uerr := strconv.ParseUint(s, 0, 64)
		if uerr != nil {
			return 0, fmt.Errorf("bad number %q: %w", s, err)
		}
		v = int64(u)
	}
	return v, nil
}

// Enums returns every typedef enum in declaration order.
func (f *File) Enums() []*EnumDecl {
	var out []*EnumDecl
	for _, d := range f.Decls {
		if d.Enum != nil {
			out = append(out, d.Enum)
		}
	}
	return out
}

// Structs returns every typedef struct in declaration order.
func (f *File) Structs() []*StructDecl {
	var out []*StructDecl
	for _, d := range f.Decls {
		if d.Struct != nil {
			out = append(out, d.Struct)
		}
	}
	return out
}

// Consts returns every constant definition in declaration order.
func (f *File) Consts() []*ConstDecl {
	var out []*ConstDecl
	for _, d := range f.Decls {
		if d.Const != nil {
			out = append(out, d.Const)
		}
	}
	return out
}

// Defines maps #define names to their raw values.
func (f *File) Defines() map[string]string {
	out := make(map[string]string)
	for _, d := range f.Decls {
		if d.Directive == nil {
			continue
		}
		if name, value, ok := d.Directive.Define(); ok {
			out[name] = value
		}
	}
	return out
}
